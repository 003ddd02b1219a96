package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/poseguard/poseguard/server/auth"
	"github.com/poseguard/poseguard/server/camera"
	"github.com/poseguard/poseguard/server/mjpeg"
	"github.com/poseguard/poseguard/server/monitor"
	"github.com/poseguard/poseguard/server/storage"
)

func (s *Server) httpMonitorListSessions(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	states := []monitor.State{}
	for _, session := range s.monitor.ListSessions() {
		if cred.User.IsAdmin() || session.Subject == cred.User.Email {
			states = append(states, session.State())
		}
	}
	www.SendJSON(w, states)
}

// getSessionOrPanic enforces that regular users only touch their own sessions.
func (s *Server) getSessionOrPanic(idStr string, cred *auth.Credentials) *monitor.Session {
	id := www.ParseID(idStr)
	session := s.monitor.SessionByID(id)
	if session == nil {
		www.PanicNotFound()
	}
	if !cred.User.IsAdmin() && session.Subject != cred.User.Email {
		www.PanicForbiddenf("You are not allowed to access this session")
	}
	return session
}

// httpMonitorRecentEvents returns the rolling window of recent
// classification events, oldest first.
func (s *Server) httpMonitorRecentEvents(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	max := www.QueryInt(r, "max")
	events := []*monitor.Event{}
	for _, ev := range s.monitor.RecentEvents(max) {
		if cred.User.IsAdmin() || ev.Subject == cred.User.Email {
			events = append(events, ev)
		}
	}
	www.SendJSON(w, events)
}

func (s *Server) httpMonitorSessionState(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	session := s.getSessionOrPanic(params.ByName("id"), cred)
	www.SendJSON(w, session.State())
}

func (s *Server) httpMonitorStopSession(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	session := s.getSessionOrPanic(params.ByName("id"), cred)
	session.Stop()
	www.SendOK(w)
}

// httpMonitorSessionFeed streams the session's annotated frames as MJPEG,
// straight into an <img> tag.
func (s *Server) httpMonitorSessionFeed(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	session := s.getSessionOrPanic(params.ByName("id"), cred)
	frames := session.AddFrameWatcher()
	defer session.RemoveFrameWatcher(frames)

	stream, err := mjpeg.NewStream(w)
	www.Check(err)
	for {
		select {
		case frame := <-frames:
			if err := stream.SendFrame(frame.JPEG); err != nil {
				// Client is gone
				return
			}
		case <-session.Done():
			return
		case <-r.Context().Done():
			return
		}
	}
}

// httpMonitorStartLive starts monitoring the live camera. The live camera is
// for drivers; admins review alerts, they don't drive.
func (s *Server) httpMonitorStartLive(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	if cred.User.IsAdmin() {
		www.PanicForbiddenf("Admins cannot start a live monitoring session")
	}
	if s.cfg.Camera.LiveURL == "" {
		www.PanicBadRequestf("No live camera is configured")
	}
	source, err := camera.OpenMJPEG(s.cfg.Camera.LiveURL, 10*time.Second)
	www.Check(err)
	session, err := s.monitor.StartSession(source, cred.User.Email, true)
	if err != nil {
		source.Close()
		www.SendError(w, err.Error(), http.StatusConflict)
		return
	}
	www.SendJSONID(w, session.ID)
}

// httpMonitorStartRecording starts a file-based session on an uploaded
// recording. Any number of these may run concurrently.
func (s *Server) httpMonitorStartRecording(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	rec := s.getRecordingOrPanic(params.ByName("id"), cred)
	data, err := storage.ReadFileBytes(s.storage, rec.StoragePath)
	www.Check(err)
	frameInterval := time.Second / time.Duration(s.cfg.Camera.FileFPS)
	source, err := camera.NewFileSource(rec.Filename, data, frameInterval)
	www.Check(err)
	session, err := s.monitor.StartSession(source, cred.User.Email, false)
	www.Check(err)
	www.SendJSONID(w, session.ID)
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// httpMonitorEventsWebSocket pushes classification and alert events to the
// client as JSON messages.
func (s *Server) httpMonitorEventsWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events := s.monitor.AddEventWatcher()
	defer s.monitor.RemoveEventWatcher(events)

	// Reader goroutine, so that we notice the client closing the socket
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	isAdmin := cred.User.IsAdmin()
	for {
		select {
		case ev := <-events:
			if !isAdmin && ev.Subject != cred.User.Email {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
