package server

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/staticfiles"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
	"github.com/poseguard/poseguard/server/auth"
)

//go:embed www
var staticWWW embed.FS

type authenticatedHandler func(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials)

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	// protected creates an HTTP handler that is accessible only with authentication
	protected := func(method, route string, handle authenticatedHandler) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			cred := s.auth.AuthenticateRequest(w, r)
			if cred == nil {
				return
			}
			handle(w, r, params, cred)
		})
	}

	// admin creates an HTTP handler that is accessible only to admin users
	admin := func(method, route string, handle authenticatedHandler) {
		protected(method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
			if !cred.User.IsAdmin() {
				www.SendError(w, "Admin access required", http.StatusForbidden)
				return
			}
			handle(w, r, params, cred)
		})
	}

	// unprotected creates an HTTP handler that is accessible without authentication
	unprotected := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// ratelimited guards the credential endpoints against brute force
	ratelimited := func(method, route string, handle func(w http.ResponseWriter, r *http.Request), requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(handle)).ServeHTTP(w, r)
		})
	}

	unprotected("GET", "/api/ping", s.httpPing)
	protected("GET", "/api/constants", s.httpConstants)

	ratelimited("POST", "/api/auth/login", s.auth.Login, 10, time.Minute)
	ratelimited("POST", "/api/auth/signup", s.httpAuthSignup, 5, time.Minute)
	protected("POST", "/api/auth/logout", s.httpAuthLogout)
	protected("GET", "/api/auth/whoami", s.httpAuthWhoAmI)
	admin("GET", "/api/auth/users/list", s.httpAuthListUsers)

	protected("GET", "/api/monitor/sessions", s.httpMonitorListSessions)
	protected("GET", "/api/monitor/session/:id/state", s.httpMonitorSessionState)
	protected("GET", "/api/monitor/session/:id/feed", s.httpMonitorSessionFeed)
	protected("POST", "/api/monitor/session/:id/stop", s.httpMonitorStopSession)
	protected("GET", "/api/monitor/events", s.httpMonitorEventsWebSocket)
	protected("GET", "/api/monitor/events/recent", s.httpMonitorRecentEvents)

	protected("POST", "/api/monitor/live/start", s.httpMonitorStartLive)
	protected("POST", "/api/monitor/recording/:id/start", s.httpMonitorStartRecording)

	protected("PUT", "/api/recording", s.httpPutRecording)
	protected("GET", "/api/recordings/list", s.httpListRecordings)

	protected("GET", "/api/alerts/list", s.httpAlertsList)
	protected("GET", "/api/screenshots/list", s.httpScreenshotsList)
	protected("GET", "/api/screenshot/:id/image", s.httpScreenshotImage)

	isImmutable := true
	var fsys fs.FS
	fsysRoot := "www"
	fsys = staticWWW
	if s.HotReloadWWW {
		relRoot := "server/www"
		absRoot, err := filepath.Abs(relRoot)
		if err != nil {
			s.Log.Errorf("Failed to resolve static file directory %v: %v", relRoot, err)
			return errors.New("Failed to resolve static file directory for hot reload")
		}
		s.Log.Infof("Serving static files from %v, with hot reload", absRoot)
		fsys = os.DirFS(absRoot)
		fsysRoot = ""
		isImmutable = false
	}

	static, err := staticfiles.NewCachedStaticFileServer(fsys, fsysRoot, []string{"/api/"}, s.Log, isImmutable, nil)
	if err != nil {
		s.Log.Warnf("Error in static files: %v", err)
	}
	router.NotFound = static

	s.httpRouter = router
	return nil
}
