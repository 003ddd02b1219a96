package server

import (
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/poseguard/poseguard/server/auth"
	"github.com/poseguard/poseguard/server/storage"
)

// Admins see everybody's alerts, regular users only their own.
func subjectFilter(cred *auth.Credentials) string {
	if cred.User.IsAdmin() {
		return ""
	}
	return cred.User.Email
}

func (s *Server) httpAlertsList(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	limit := www.QueryInt(r, "limit")
	alerts, err := s.alertDB.ListAlerts(subjectFilter(cred), limit)
	www.Check(err)
	www.SendJSON(w, alerts)
}

func (s *Server) httpScreenshotsList(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	limit := www.QueryInt(r, "limit")
	shots, err := s.alertDB.ListScreenshots(subjectFilter(cred), limit)
	www.Check(err)
	www.SendJSON(w, shots)
}

func (s *Server) httpScreenshotImage(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	id := www.ParseID(params.ByName("id"))
	if id == 0 {
		www.PanicBadRequestf("Invalid screenshot ID")
	}
	shot, err := s.alertDB.GetScreenshot(id)
	if err != nil {
		www.PanicNotFound()
	}
	if !cred.User.IsAdmin() && shot.UserEmail != cred.User.Email {
		www.PanicForbidden()
	}
	evidence, err := storage.ReadFileBytes(s.storage, shot.ImagePath)
	if err != nil {
		s.Log.Errorf("Evidence image %v is missing: %v", shot.ImagePath, err)
		www.PanicNotFound()
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(evidence)
}
