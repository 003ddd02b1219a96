package server

import (
	"net/http"
	"time"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/poseguard/poseguard/server/auth"
	"github.com/poseguard/poseguard/server/classify"
	"github.com/poseguard/poseguard/server/monitor"
)

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	type pingJSON struct {
		Time       int64 `json:"time"`
		Classifier bool  `json:"classifier"`
	}
	ping := &pingJSON{
		Time:       time.Now().Unix(),
		Classifier: s.monitor.ClassifierAlive() == nil,
	}
	www.SendJSON(w, ping)
}

func (s *Server) httpConstants(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	type constantsJSON struct {
		Labels      []string                `json:"labels"`
		NormalLabel string                  `json:"normalLabel"`
		Detection   monitor.DetectionConfig `json:"detection"`
	}
	www.SendJSON(w, constantsJSON{
		Labels:      classify.Labels,
		NormalLabel: classify.NormalLabel,
		Detection:   s.monitor.Config(),
	})
}
