package server

import (
	"net/http"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/poseguard/poseguard/server/auth"
	"github.com/poseguard/poseguard/server/model"
)

func (s *Server) httpAuthSignup(w http.ResponseWriter, r *http.Request) {
	nu := auth.NewUser{}
	www.ReadJSON(w, r, &nu, 1024*1024)
	user, err := s.auth.CreateUser(nu)
	if err != nil {
		www.SendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	www.SendJSON(w, user)
}

func (s *Server) httpAuthLogout(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	s.auth.Logout(w, r, cred)
}

func (s *Server) httpAuthWhoAmI(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	type response struct {
		UserID   int64  `json:"userID"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		IsAdmin  bool   `json:"isAdmin"`
	}
	www.SendJSON(w, response{
		UserID:   cred.User.ID,
		Name:     cred.User.Name,
		Username: cred.User.Username,
		Email:    cred.User.Email,
		IsAdmin:  cred.User.IsAdmin(),
	})
}

func (s *Server) httpAuthListUsers(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	type user struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		IsAdmin  bool   `json:"isAdmin"`
	}
	all := []model.AuthUser{}
	www.Check(s.DB.Order("id").Find(&all).Error)
	resp := []user{}
	for _, u := range all {
		resp = append(resp, user{
			ID:       u.ID,
			Name:     u.Name,
			Username: u.Username,
			Email:    u.Email,
			IsAdmin:  u.IsAdmin(),
		})
	}
	www.SendJSON(w, resp)
}
