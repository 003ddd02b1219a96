// Package auth implements user accounts and session-cookie authentication
// for the poseguard server.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/poseguard/poseguard/server/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const sessionLifetime = 365 * 24 * time.Hour

type Credentials struct {
	User *model.AuthUser

	// If the session was authenticated via session cookie, this is the hashed
	// token, i.e. the value of the auth_session key column.
	SessionKey string
}

type AuthServer struct {
	db                *gorm.DB
	log               logs.Log
	sessionCookieName string
}

func NewAuthServer(db *gorm.DB, log logs.Log, sessionCookieName string) *AuthServer {
	return &AuthServer{
		db:                db,
		log:               log,
		sessionCookieName: sessionCookieName,
	}
}

// AuthenticateRequest resolves the caller's credentials.
// If authorization fails, sends a 401 to 'w', and returns nil.
func (a *AuthServer) AuthenticateRequest(w http.ResponseWriter, r *http.Request) *Credentials {
	if cookie, _ := r.Cookie(a.sessionCookieName); cookie != nil {
		key := hashSessionToken(cookie.Value)
		session := model.AuthSession{}
		a.db.Where("key = ?", key).First(&session)
		if session.AuthUserID != 0 && time.Now().Before(session.ExpiresAt.Get()) {
			user := model.AuthUser{}
			a.db.First(&user, session.AuthUserID)
			if user.ID != 0 {
				return &Credentials{User: &user, SessionKey: key}
			}
		}
	}
	if username, password, ok := r.BasicAuth(); ok {
		if user := a.verifyPassword(username, password); user != nil {
			return &Credentials{User: user}
		}
	}
	www.SendError(w, "Unauthorized", http.StatusUnauthorized)
	return nil
}

// Login authenticates with form values "username" (username or email) and
// "password", or HTTP basic auth, and issues a session cookie.
func (a *AuthServer) Login(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if identity == "" {
		var ok bool
		identity, password, ok = r.BasicAuth()
		if !ok {
			www.SendError(w, "Missing credentials", http.StatusBadRequest)
			return
		}
	}
	user := a.verifyPassword(identity, password)
	if user == nil {
		www.SendError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	now := time.Now().UTC()
	expiresAt := now.Add(sessionLifetime)
	token := newSessionToken()
	session := model.AuthSession{
		Key:        hashSessionToken(token),
		AuthUserID: user.ID,
		CreatedAt:  dbh.MakeIntTime(now),
		ExpiresAt:  dbh.MakeIntTime(expiresAt),
	}
	if err := a.db.Create(&session).Error; err != nil {
		a.log.Errorf("Error creating session: %v", err)
		www.SendError(w, "Error creating session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:    a.sessionCookieName,
		Value:   token,
		Path:    "/",
		Expires: expiresAt,
	})
	www.SendJSON(w, user)
}

// Logout erases the calling session. Basic-auth callers have no session to
// erase, which is fine.
func (a *AuthServer) Logout(w http.ResponseWriter, r *http.Request, cred *Credentials) {
	if cred.SessionKey != "" {
		if err := a.db.Where("key = ?", cred.SessionKey).Delete(&model.AuthSession{}).Error; err != nil {
			a.log.Errorf("Error deleting session: %v", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   a.sessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	www.SendOK(w)
}

// verifyPassword finds a user by username or email, and checks the password.
// Returns nil on any failure.
func (a *AuthServer) verifyPassword(identity, password string) *model.AuthUser {
	user := model.AuthUser{}
	a.db.Where("username_normalized = ? OR email = ?", NormalizeUsername(identity), identity).First(&user)
	if user.ID == 0 {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil
	}
	return &user
}

func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func newSessionToken() string {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		panic("Error creating session token")
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// We hash session tokens at rest to safeguard against timing attacks
// (eg in the DB's BTree lookup). The caller's cookie is the only place
// where the plaintext lives.
func hashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(h[:])
}
