package model

import "github.com/cyclopcam/dbh"

// SitePermissionAdmin grants access to the reports/admin APIs, and revokes
// access to the video feed (admins review, they don't drive).
const SitePermissionAdmin = "a"

type AuthUser struct {
	BaseModel
	Name               string      `json:"name"`
	Username           string      `json:"username"`
	UsernameNormalized string      `json:"-"`
	Email              string      `json:"email"`
	Password           string      `json:"-"`
	SitePermissions    string      `json:"sitePermissions"`
	CreatedAt          dbh.IntTime `json:"createdAt"`
}

func (u *AuthUser) IsAdmin() bool {
	for _, p := range u.SitePermissions {
		if string(p) == SitePermissionAdmin {
			return true
		}
	}
	return false
}

type AuthSession struct {
	Key        string `gorm:"primaryKey"`
	AuthUserID int64
	CreatedAt  dbh.IntTime
	ExpiresAt  dbh.IntTime
}
