package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cyclopcam/dbh"
	"github.com/poseguard/poseguard/server/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const passwordSpecialChars = "!@#$%^&*()_+"

type NewUser struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUser validates 'nu' and creates the account.
// The first user ever created becomes an admin.
func (a *AuthServer) CreateUser(nu NewUser) (*model.AuthUser, error) {
	nu.Name = strings.TrimSpace(nu.Name)
	nu.Username = strings.TrimSpace(nu.Username)
	nu.Email = strings.TrimSpace(nu.Email)
	if nu.Name == "" || nu.Username == "" || nu.Email == "" {
		return nil, errors.New("Name, username and email are required")
	}
	if !strings.Contains(nu.Email, "@") {
		return nil, errors.New("Invalid email address")
	}
	if err := ValidatePassword(nu.Password); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("Error hashing password: %w", err)
	}

	user := model.AuthUser{
		Name:               nu.Name,
		Username:           nu.Username,
		UsernameNormalized: NormalizeUsername(nu.Username),
		Email:              nu.Email,
		Password:           string(hashed),
		CreatedAt:          dbh.MakeIntTime(time.Now().UTC()),
	}
	err = a.db.Transaction(func(tx *gorm.DB) error {
		existing := model.AuthUser{}
		tx.Where("username_normalized = ? OR email = ?", user.UsernameNormalized, user.Email).First(&existing)
		if existing.ID != 0 {
			return errors.New("Username or email is already taken")
		}
		nUsers := int64(0)
		if err := tx.Model(&model.AuthUser{}).Count(&nUsers).Error; err != nil {
			return err
		}
		if nUsers == 0 {
			user.SitePermissions = model.SitePermissionAdmin
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, err
	}
	a.log.Infof("Created user %v (%v)", user.Username, user.Email)
	return &user, nil
}

// ValidatePassword enforces our complexity rules: at least 8 characters,
// with a digit, a letter, an uppercase letter, and a special character.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("Password must be at least 8 characters long")
	}
	hasDigit := false
	hasLetter := false
	hasUpper := false
	hasSpecial := false
	for _, c := range password {
		switch {
		case unicode.IsDigit(c):
			hasDigit = true
		case unicode.IsLetter(c):
			hasLetter = true
			if unicode.IsUpper(c) {
				hasUpper = true
			}
		}
		if strings.ContainsRune(passwordSpecialChars, c) {
			hasSpecial = true
		}
	}
	if !hasDigit {
		return errors.New("Password must contain at least one digit")
	}
	if !hasLetter {
		return errors.New("Password must contain at least one letter")
	}
	if !hasUpper {
		return errors.New("Password must contain at least one uppercase letter")
	}
	if !hasSpecial {
		return errors.New("Password must contain at least one special character (" + passwordSpecialChars + ")")
	}
	return nil
}
