// Package alertdb stores the durable record of debounced alerts: one Alert
// row plus one ScreenshotAlert row per qualifying event, append-only.
package alertdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/poseguard/poseguard/server/model"
	"gorm.io/gorm"
)

type AlertDB struct {
	Log logs.Log
	DB  *gorm.DB
}

// Open or create the alert DB
func Open(logger logs.Log, dbFilename string) (*AlertDB, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbFilename), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open alert database %v: %w", dbFilename, err)
	}
	return &AlertDB{
		Log: logger,
		DB:  db,
	}, nil
}

// AddAlert appends the alert record and its screenshot record as a single
// transaction. The evidence image must already exist at imagePath before
// calling this, so that we never persist a record referencing a missing file.
func (a *AlertDB) AddAlert(alertType, userEmail, imagePath string, detectedAt time.Time) error {
	ts := dbh.MakeIntTime(detectedAt)
	return a.DB.Transaction(func(tx *gorm.DB) error {
		alert := &model.Alert{
			AlertType: alertType,
			UserEmail: userEmail,
			Timestamp: ts,
		}
		if err := tx.Create(alert).Error; err != nil {
			return err
		}
		shot := &model.ScreenshotAlert{
			ImagePath: imagePath,
			UserEmail: userEmail,
			AlertType: alertType,
			Timestamp: ts,
		}
		return tx.Create(shot).Error
	})
}

// ListAlerts returns alerts newest-first. subject "" means all subjects,
// limit <= 0 means no limit.
func (a *AlertDB) ListAlerts(subject string, limit int) ([]model.Alert, error) {
	var alerts []model.Alert
	q := a.DB.Order("timestamp DESC, id DESC")
	if subject != "" {
		q = q.Where("user_email = ?", subject)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return alerts, q.Find(&alerts).Error
}

// ListScreenshots returns screenshot alerts newest-first. subject "" means
// all subjects, limit <= 0 means no limit.
func (a *AlertDB) ListScreenshots(subject string, limit int) ([]model.ScreenshotAlert, error) {
	var shots []model.ScreenshotAlert
	q := a.DB.Order("timestamp DESC, id DESC")
	if subject != "" {
		q = q.Where("user_email = ?", subject)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return shots, q.Find(&shots).Error
}

// GetScreenshot fetches a single screenshot alert by ID.
func (a *AlertDB) GetScreenshot(id int64) (*model.ScreenshotAlert, error) {
	shot := model.ScreenshotAlert{}
	if err := a.DB.First(&shot, id).Error; err != nil {
		return nil, err
	}
	return &shot, nil
}
