package model

import "github.com/cyclopcam/dbh"

// Alert is one debounced "unwanted pose" event for a subject.
// Append-only; this subsystem never updates or deletes alerts.
type Alert struct {
	BaseModel
	AlertType string      `json:"alertType"`
	UserEmail string      `json:"userEmail"`
	Timestamp dbh.IntTime `json:"timestamp"`
}

// ScreenshotAlert is the evidence record that accompanies an Alert.
// ImagePath is the location of the evidence JPEG inside the blob store.
// The pair share the same alert type, subject and timestamp.
type ScreenshotAlert struct {
	BaseModel
	ImagePath string      `json:"imagePath"`
	UserEmail string      `json:"userEmail"`
	AlertType string      `json:"alertType"`
	Timestamp dbh.IntTime `json:"timestamp"`
}
