package model

import "github.com/cyclopcam/dbh"

// Recording is an uploaded video file, stored in blob storage and available
// for file-based monitoring sessions.
type Recording struct {
	BaseModel
	CreatedBy   int64       `json:"createdBy"`
	CreatedAt   dbh.IntTime `json:"createdAt"`
	Filename    string      `json:"filename"`
	StoragePath string      `json:"storagePath"`
	Size        int64       `json:"size"`
}
