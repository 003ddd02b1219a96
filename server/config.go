package server

import (
	"github.com/cyclopcam/dbh"
	"github.com/poseguard/poseguard/server/monitor"
)

type Config struct {
	// DB is the main database (accounts, sessions, uploads).
	// If empty, a local sqlite file "poseguard.sqlite" is used.
	DB dbh.DBConfig `json:"db"`
	// AlertDB is the path of the alerts sqlite database
	AlertDB string `json:"alertDB"`

	EvidenceStorage StorageConfig `json:"evidenceStorage"`

	Detection  monitor.DetectionConfig `json:"detection"`
	Classifier ClassifierConfig        `json:"classifier"`
	Alarm      AlarmConfig             `json:"alarm"`
	Camera     CameraConfig            `json:"camera"`
	Upload     UploadConfig            `json:"upload"`
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Path to the root of the filesystem
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
}

type ClassifierConfig struct {
	// URL is the base URL of the classifier sidecar
	URL string `json:"url"`
	// TimeoutSeconds bounds a single classification round trip
	TimeoutSeconds int `json:"timeoutSeconds"`
}

type AlarmConfig struct {
	// Command is the shell command that plays one alarm burst, eg
	// "aplay /usr/share/sounds/alarm.wav". Empty = silent.
	Command string `json:"command"`
}

type CameraConfig struct {
	// LiveURL is the MJPEG stream URL of the live camera. Empty disables
	// live monitoring.
	LiveURL string `json:"liveURL"`
	// FileFPS is the synthetic playback rate of uploaded recordings
	FileFPS int `json:"fileFPS"`
}

type UploadConfig struct {
	// MaxSizeMB caps video uploads
	MaxSizeMB int `json:"maxSizeMB"`
}

// applyDefaults fills in anything the config file left out.
func (c *Config) applyDefaults() {
	if c.DB.Database == "" {
		c.DB = dbh.MakeSqliteConfig("poseguard.sqlite")
	}
	if c.AlertDB == "" {
		c.AlertDB = "poseguard-alerts.sqlite"
	}
	defaults := monitor.DefaultDetectionConfig()
	if c.Detection.FrameStride <= 0 {
		c.Detection.FrameStride = defaults.FrameStride
	}
	if c.Detection.ConfidenceThreshold <= 0 {
		c.Detection.ConfidenceThreshold = defaults.ConfidenceThreshold
	}
	if c.Detection.RunLengthThreshold <= 0 {
		c.Detection.RunLengthThreshold = defaults.RunLengthThreshold
	}
	if c.Detection.CooldownSeconds <= 0 {
		c.Detection.CooldownSeconds = defaults.CooldownSeconds
	}
	if c.Detection.JPEGQuality <= 0 {
		c.Detection.JPEGQuality = defaults.JPEGQuality
	}
	if c.Classifier.URL == "" {
		c.Classifier.URL = "http://localhost:5001"
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = 10
	}
	if c.Camera.FileFPS <= 0 {
		c.Camera.FileFPS = 30
	}
	if c.Upload.MaxSizeMB <= 0 {
		c.Upload.MaxSizeMB = 50
	}
}
