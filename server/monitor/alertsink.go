package monitor

import (
	"fmt"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/poseguard/poseguard/server/alertdb"
	"github.com/poseguard/poseguard/server/storage"
)

// alertSink persists one alert event: the evidence JPEG goes to storage, and
// the Alert + ScreenshotAlert records go to the database. Persistence is best
// effort: a failed alert is logged and dropped, and must never stall or kill
// the session's frame loop.
type alertSink struct {
	log     logs.Log
	storage storage.Storage
	alertDB *alertdb.AlertDB
}

// AlertTypeForLabel formats the alert_type string recorded for a detected
// pose label.
func AlertTypeForLabel(label string) string {
	return fmt.Sprintf("Unwanted Pose Detected (%v)", label)
}

func (s *alertSink) raise(subject, label string, evidenceJPEG []byte, detectedAt time.Time) {
	alertType := AlertTypeForLabel(label)
	imagePath := storage.EvidencePath(subject, detectedAt)
	if err := storage.WriteFileBytes(s.storage, imagePath, evidenceJPEG); err != nil {
		s.log.Errorf("Failed to write evidence image %v: %v. Alert dropped.", imagePath, err)
		return
	}
	if err := s.alertDB.AddAlert(alertType, subject, imagePath, detectedAt); err != nil {
		s.log.Errorf("Failed to record alert for %v: %v. Alert dropped.", subject, err)
		return
	}
	s.log.Infof("Alert raised: %v (subject %v, evidence %v)", alertType, subject, imagePath)
}
