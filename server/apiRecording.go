package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/poseguard/poseguard/server/auth"
	"github.com/poseguard/poseguard/server/model"
	"github.com/poseguard/poseguard/server/storage"
	"gorm.io/gorm"
)

// Uploads are MJPEG recordings (or single JPEGs, as one-frame recordings)
var allowedUploadExtensions = map[string]bool{
	".mjpeg": true,
	".mjpg":  true,
	".jpg":   true,
	".jpeg":  true,
}

func recordingPath(id int64) string {
	return fmt.Sprintf("recordings/%v.mjpeg", id)
}

// Upload a recording for file-based monitoring. The body is the raw file,
// the filename arrives as a query parameter.
func (s *Server) httpPutRecording(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	maxSize := int64(s.cfg.Upload.MaxSizeMB) * 1024 * 1024
	if r.ContentLength > maxSize {
		www.PanicBadRequestf("Request body is too large: %v. Maximum size: %v MB", r.ContentLength, s.cfg.Upload.MaxSizeMB)
	}
	filename := strings.TrimSpace(www.RequiredQueryValue(r, "filename"))
	if len(filename) > 200 {
		filename = filename[:200]
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExtensions[ext] {
		www.PanicBadRequestf("File type %v is not allowed. Allowed types: mjpeg, mjpg, jpg, jpeg", ext)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSize))
	www.Check(err)
	if len(body) == 0 {
		www.PanicBadRequestf("Empty file")
	}

	rec := model.Recording{
		CreatedBy: cred.User.ID,
		CreatedAt: dbh.MakeIntTime(time.Now().UTC()),
		Filename:  filename,
		Size:      int64(len(body)),
	}
	tx := s.DB.Begin()
	www.Check(tx.Error)
	defer tx.Rollback()
	www.Check(tx.Create(&rec).Error)
	rec.StoragePath = recordingPath(rec.ID)
	www.Check(tx.Model(&rec).Update("storage_path", rec.StoragePath).Error)
	www.Check(storage.WriteFileBytes(s.storage, rec.StoragePath, body))
	www.Check(tx.Commit().Error)
	www.SendJSONID(w, rec.ID)
	s.Log.Infof("New recording %v (%v, %v bytes) from user %v", rec.ID, filename, len(body), cred.User.Username)
}

func (s *Server) httpListRecordings(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	recs := []model.Recording{}
	q := s.DB.Order("id DESC")
	if !cred.User.IsAdmin() {
		q = q.Where("created_by = ?", cred.User.ID)
	}
	www.Check(q.Find(&recs).Error)
	www.SendJSON(w, recs)
}

func (s *Server) getRecordingOrPanic(idStr string, cred *auth.Credentials) *model.Recording {
	id := www.ParseID(idStr)
	rec := model.Recording{}
	if err := s.DB.First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			www.PanicNotFound()
		}
		www.Check(err)
	}
	if !cred.User.IsAdmin() && rec.CreatedBy != cred.User.ID {
		www.PanicForbiddenf("You are not allowed to access this recording")
	}
	return &rec
}
