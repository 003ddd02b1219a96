// Package storage is the evidence blob store boundary. Alert screenshots are
// written here, keyed by subject identity + a second-resolution timestamp,
// which keeps concurrent sessions from colliding without any locking.
package storage

import (
	"io"
	"time"
)

// Storage is an abstraction of a blob store (eg GCS, or a local directory)
type Storage interface {
	// When finished, you must close the WriteCloser
	WriteFile(name string) (io.WriteCloser, error)

	// When finished, you must close File.Reader
	ReadFile(name string) (*File, error)

	DeleteFile(name string) error
}

// File is an element in blob storage.
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

// EvidencePath returns the store path for an alert screenshot.
// Uniqueness comes from subject + second-resolution timestamp; the debounce
// cooldown guarantees one subject can't produce two alerts in the same second.
func EvidencePath(subject string, detectedAt time.Time) string {
	return "screenshots/" + subject + "_" + detectedAt.UTC().Format("20060102_150405") + ".jpg"
}

// WriteFileBytes writes content to the store, closing the writer.
// A failure anywhere means the blob must be treated as absent.
func WriteFileBytes(s Storage, name string, content []byte) error {
	f, err := s.WriteFile(name)
	if err != nil {
		return err
	}
	_, err = f.Write(content)
	errClose := f.Close()
	if err != nil {
		return err
	}
	return errClose
}

// ReadFileBytes reads an entire blob into memory.
func ReadFileBytes(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}
