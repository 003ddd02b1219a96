// Package server is the poseguard HTTP server: account management, the
// detection monitor, alert history, and the live/file viewing surfaces.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/julienschmidt/httprouter"
	"github.com/poseguard/poseguard/server/alarm"
	"github.com/poseguard/poseguard/server/alertdb"
	"github.com/poseguard/poseguard/server/auth"
	"github.com/poseguard/poseguard/server/classify"
	"github.com/poseguard/poseguard/server/monitor"
	"github.com/poseguard/poseguard/server/storage"
	"gorm.io/gorm"
)

type Server struct {
	HotReloadWWW bool
	Log          logs.Log
	DB           *gorm.DB

	cfg        Config
	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	auth       *auth.AuthServer
	storage    storage.Storage
	alertDB    *alertdb.AlertDB
	monitor    *monitor.Monitor
}

// hotReloadWWW serves the web app from disk instead of the embedded copy
func NewServer(logger logs.Log, configFile string, hotReloadWWW bool) (*Server, error) {
	cfg := Config{}
	if configFile != "" {
		cfgB, err := os.ReadFile(configFile)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cfgB, &cfg); err != nil {
			return nil, fmt.Errorf("Error parsing config file %v: %w", configFile, err)
		}
	}
	cfg.applyDefaults()

	db, err := openDB(logger, cfg.DB)
	if err != nil {
		return nil, err
	}
	authServer := auth.NewAuthServer(db, logger, "poseguard-session")

	// Open blob store for evidence images and uploaded recordings
	var storageServer storage.Storage
	if cfg.EvidenceStorage.GCS != nil {
		storageServer, err = storage.NewStorageGCS(logger, cfg.EvidenceStorage.GCS.Bucket)
	} else if cfg.EvidenceStorage.Filesystem != nil {
		storageServer, err = storage.NewStorageFS(logger, cfg.EvidenceStorage.Filesystem.Root)
	} else {
		storageServer, err = storage.NewStorageFS(logger, "poseguard-evidence")
	}
	if err != nil {
		return nil, err
	}

	alertDB, err := alertdb.Open(logger, cfg.AlertDB)
	if err != nil {
		return nil, err
	}

	classifier := classify.NewHTTPClassifier(cfg.Classifier.URL, time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second)
	if err := classifier.IsAlive(); err != nil {
		// The sidecar may come up after us. Sessions surface the sentinel
		// until it does.
		logger.Warnf("Classifier is not available yet: %v", err)
	}

	player := alarm.CommandPlayer(cfg.Alarm.Command)
	mon := monitor.NewMonitor(logger, classifier, storageServer, alertDB, cfg.Detection, player)

	s := &Server{
		HotReloadWWW: hotReloadWWW,
		Log:          logger,
		DB:           db,
		cfg:          cfg,
		auth:         authServer,
		storage:      storageServer,
		alertDB:      alertDB,
		monitor:      mon,
	}
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			// Shutdown() was called by somebody else, and it closed signalIn
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	signal.Stop(s.signalIn)
	close(s.signalIn)
	s.Log.Infof("Stopping monitor sessions")
	s.monitor.Close()
	s.Log.Infof("Closing HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.Log.Close()
}
