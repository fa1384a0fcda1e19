// Package monitor periodically reports engine health: fleet counters,
// pending render ops, and push-stream connectivity. Output goes to a
// status file for operators and to InfluxDB when configured.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ucs-fleet/livemap/internal/influx"
	"github.com/ucs-fleet/livemap/internal/logging"
	"github.com/ucs-fleet/livemap/internal/queue"
	"github.com/ucs-fleet/livemap/internal/registry"
	"github.com/ucs-fleet/livemap/pkg/core"
)

// historySize bounds the retained snapshot backlog between drains.
const historySize = 120

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager      *logging.SlogManager
	Registry        *registry.Registry
	Influx          *influx.Manager
	StreamConnected func() bool
	PendingOps      func() int
	StatusDir       string
	Interval        time.Duration
}

// Snapshot is one health report.
type Snapshot struct {
	Time            time.Time       `json:"time"`
	Stats           core.FleetStats `json:"stats"`
	StreamConnected bool            `json:"streamConnected"`
	PendingOps      int             `json:"pendingOps"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	history   *queue.Bounded[Snapshot]
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
		history:  queue.NewBounded[Snapshot](historySize),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Collect builds the current health snapshot.
func (s *Service) Collect() Snapshot {
	snap := Snapshot{Time: time.Now()}
	if s.deps.Registry != nil {
		snap.Stats = s.deps.Registry.Stats()
	}
	if s.deps.StreamConnected != nil {
		snap.StreamConnected = s.deps.StreamConnected()
	}
	if s.deps.PendingOps != nil {
		snap.PendingOps = s.deps.PendingOps()
	}
	return snap
}

// Drain returns the snapshots collected since the previous call,
// oldest first. Entries beyond the history cap are dropped oldest
// first while unread.
func (s *Service) Drain() []Snapshot {
	return s.history.GetAndEmpty()
}

// report writes one snapshot to the status file and the metrics sink.
func (s *Service) report(statusFile *os.File, snap Snapshot) {
	logger := s.deps.LogManager.Logger()
	s.history.Push(snap)

	if statusFile != nil {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		statusFile.Truncate(0)
		statusFile.Seek(0, 0)
		statusFile.Write(append(data, '\n'))
	}

	if s.deps.Influx != nil {
		ctx := context.Background()
		if err := s.deps.Influx.WriteFleetStats(ctx, snap.Stats); err != nil {
			logger.Error("Error writing fleet stats to InfluxDB", "error", err)
		}
		if err := s.deps.Influx.WriteStreamHealth(ctx, snap.StreamConnected); err != nil {
			logger.Error("Error writing stream health to InfluxDB", "error", err)
		}
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		var statusFile *os.File
		if s.deps.StatusDir != "" {
			var err error
			statusFile, err = os.Create(filepath.Join(s.deps.StatusDir, "status.json"))
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			} else {
				defer statusFile.Close()
			}
		}

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.report(statusFile, s.Collect())
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
