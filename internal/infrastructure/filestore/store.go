package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

const backend = "file"

// EventSink receives domain events after a successful write
type EventSink interface {
	Dispatch(ctx context.Context, events []domain.DomainEvent)
}

// Store keeps the whole reconciliation state in one JSON document
type Store struct {
	path    string
	sink    EventSink
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// Option configures a Store
type Option func(*Store)

// WithEventSink forwards persisted events to sink
func WithEventSink(sink EventSink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithMetrics records load and persist timings
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a Store backed by the file at path
func NewStore(path string, logger *logging.Logger, opts ...Option) *Store {
	s := &Store{path: path, logger: logger.WithComponent("file-store")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file is an empty state.
func (s *Store) Load(ctx context.Context) (*domain.State, error) {
	start := time.Now()
	state, err := s.read()
	s.record("load", err == nil, start)
	return state, err
}

func (s *Store) read() (*domain.State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	state := domain.NewState()
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode state file %s: %w", s.path, err)
	}
	return state, nil
}

// Persist replaces the state file atomically, then hands events to the sink
func (s *Store) Persist(ctx context.Context, state *domain.State, events []domain.DomainEvent) error {
	start := time.Now()
	err := s.write(state)
	s.record("persist", err == nil, start)
	s.logger.DatabaseQuery(ctx, "state", "persist", time.Since(start), err == nil, int64(len(events)))
	if err != nil {
		return err
	}

	if s.sink != nil && len(events) > 0 {
		s.sink.Dispatch(ctx, events)
	}
	return nil
}

func (s *Store) write(state *domain.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (s *Store) record(operation string, success bool, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordStoreOperation(backend, operation, success, time.Since(start))
	}
}
