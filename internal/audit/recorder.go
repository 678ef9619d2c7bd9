package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/boxbuddy/boxbuddy-core/internal/clock"
)

// Logger defines the logging interface used by the Recorder.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// recentCapacity bounds the in-memory newest-first view. Older entries
// remain queryable through the repository.
const recentCapacity = 200

// Recorder is the append-only audit trail. New entries are written through
// to the repository and prepended to a bounded in-memory view for cheap
// "recent activity" reads. Past entries are never modified or removed.
//
// All public methods are thread-safe.
type Recorder struct {
	repo   Repository
	clk    clock.Clock
	mu     sync.RWMutex
	recent []Entry // newest first
	logger Logger
}

// NewRecorder creates a new audit recorder.
func NewRecorder(repo Repository, clk clock.Clock) *Recorder {
	return &Recorder{
		repo:   repo,
		clk:    clk,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Load populates the in-memory view from the repository.
// This should be called on application startup.
func (r *Recorder) Load(ctx context.Context) error {
	result, err := r.repo.List(ctx, Filter{Limit: recentCapacity})
	if err != nil {
		return fmt.Errorf("loading audit entries: %w", err)
	}

	r.mu.Lock()
	r.recent = result.Entries
	r.mu.Unlock()

	r.logger.Info("audit trail loaded", "count", len(result.Entries))
	return nil
}

// Record appends a new entry to the trail and returns it.
// The entry's ID and CreatedAt are assigned here.
func (r *Recorder) Record(ctx context.Context, kind Kind, deviceID, actor, text string) (Entry, error) {
	if !kind.Valid() {
		return Entry{}, fmt.Errorf("audit: unknown kind %q", kind)
	}

	entry := Entry{
		ID:        "aud-" + uuid.NewString()[:8],
		Kind:      kind,
		DeviceID:  deviceID,
		Actor:     actor,
		Text:      text,
		CreatedAt: r.clk.Now().UTC(),
	}

	if err := r.repo.Create(ctx, &entry); err != nil {
		return Entry{}, err
	}

	r.mu.Lock()
	r.recent = append([]Entry{entry}, r.recent...)
	if len(r.recent) > recentCapacity {
		r.recent = r.recent[:recentCapacity]
	}
	r.mu.Unlock()

	r.logger.Debug("audit entry recorded", "id", entry.ID, "kind", kind, "device_id", deviceID)
	return entry, nil
}

// Recent returns up to limit of the newest entries, newest first.
// The returned slice is a copy.
func (r *Recorder) Recent(limit int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.recent) {
		limit = len(r.recent)
	}
	out := make([]Entry, limit)
	copy(out, r.recent[:limit])
	return out
}

// List queries the repository for entries matching the filter, newest first.
func (r *Recorder) List(ctx context.Context, filter Filter) (*ListResult, error) {
	return r.repo.List(ctx, filter)
}
