package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

const (
	activityFile = "activity.json"
	activityCap  = 100
)

type activityDocument struct {
	Activities []domain.ActivityEntry `json:"activities"`
}

// ActivityLog is the append-only, capped feed of human-readable events.
// Entries are kept newest first and the oldest are dropped silently once the
// cap is reached; this is a rolling window, not an audit trail.
type ActivityLog struct {
	path   string
	logger *log.Logger

	mu      sync.Mutex
	entries []domain.ActivityEntry
}

func OpenActivityLog(dir string, logger *log.Logger) (*ActivityLog, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	l := &ActivityLog{path: filepath.Join(dir, activityFile), logger: logger}

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read activity log: %w", err)
	}
	var doc activityDocument
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed activity log %s: %w", l.path, err)
	}
	l.entries = doc.Activities
	return l, nil
}

// Record appends an entry. Failures to persist are logged and swallowed;
// they must never fail the task mutation that produced them.
func (l *ActivityLog) Record(action, details string) {
	entry := domain.ActivityEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]domain.ActivityEntry{entry}, l.entries...)
	if len(l.entries) > activityCap {
		l.entries = l.entries[:activityCap]
	}
	if err := writeJSONAtomic(l.path, activityDocument{Activities: l.entries}); err != nil {
		l.logger.WithError(err).Error("activity log append failed")
	}
}

// List returns up to limit entries, most recent first. A non-positive limit
// returns everything retained.
func (l *ActivityLog) List(limit int) []domain.ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ActivityEntry, n)
	copy(out, l.entries[:n])
	return out
}
