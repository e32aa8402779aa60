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
	notificationsFile = "notifications.json"
	notificationCap   = 50
)

type notificationDocument struct {
	Notifications []domain.NotificationEntry `json:"notifications"`
}

// NotificationQueue is the capped queue of structured events consumed by the
// external monitoring identity. Newest first; read is the only field ever
// mutated in place.
type NotificationQueue struct {
	path   string
	logger *log.Logger

	mu      sync.Mutex
	entries []domain.NotificationEntry
}

func OpenNotificationQueue(dir string, logger *log.Logger) (*NotificationQueue, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	q := &NotificationQueue{path: filepath.Join(dir, notificationsFile), logger: logger}

	data, err := os.ReadFile(q.path)
	if errors.Is(err, os.ErrNotExist) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read notification queue: %w", err)
	}
	var doc notificationDocument
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed notification queue %s: %w", q.path, err)
	}
	q.entries = doc.Notifications
	return q, nil
}

// Notify enqueues one entry. Persistence failures are logged and swallowed.
func (q *NotificationQueue) Notify(entryType string, task domain.Task, user string) {
	if user == "" {
		user = "unknown"
	}
	entry := domain.NotificationEntry{
		ID:        uuid.NewString(),
		Type:      entryType,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		User:      user,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append([]domain.NotificationEntry{entry}, q.entries...)
	if len(q.entries) > notificationCap {
		q.entries = q.entries[:notificationCap]
	}
	if err := writeJSONAtomic(q.path, notificationDocument{Notifications: q.entries}); err != nil {
		q.logger.WithError(err).Error("notification append failed")
	}
}

// List returns all retained entries, most recent first.
func (q *NotificationQueue) List() []domain.NotificationEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.NotificationEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// MarkAllRead flips the read flag on every retained entry.
func (q *NotificationQueue) MarkAllRead() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		q.entries[i].Read = true
	}
	return writeJSONAtomic(q.path, notificationDocument{Notifications: q.entries})
}
