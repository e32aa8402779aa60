package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

const contactsFile = "contacts.json"

// Submission is one public intake-form entry.
type Submission struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Service          string    `json:"service"`
	PreferredContact string    `json:"preferredContact"`
	Message          string    `json:"message"`
	Notified         bool      `json:"notified"`
	CreatedAt        time.Time `json:"createdAt"`
}

type contactDocument struct {
	Submissions []Submission `json:"submissions"`
}

// ContactLog records intake-form submissions. Unlike the activity and
// notification windows it is uncapped and appended in arrival order.
type ContactLog struct {
	path string

	mu   sync.Mutex
	subs []Submission
}

func OpenContactLog(dir string) (*ContactLog, error) {
	l := &ContactLog{path: filepath.Join(dir, contactsFile)}

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read contact log: %w", err)
	}
	var doc contactDocument
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed contact log %s: %w", l.path, err)
	}
	l.subs = doc.Submissions
	return l, nil
}

func (l *ContactLog) Append(sub Submission) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, sub)
	return writeJSONAtomic(l.path, contactDocument{Submissions: l.subs})
}
