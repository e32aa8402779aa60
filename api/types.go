package api

import (
	"context"

	"taskboard-api/domain"
	"taskboard-api/storage"
	"taskboard-api/stream"
)

// Board is the read side of the task store.
type Board interface {
	SnapshotJSON(ctx context.Context) ([]byte, error)
}

// Engine applies task lifecycle operations on behalf of an actor.
type Engine interface {
	CreateTask(actor string, in domain.CreateTaskInput) (domain.Task, error)
	UpdateTask(actor, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(actor, id string) (domain.Task, error)
}

// ActivityFeed lists recent activity entries, most recent first.
type ActivityFeed interface {
	List(limit int) []domain.ActivityEntry
}

// Notifications is the monitoring consumer's queue interface.
type Notifications interface {
	List() []domain.NotificationEntry
	MarkAllRead() error
}

// Contacts records public intake-form submissions.
type Contacts interface {
	Append(sub storage.Submission) error
}

// Broker registers live viewers of the push channel.
type Broker interface {
	Subscribe() *stream.Viewer
	Unsubscribe(*stream.Viewer)
}

const taskBodyMaxSize = 64 * 1024 // 64 KiB

type activityResponse struct {
	Activities []domain.ActivityEntry `json:"activities"`
}

type notificationsResponse struct {
	Notifications []domain.NotificationEntry `json:"notifications"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// contactRequest is the public intake form body.
type contactRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Service          string `json:"service"`
	PreferredContact string `json:"preferredContact"`
	Message          string `json:"message"`
}
