package domain

// Event names published to live viewers and mirrored by the notification
// queue's entry types.
const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskMoved   = "task_moved"
	EventTaskDeleted = "task_deleted"
)

// MovePayload is the broadcast payload for a stage change.
type MovePayload struct {
	Task     Task   `json:"task"`
	OldStage string `json:"oldStage"`
	NewStage string `json:"newStage"`
}

// Mutation describes one committed engine operation for the post-commit
// consumers (activity log, notification queue, broadcaster).
type Mutation struct {
	Event    string
	Task     Task
	OldStage string
	NewStage string
	Actor    string
}

// Payload returns the broadcast payload for the mutation: moves carry the
// old and new stage alongside the task, everything else carries the task.
func (m Mutation) Payload() any {
	if m.Event == EventTaskMoved {
		return MovePayload{Task: m.Task, OldStage: m.OldStage, NewStage: m.NewStage}
	}
	return m.Task
}
