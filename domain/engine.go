package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Store persists the board snapshot. Commit applies the mutator to the
// current snapshot under the store's write lock and persists the result
// atomically; a mutator error aborts the commit with nothing written.
type Store interface {
	Commit(mutate func(*Snapshot) (*Task, error)) (*Task, error)
}

// ActivitySink receives the human-readable trail of committed mutations.
type ActivitySink interface {
	Record(action, details string)
}

// NotificationSink receives structured events for the monitoring consumer.
type NotificationSink interface {
	Notify(entryType string, task Task, user string)
}

// Publisher fans committed mutations out to live viewers.
type Publisher interface {
	Publish(event string, payload any)
}

// EngineConfig carries the fixed identities the lifecycle rules depend on.
type EngineConfig struct {
	// AutomationUser is the bot identity whose own actions are not queued
	// as notifications. The activity log still records them.
	AutomationUser string
	// Reviewer is force-assigned when a task enters review from in-progress.
	Reviewer string
	Logger   *log.Logger
}

// Engine validates and applies task lifecycle transitions. It is the only
// component with business-rule knowledge; each operation is one store commit
// followed by best-effort activity, notification and broadcast side effects.
type Engine struct {
	store     Store
	activity  ActivitySink
	notify    NotificationSink
	publisher Publisher

	automationUser string
	reviewer       string
	logger         *log.Logger
	now            func() time.Time
}

func NewEngine(store Store, activity ActivitySink, notify NotificationSink, publisher Publisher, cfg EngineConfig) *Engine {
	if cfg.AutomationUser == "" {
		cfg.AutomationUser = DefaultAssignee
	}
	if cfg.Reviewer == "" {
		cfg.Reviewer = "michael"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	return &Engine{
		store:          store,
		activity:       activity,
		notify:         notify,
		publisher:      publisher,
		automationUser: cfg.AutomationUser,
		reviewer:       cfg.Reviewer,
		logger:         cfg.Logger,
		now:            time.Now,
	}
}

// CreateTaskInput is the caller-supplied portion of a new task. Title is
// required; every other field falls back to a fixed default.
type CreateTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Business    string `json:"business"`
	Priority    string `json:"priority"`
	Stage       string `json:"column"`
	Outcome     string `json:"outcome"`
	Assignee    string `json:"assignee"`
}

// TaskPatch is a partial update; only non-nil fields are applied.
type TaskPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Business    *string `json:"business"`
	Priority    *string `json:"priority"`
	Stage       *string `json:"column"`
	Outcome     *string `json:"outcome"`
	Assignee    *string `json:"assignee"`
}

func validPriority(p string) bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// CreateTask validates the input, applies defaults and commits the new task.
func (e *Engine) CreateTask(actor string, in CreateTaskInput) (Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Task{}, ValidationError{Reason: "title is required"}
	}
	if in.Priority != "" && !validPriority(in.Priority) {
		return Task{}, ValidationError{Reason: fmt.Sprintf("unknown priority %q", in.Priority)}
	}

	now := e.now()
	task := Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Business:    in.Business,
		Priority:    in.Priority,
		Stage:       in.Stage,
		Outcome:     in.Outcome,
		Assignee:    in.Assignee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Business == "" {
		task.Business = DefaultBusiness
	}
	if task.Priority == "" {
		task.Priority = DefaultPriority
	}
	if task.Stage == "" {
		task.Stage = DefaultStage
	}
	if task.Assignee == "" {
		task.Assignee = DefaultAssignee
	}

	var details string
	created, err := e.store.Commit(func(s *Snapshot) (*Task, error) {
		s.Tasks = append(s.Tasks, task)
		details = fmt.Sprintf("Task %q added to %s", task.Title, s.BusinessName(task.Business))
		return &s.Tasks[len(s.Tasks)-1], nil
	})
	if err != nil {
		return Task{}, err
	}

	e.afterCommit(Mutation{Event: EventTaskCreated, Task: *created, Actor: actor}, ActionCreated, details)
	return *created, nil
}

// UpdateTask applies a partial patch to an existing task.
//
// A patch that changes the stage is a move. The single gated edge is
// in-progress -> review: it must carry a non-empty outcome and on success the
// task is reassigned to the reviewer regardless of the patch's assignee.
// Outside backlog only stage, assignee and outcome may change.
func (e *Engine) UpdateTask(actor, id string, patch TaskPatch) (Task, error) {
	if patch.Priority != nil && !validPriority(*patch.Priority) {
		return Task{}, ValidationError{Reason: fmt.Sprintf("unknown priority %q", *patch.Priority)}
	}

	var (
		moved    bool
		oldStage string
		details  string
	)
	updated, err := e.store.Commit(func(s *Snapshot) (*Task, error) {
		t := s.TaskByID(id)
		if t == nil {
			return nil, ErrTaskNotFound
		}
		oldStage = t.Stage
		moved = patch.Stage != nil && *patch.Stage != t.Stage
		gated := moved && *patch.Stage == StageReview && t.Stage == StageInProgress
		if gated && (patch.Outcome == nil || strings.TrimSpace(*patch.Outcome) == "") {
			return nil, ValidationError{Reason: "moving to review requires an outcome"}
		}
		if t.Stage != StageBacklog {
			if err := lockedFieldChange(t, patch); err != nil {
				return nil, err
			}
		}

		applyPatch(t, patch)
		if gated {
			t.Assignee = e.reviewer
		}
		now := e.now()
		if !now.After(t.UpdatedAt) {
			now = t.UpdatedAt.Add(time.Millisecond)
		}
		t.UpdatedAt = now

		if moved {
			details = fmt.Sprintf("%q moved to %s", t.Title, s.StageName(t.Stage))
		} else {
			details = fmt.Sprintf("%q was updated", t.Title)
		}
		return t, nil
	})
	if err != nil {
		return Task{}, err
	}

	event, action := EventTaskUpdated, ActionUpdated
	if moved {
		event, action = EventTaskMoved, ActionMoved
	}
	e.afterCommit(Mutation{
		Event:    event,
		Task:     *updated,
		OldStage: oldStage,
		NewStage: updated.Stage,
		Actor:    actor,
	}, action, details)
	return *updated, nil
}

// DeleteTask removes the task unconditionally when found.
func (e *Engine) DeleteTask(actor, id string) (Task, error) {
	var details string
	removed, err := e.store.Commit(func(s *Snapshot) (*Task, error) {
		for i := range s.Tasks {
			if s.Tasks[i].ID == id {
				t := s.Tasks[i]
				s.Tasks = append(s.Tasks[:i], s.Tasks[i+1:]...)
				details = fmt.Sprintf("Task %q was deleted", t.Title)
				return &t, nil
			}
		}
		return nil, ErrTaskNotFound
	})
	if err != nil {
		return Task{}, err
	}

	e.afterCommit(Mutation{Event: EventTaskDeleted, Task: *removed, Actor: actor}, ActionDeleted, details)
	return *removed, nil
}

// lockedFieldChange rejects patches that alter triage fields once the task
// has left backlog. Stage, assignee and outcome stay editable.
func lockedFieldChange(t *Task, patch TaskPatch) error {
	switch {
	case patch.Title != nil && *patch.Title != t.Title:
		return ForbiddenError{Field: "title"}
	case patch.Description != nil && *patch.Description != t.Description:
		return ForbiddenError{Field: "description"}
	case patch.Business != nil && *patch.Business != t.Business:
		return ForbiddenError{Field: "business"}
	case patch.Priority != nil && *patch.Priority != t.Priority:
		return ForbiddenError{Field: "priority"}
	}
	return nil
}

func applyPatch(t *Task, patch TaskPatch) {
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Business != nil {
		t.Business = *patch.Business
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Stage != nil {
		t.Stage = *patch.Stage
	}
	if patch.Outcome != nil {
		t.Outcome = *patch.Outcome
	}
	if patch.Assignee != nil {
		t.Assignee = *patch.Assignee
	}
}

// afterCommit runs the post-commit consumers. They are best effort and must
// never fail the already-committed mutation; the sinks log their own errors.
func (e *Engine) afterCommit(m Mutation, action, details string) {
	e.logger.WithFields(log.Fields{
		"event": m.Event,
		"task":  m.Task.ID,
		"user":  m.Actor,
	}).Debug("mutation committed")
	if e.activity != nil {
		e.activity.Record(action, details)
	}
	if e.notify != nil && m.Actor != e.automationUser {
		e.notify.Notify(m.Event, m.Task, m.Actor)
	}
	if e.publisher != nil {
		e.publisher.Publish(m.Event, m.Payload())
	}
}
