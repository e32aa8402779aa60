package domain

import "time"

// Stage ids in pipeline order. The JSON wire format keeps the legacy
// "column" naming used by the board UI.
const (
	StageBacklog    = "backlog"
	StageTodo       = "todo"
	StageInProgress = "in-progress"
	StageBlocked    = "blocked"
	StageReview     = "review"
	StageDone       = "done"
)

// Task priorities, lowest to highest.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Priorities lists the accepted priority values in order.
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Defaults applied by CreateTask when the caller omits a field.
const (
	DefaultBusiness = "korn-ferry"
	DefaultPriority = PriorityMedium
	DefaultStage    = StageBacklog
	DefaultAssignee = "jarvis"
)

// Task is a single board item.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Business    string    `json:"business"`
	Priority    string    `json:"priority"`
	Stage       string    `json:"column"`
	Outcome     string    `json:"outcome"`
	Assignee    string    `json:"assignee"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Business is a client the board tracks work for.
type Business struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Stage is a position in the task pipeline.
type Stage struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Assignee is a person (or bot) tasks can be assigned to.
type Assignee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Snapshot is the whole persisted board state, read and written as one unit.
type Snapshot struct {
	Businesses []Business `json:"businesses"`
	Stages     []Stage    `json:"columns"`
	Assignees  []Assignee `json:"assignees"`
	Tasks      []Task     `json:"tasks"`
}

// BusinessName resolves a business id to its display name, falling back to
// the raw id for dangling references.
func (s *Snapshot) BusinessName(id string) string {
	for _, b := range s.Businesses {
		if b.ID == id {
			return b.Name
		}
	}
	return id
}

// StageName resolves a stage id to its display name, falling back to the
// raw id for dangling references.
func (s *Snapshot) StageName(id string) string {
	for _, st := range s.Stages {
		if st.ID == id {
			return st.Name
		}
	}
	return id
}

// TaskByID returns a pointer into the snapshot's task slice, or nil.
func (s *Snapshot) TaskByID(id string) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return &s.Tasks[i]
		}
	}
	return nil
}

// Clone deep-copies the snapshot so mutators can work on a scratch copy.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Businesses: append([]Business(nil), s.Businesses...),
		Stages:     append([]Stage(nil), s.Stages...),
		Assignees:  append([]Assignee(nil), s.Assignees...),
		Tasks:      append([]Task(nil), s.Tasks...),
	}
	return out
}

// DefaultSnapshot seeds the reference sets on first boot. Stage order is the
// fixed pipeline; tasks start empty.
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		Businesses: []Business{
			{ID: "korn-ferry", Name: "Korn Ferry", Color: "#4A90D9"},
			{ID: "capture-health", Name: "Capture Health", Color: "#50C878"},
			{ID: "inspectable", Name: "Inspectable", Color: "#FF6B6B"},
			{ID: "synergy", Name: "Synergy Property Development", Color: "#FFB347"},
		},
		Stages: []Stage{
			{ID: StageBacklog, Name: "Backlog", Order: 0},
			{ID: StageTodo, Name: "To Do", Order: 1},
			{ID: StageInProgress, Name: "In Progress", Order: 2},
			{ID: StageBlocked, Name: "Blocked", Order: 3},
			{ID: StageReview, Name: "Review", Order: 4},
			{ID: StageDone, Name: "Done", Order: 5},
		},
		Assignees: []Assignee{
			{ID: "michael", Name: "Michael", Color: "#8B5CF6"},
			{ID: "jarvis", Name: "Jarvis", Color: "#06B6D4"},
		},
		Tasks: []Task{},
	}
}

// ActivityEntry is one line of the human-readable activity feed.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Activity actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionMoved   = "moved"
	ActionDeleted = "deleted"
)

// NotificationEntry is one structured event for the monitoring consumer.
type NotificationEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	TaskID    string    `json:"taskId"`
	TaskTitle string    `json:"taskTitle"`
	User      string    `json:"user"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
