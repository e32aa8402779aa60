package api

import (
	"bufio"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"taskboard-api/domain"
	"taskboard-api/storage"
	"taskboard-api/stream"
)

type boardServer struct {
	srv    *httptest.Server
	broker *stream.Broker
}

func newBoardServer(t *testing.T) *boardServer {
	t.Helper()
	dir := t.TempDir()
	logger := nullLogger()

	store, err := storage.NewStore(dir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	activity, err := storage.OpenActivityLog(dir, logger)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	notifications, err := storage.OpenNotificationQueue(dir, logger)
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	contacts, err := storage.OpenContactLog(dir)
	if err != nil {
		t.Fatalf("contacts: %v", err)
	}
	board := storage.NewCache(store, nil, 0)
	broker := stream.NewBroker(logger)
	engine := domain.NewEngine(board, activity, notifications, broker, domain.EngineConfig{
		AutomationUser: "jarvis",
		Reviewer:       "michael",
		Logger:         logger,
	})

	e := echo.New()
	Register(e, Config{
		Board:         board,
		Engine:        engine,
		Activity:      activity,
		Notifications: notifications,
		Contacts:      contacts,
		Broker:        broker,
		Users:         map[string]string{"michael": "pw", "jarvis": "pw"},
		Logger:        logger,
	})

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return &boardServer{srv: srv, broker: broker}
}

func (b *boardServer) do(t *testing.T, user, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, b.srv.URL+path, nil)
	} else {
		req, err = http.NewRequest(method, b.srv.URL+path, strings.NewReader(body))
	}
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != "" {
		req.SetBasicAuth(user, "pw")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

// subscribeSSE opens the push channel and forwards decoded frames.
func subscribeSSE(t *testing.T, b *boardServer) <-chan stream.Frame {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.srv.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	req.SetBasicAuth("michael", "pw")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream connect: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status %d", resp.StatusCode)
	}

	frames := make(chan stream.Frame, 32)
	go func() {
		defer close(frames)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var frame stream.Frame
			if err := sonic.ConfigStd.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
				continue
			}
			frames <- frame
		}
	}()

	// Give the subscription a moment to register before mutations start.
	deadline := time.Now().Add(time.Second)
	for b.broker.ViewerCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return frames
}

func waitForFrame(t *testing.T, frames <-chan stream.Frame, event string) stream.Frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				t.Fatalf("stream closed while waiting for %s", event)
			}
			if frame.Event == event {
				return frame
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s frame", event)
		}
	}
}

func TestBoardEndToEnd(t *testing.T) {
	b := newBoardServer(t)
	frames := subscribeSSE(t, b)

	// Unauthenticated access to the board is refused.
	resp, _ := b.do(t, "", http.MethodGet, "/api/data", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.StatusCode)
	}

	// Scenario: create with defaults.
	resp, body := b.do(t, "michael", http.MethodPost, "/api/tasks", `{"title":"Fix leak","business":"capture-health"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	var task domain.Task
	if err := sonic.ConfigStd.Unmarshal(body, &task); err != nil {
		t.Fatalf("decode created task: %v", err)
	}
	if task.Priority != domain.PriorityMedium || task.Stage != domain.StageBacklog || task.Assignee != domain.DefaultAssignee {
		t.Fatalf("defaults not applied: %#v", task)
	}
	waitForFrame(t, frames, domain.EventTaskCreated)

	// Move into in-progress, then attempt the gated move without outcome.
	resp, body = b.do(t, "michael", http.MethodPut, "/api/tasks/"+task.ID, `{"column":"in-progress"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move to in-progress: %d %s", resp.StatusCode, body)
	}
	waitForFrame(t, frames, domain.EventTaskMoved)

	resp, body = b.do(t, "michael", http.MethodPut, "/api/tasks/"+task.ID, `{"column":"review"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for outcome-less gated move, got %d %s", resp.StatusCode, body)
	}

	resp, body = b.do(t, "michael", http.MethodGet, "/api/data", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get data: %d", resp.StatusCode)
	}
	var snap domain.Snapshot
	if err := sonic.ConfigStd.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if got := snap.TaskByID(task.ID); got == nil || got.Stage != domain.StageInProgress {
		t.Fatalf("rejected gated move must leave stage unchanged, got %#v", got)
	}

	// Gated move with outcome: stage, outcome and forced reviewer assignee.
	resp, body = b.do(t, "michael", http.MethodPut, "/api/tasks/"+task.ID, `{"column":"review","outcome":"Deployed v2","assignee":"jarvis"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("gated move: %d %s", resp.StatusCode, body)
	}
	var moved domain.Task
	if err := sonic.ConfigStd.Unmarshal(body, &moved); err != nil {
		t.Fatalf("decode moved task: %v", err)
	}
	if moved.Stage != domain.StageReview || moved.Outcome != "Deployed v2" || moved.Assignee != "michael" {
		t.Fatalf("gated move result wrong: %#v", moved)
	}
	frame := waitForFrame(t, frames, domain.EventTaskMoved)
	payload, err := sonic.ConfigStd.Marshal(frame.Data)
	if err != nil {
		t.Fatalf("re-encode payload: %v", err)
	}
	var move domain.MovePayload
	if err := sonic.ConfigStd.Unmarshal(payload, &move); err != nil {
		t.Fatalf("decode move payload: %v", err)
	}
	if move.OldStage != domain.StageInProgress || move.NewStage != domain.StageReview {
		t.Fatalf("unexpected move payload %#v", move)
	}

	// Title edits are locked outside backlog.
	resp, body = b.do(t, "michael", http.MethodPut, "/api/tasks/"+task.ID, `{"title":"New title"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for locked edit, got %d %s", resp.StatusCode, body)
	}

	// Activity feed has the move at its head.
	resp, body = b.do(t, "michael", http.MethodGet, "/api/activity?limit=15", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activity: %d", resp.StatusCode)
	}
	var activity activityResponse
	if err := sonic.ConfigStd.Unmarshal(body, &activity); err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if len(activity.Activities) == 0 || activity.Activities[0].Action != domain.ActionMoved {
		t.Fatalf("expected moved entry at head, got %#v", activity.Activities)
	}

	// Notifications recorded for the human actor, then bulk-marked read.
	resp, body = b.do(t, "jarvis", http.MethodGet, "/api/notifications", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications: %d", resp.StatusCode)
	}
	var notifications notificationsResponse
	if err := sonic.ConfigStd.Unmarshal(body, &notifications); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(notifications.Notifications) == 0 {
		t.Fatal("expected notifications for human-actor mutations")
	}
	resp, _ = b.do(t, "jarvis", http.MethodPost, "/api/notifications/read", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark read: %d", resp.StatusCode)
	}
	_, body = b.do(t, "jarvis", http.MethodGet, "/api/notifications", "")
	if err := sonic.ConfigStd.Unmarshal(body, &notifications); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	for _, n := range notifications.Notifications {
		if !n.Read {
			t.Fatalf("notification %s still unread", n.ID)
		}
	}

	// Delete, then delete again.
	resp, _ = b.do(t, "michael", http.MethodDelete, "/api/tasks/"+task.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	waitForFrame(t, frames, domain.EventTaskDeleted)
	resp, _ = b.do(t, "michael", http.MethodDelete, "/api/tasks/"+task.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on repeat delete, got %d", resp.StatusCode)
	}
}

func TestContactIntakeEndToEnd(t *testing.T) {
	b := newBoardServer(t)
	frames := subscribeSSE(t, b)

	resp, body := b.do(t, "", http.MethodPost, "/api/contact",
		`{"name":"Ada","email":"ada@example.com","phone":"555-0100","message":"Roof inspection"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("contact: %d %s", resp.StatusCode, body)
	}

	frame := waitForFrame(t, frames, domain.EventTaskCreated)
	payload, err := sonic.ConfigStd.Marshal(frame.Data)
	if err != nil {
		t.Fatalf("re-encode payload: %v", err)
	}
	var lead domain.Task
	if err := sonic.ConfigStd.Unmarshal(payload, &lead); err != nil {
		t.Fatalf("decode lead task: %v", err)
	}
	if !strings.HasPrefix(lead.Title, "Website Lead: Ada") {
		t.Fatalf("unexpected lead title %q", lead.Title)
	}
	if lead.Business != "synergy" || lead.Priority != domain.PriorityUrgent ||
		lead.Stage != domain.StageTodo || lead.Assignee != "michael" {
		t.Fatalf("unexpected lead task %#v", lead)
	}
}
