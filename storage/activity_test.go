package storage

import (
	"fmt"
	"testing"

	"taskboard-api/domain"
)

func TestActivityLogNewestFirst(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenActivityLog(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	log.Record(domain.ActionCreated, "first")
	log.Record(domain.ActionMoved, "second")

	entries := log.List(0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Details != "second" || entries[1].Details != "first" {
		t.Fatalf("expected newest first, got %q then %q", entries[0].Details, entries[1].Details)
	}
	if entries[0].ID == entries[1].ID {
		t.Fatal("entries must have distinct ids")
	}
}

func TestActivityLogCapEvictsOldestFirst(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenActivityLog(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 0; i < activityCap+25; i++ {
		log.Record(domain.ActionUpdated, fmt.Sprintf("entry-%d", i))
	}

	entries := log.List(0)
	if len(entries) != activityCap {
		t.Fatalf("expected cap of %d, got %d", activityCap, len(entries))
	}
	// Strict FIFO eviction: the newest survives at the head, the oldest
	// retained entry is exactly cap positions behind it.
	if entries[0].Details != fmt.Sprintf("entry-%d", activityCap+24) {
		t.Fatalf("unexpected head %q", entries[0].Details)
	}
	if entries[activityCap-1].Details != "entry-25" {
		t.Fatalf("unexpected tail %q", entries[activityCap-1].Details)
	}
}

func TestActivityLogListLimit(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenActivityLog(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 30; i++ {
		log.Record(domain.ActionUpdated, fmt.Sprintf("entry-%d", i))
	}

	if got := len(log.List(15)); got != 15 {
		t.Fatalf("expected 15 entries, got %d", got)
	}
	if got := len(log.List(100)); got != 30 {
		t.Fatalf("expected all 30 entries, got %d", got)
	}
}

func TestActivityLogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	log, err := OpenActivityLog(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	log.Record(domain.ActionDeleted, "durable")

	reopened, err := OpenActivityLog(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	entries := reopened.List(0)
	if len(entries) != 1 || entries[0].Details != "durable" {
		t.Fatalf("unexpected entries after reopen: %#v", entries)
	}
}
