package devicestore

import (
	"testing"
	"time"

	"github.com/edgeorchestra/orchestra/pkg/apperrors"
)

func newTestDevice(id string) *Device {
	now := time.Now().UTC()
	return &Device{
		ID:           id,
		DisplayName:  "pixel-" + id,
		Hardware:     Hardware{ChipLabel: "snapdragon", CPUCores: 8},
		Status:       StatusOnline,
		RegisteredAt: now,
		LastSeenAt:   now,
	}
}

func TestMemoryStoreRegisterAndGet(t *testing.T) {
	s := NewMemoryStore()
	d := newTestDevice("dev-1")
	if err := s.Register(d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := s.Get("dev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DisplayName != d.DisplayName {
		t.Errorf("got %q want %q", got.DisplayName, d.DisplayName)
	}
}

func TestMemoryStoreRegisterDuplicateRejected(t *testing.T) {
	s := NewMemoryStore()
	d := newTestDevice("dev-1")
	if err := s.Register(d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := s.Register(d)
	if !apperrors.IsFailedPrecondition(err) {
		t.Fatalf("expected failed_precondition, got %v", err)
	}
}

func TestMemoryStoreGetMissingIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get("missing")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestMemoryStoreUpdateBumpsLastSeen(t *testing.T) {
	s := NewMemoryStore()
	d := newTestDevice("dev-1")
	d.LastSeenAt = time.Now().Add(-time.Hour).UTC()
	if err := s.Register(d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	offline := StatusOffline
	updated, err := s.Update("dev-1", Update{Status: &offline})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != StatusOffline {
		t.Errorf("expected status offline, got %v", updated.Status)
	}
	if !updated.LastSeenAt.After(d.LastSeenAt) {
		t.Errorf("expected last_seen_at to advance")
	}
}

func TestMemoryStoreListAllFiltersByStatusOrderedNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	d1 := newTestDevice("dev-1")
	d1.RegisteredAt = time.Now().Add(-time.Hour)
	d2 := newTestDevice("dev-2")
	d2.Status = StatusTraining
	if err := s.Register(d1); err != nil {
		t.Fatalf("Register d1: %v", err)
	}
	if err := s.Register(d2); err != nil {
		t.Fatalf("Register d2: %v", err)
	}

	all, err := s.ListAll(nil)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 || all[0].ID != "dev-2" {
		t.Fatalf("expected dev-2 first (newest), got %+v", all)
	}

	online := StatusOnline
	filtered, err := s.ListAll(&online)
	if err != nil {
		t.Fatalf("ListAll filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "dev-1" {
		t.Fatalf("expected only dev-1 online, got %+v", filtered)
	}
}

func TestMemoryStoreDeleteMissingIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	err := s.Delete("missing")
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
