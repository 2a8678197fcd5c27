package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/woozymasta/lmsbridge/internal/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestUpsertPlayerCountsSightings(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	if err := repo.UpsertPlayer(ctx, models.Player{
		ID: "p1", Name: "Kitchen", Model: "squeezelite", IP: "10.0.0.5", LastSeen: first,
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Blank fields keep what is already stored
	if err := repo.UpsertPlayer(ctx, models.Player{ID: "p1", Name: "Kitchen 2", LastSeen: second}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	p, err := repo.GetPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p == nil {
		t.Fatal("player not found")
	}

	if p.Count != 2 {
		t.Errorf("count = %d, want 2", p.Count)
	}
	if p.Name != "Kitchen 2" {
		t.Errorf("name = %q, want Kitchen 2", p.Name)
	}
	if p.Model != "squeezelite" || p.IP != "10.0.0.5" {
		t.Errorf("blank fields overwrote stored values: %+v", p)
	}
	if !p.FirstSeen.Equal(first) || !p.LastSeen.Equal(second) {
		t.Errorf("first_seen = %s, last_seen = %s", p.FirstSeen, p.LastSeen)
	}
}

func TestGetPlayerUnknown(t *testing.T) {
	repo := newTestRepository(t)

	p, err := repo.GetPlayer(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if p != nil {
		t.Errorf("expected nil, got %+v", p)
	}
}

func TestGetPlayersMostRecentFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sightings := map[string]time.Duration{"old": 0, "new": 2 * time.Hour, "mid": time.Hour}
	for id, offset := range sightings {
		if err := repo.UpsertPlayer(ctx, models.Player{ID: id, LastSeen: now.Add(offset)}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	players, err := repo.GetPlayers(ctx)
	if err != nil {
		t.Fatalf("GetPlayers: %v", err)
	}

	var ids []string
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	if len(ids) != 3 || ids[0] != "new" || ids[1] != "mid" || ids[2] != "old" {
		t.Errorf("order = %v, want [new mid old]", ids)
	}
}

func TestDeleteSeenBefore(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = repo.UpsertPlayer(ctx, models.Player{ID: "stale", LastSeen: now.Add(-48 * time.Hour)})
	_ = repo.UpsertPlayer(ctx, models.Player{ID: "fresh", LastSeen: now})

	deleted, err := repo.DeleteSeenBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteSeenBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	players, _ := repo.GetPlayers(ctx)
	if len(players) != 1 || players[0].ID != "fresh" {
		t.Errorf("remaining = %+v", players)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	repo := newTestRepository(t)

	if err := runMigrations(context.Background(), repo.db); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
}
