package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/woozymasta/lmsbridge/internal/config"
	"github.com/woozymasta/lmsbridge/internal/control"
	"github.com/woozymasta/lmsbridge/internal/fake"
	"github.com/woozymasta/lmsbridge/internal/models"
	"github.com/woozymasta/lmsbridge/internal/storage"
)

const (
	online  = "00:04:20:00:00:01"
	offline = "00:04:20:00:00:02"
	unknown = "00:04:20:00:00:03"
)

func setup(t *testing.T) (*storage.Repository, *fake.Server, *control.Controller) {
	t.Helper()

	lms := fake.NewServer(
		fake.Player{ID: online, Name: "Kitchen", Connected: true},
		fake.Player{ID: offline, Name: "Garage"},
	)
	if err := lms.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("failed to start fake server: %v", err)
	}
	t.Cleanup(func() { _ = lms.Close() })

	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	past := time.Now().Add(-72 * time.Hour)
	for _, id := range []string{online, offline, unknown} {
		if err := store.UpsertPlayer(context.Background(), models.Player{ID: id, LastSeen: past}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	ctl := control.New(control.StaticHost(lms.Host()), config.LMS{Port: lms.Port(), Timeout: 2 * time.Second})
	return store, lms, ctl
}

func TestCheckAll(t *testing.T) {
	store, _, ctl := setup(t)
	ctx := context.Background()

	res, err := CheckAll(ctx, store, ctl, 2)
	if err != nil {
		t.Fatalf("CheckAll returned error: %v", err)
	}

	if res != (Result{Updated: 1, Deleted: 2}) {
		t.Errorf("result = %+v, want 1 updated and 2 deleted", res)
	}

	players, err := store.GetPlayers(ctx)
	if err != nil {
		t.Fatalf("GetPlayers: %v", err)
	}
	if len(players) != 1 || players[0].ID != online {
		t.Fatalf("remaining = %+v", players)
	}
	if players[0].Count != 2 || time.Since(players[0].LastSeen) > time.Minute {
		t.Errorf("connected player not refreshed: %+v", players[0])
	}
}

func TestCheckAllServerDown(t *testing.T) {
	store, lms, ctl := setup(t)
	_ = lms.Close()

	res, err := CheckAll(context.Background(), store, ctl, 4)
	if err != nil {
		t.Fatalf("CheckAll returned error: %v", err)
	}
	if res.Skipped != 3 || res.Deleted != 0 {
		t.Errorf("result = %+v, want all skipped", res)
	}

	players, _ := store.GetPlayers(context.Background())
	if len(players) != 3 {
		t.Errorf("inventory changed while server was down: %+v", players)
	}
}

func TestRunPrune(t *testing.T) {
	store, _, ctl := setup(t)
	ctx := context.Background()

	if err := store.UpsertPlayer(ctx, models.Player{ID: "fresh", LastSeen: time.Now()}); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}

	cfg := &config.Config{}
	cfg.Storage.PruneOlder = 24 * time.Hour

	if !Run(ctx, cfg, store, ctl) {
		t.Fatal("prune should report that a task ran")
	}

	players, _ := store.GetPlayers(ctx)
	if len(players) != 1 || players[0].ID != "fresh" {
		t.Errorf("remaining = %+v", players)
	}
}

func TestRunNothingToDo(t *testing.T) {
	store, _, ctl := setup(t)

	if Run(context.Background(), &config.Config{}, store, ctl) {
		t.Error("no task flags set, Run must return false")
	}
}
