// Package maintenance provides one-shot tasks that clean and refresh the player inventory.
package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/lmsbridge/internal/config"
	"github.com/woozymasta/lmsbridge/internal/control"
	"github.com/woozymasta/lmsbridge/internal/models"
	"github.com/woozymasta/lmsbridge/internal/slim"
	"github.com/woozymasta/lmsbridge/internal/storage"
)

// Result counts the outcome of a maintenance task.
type Result struct {
	Updated int
	Deleted int
	Skipped int
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository, ctl *control.Controller) bool {
	if cfg.Storage.PruneOlder > 0 {
		cutoff := time.Now().Add(-cfg.Storage.PruneOlder)
		log.Info().Time("cutoff", cutoff).Msg("Pruning players not seen since cutoff...")

		count, err := store.DeleteSeenBefore(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune players")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}

		return true
	}

	if !cfg.Storage.CheckAll {
		return false
	}

	res, err := CheckAll(ctx, store, ctl, cfg.Storage.Workers)
	if err != nil {
		log.Error().Err(err).Msg("Check all failed")
		return true
	}

	log.Info().
		Int("updated", res.Updated).
		Int("deleted", res.Deleted).
		Int("skipped", res.Skipped).
		Msg("Maintenance task completed")

	return true
}

// CheckAll asks the server whether every stored player is still connected.
// Connected players are refreshed, disconnected or unknown ones are deleted. Players whose
// check failed because the server itself was unreachable are left untouched.
func CheckAll(ctx context.Context, store *storage.Repository, ctl *control.Controller, workers int) (Result, error) {
	players, err := store.GetPlayers(ctx)
	if err != nil {
		return Result{}, err
	}

	if len(players) == 0 {
		log.Info().Msg("No players found for maintenance")
		return Result{}, nil
	}

	pinned, err := ctl.Pin(ctx)
	if err != nil {
		return Result{}, err
	}

	if workers <= 0 {
		workers = 1
	}

	log.Info().Int("count", len(players)).Int("workers", workers).Msg("Starting 'Check All' task...")
	return runWorkerPool(ctx, players, store, pinned, workers), nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeUpdated
	outcomeDeleted
)

func runWorkerPool(ctx context.Context, players []models.Player, store *storage.Repository, ctl *control.Controller, workers int) Result {
	jobs := make(chan models.Player, len(players))
	outcomes := make(chan outcome, len(players))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				outcomes <- processPlayer(ctx, p, store, ctl)
			}
		}()
	}

	// Send jobs
	for _, p := range players {
		jobs <- p
	}
	close(jobs)

	wg.Wait()
	close(outcomes)

	var res Result
	for o := range outcomes {
		switch o {
		case outcomeUpdated:
			res.Updated++
		case outcomeDeleted:
			res.Deleted++
		default:
			res.Skipped++
		}
	}

	return res
}

func processPlayer(ctx context.Context, p models.Player, store *storage.Repository, ctl *control.Controller) outcome {
	logCtx := log.With().
		Str("player", p.ID).
		Str("name", p.Name).
		Logger()

	connected, err := ctl.Connected(ctx, p.ID)
	if err != nil && !errors.Is(err, slim.ErrNoAnswer) {
		logCtx.Warn().Err(err).Msg("Server unreachable, player left as is")
		return outcomeSkipped
	}

	if !connected {
		logCtx.Debug().Err(err).Msg("Player gone, deleting")
		if err := store.DeletePlayer(ctx, p.ID); err != nil {
			logCtx.Error().Err(err).Msg("Failed to delete player")
			return outcomeSkipped
		}
		return outcomeDeleted
	}

	p.LastSeen = time.Now()
	if err := store.UpsertPlayer(ctx, p); err != nil {
		logCtx.Error().Err(err).Msg("Failed to update player")
		return outcomeSkipped
	}

	logCtx.Trace().Msg("Player updated successfully")
	return outcomeUpdated
}
