// Package storage keeps the inventory of seen players in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/lmsbridge/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

const playerColumns = `player_id, name, model, ip, count, first_seen, last_seen`

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// UpsertPlayer inserts a player or bumps the sighting counter of an existing one.
// Blank name, model and ip never overwrite known values.
func (r *Repository) UpsertPlayer(ctx context.Context, p models.Player) error {
	query := `
	INSERT INTO players (` + playerColumns + `)
	VALUES (?, ?, ?, ?, 1, ?, ?)
	ON CONFLICT(player_id) DO UPDATE SET
		count = count + 1,
		last_seen = excluded.last_seen,
		name  = CASE WHEN excluded.name  != '' THEN excluded.name  ELSE players.name  END,
		model = CASE WHEN excluded.model != '' THEN excluded.model ELSE players.model END,
		ip    = CASE WHEN excluded.ip    != '' THEN excluded.ip    ELSE players.ip    END;
	`

	// LastSeen doubles as FirstSeen for new records
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Model, p.IP,
		p.LastSeen.UTC(), p.LastSeen.UTC(),
	)

	return err
}

// GetPlayers retrieves all players, most recently seen first.
func (r *Repository) GetPlayers(ctx context.Context) ([]models.Player, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY last_seen DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var players []models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return players, nil
}

// GetPlayer retrieves one player by id. It returns nil when the player is unknown.
func (r *Repository) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE player_id = ?`, id)

	p, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// DeletePlayer removes a player from the inventory.
func (r *Repository) DeletePlayer(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE player_id = ?`, id)
	return err
}

// DeleteSeenBefore removes players whose last sighting is older than cutoff
// and returns how many were deleted.
func (r *Repository) DeleteSeenBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	players, err := r.GetPlayers(ctx)
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, p := range players {
		if !p.LastSeen.Before(cutoff) {
			continue
		}

		if err := r.DeletePlayer(ctx, p.ID); err != nil {
			return deleted, err
		}
		deleted++
	}

	return deleted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(s scanner) (models.Player, error) {
	var p models.Player
	err := s.Scan(&p.ID, &p.Name, &p.Model, &p.IP, &p.Count, &p.FirstSeen, &p.LastSeen)

	return p, err
}
