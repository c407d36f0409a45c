package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/bossai/internal/game/spawn"
)

// ErrStatusNotFound is returned when no boss status row exists for a spawn point.
var ErrStatusNotFound = errors.New("boss status not found")

var _ spawn.StatusStore = (*BossStatusRepository)(nil)

const statusColumns = `spawn_id, creature_id, encounter, alive, health, phase, died_at, respawn_at, updated_at`

// BossStatusRepository persists spawn.Status rows in the boss_status table.
// It satisfies spawn.StatusStore.
type BossStatusRepository struct {
	db *pgxpool.Pool
}

// NewBossStatusRepository creates a BossStatusRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewBossStatusRepository(db *pgxpool.Pool) *BossStatusRepository {
	return &BossStatusRepository{db: db}
}

// Save upserts s keyed by SpawnID.
//
// Precondition: s.SpawnID and s.CreatureID must be non-empty.
// Postcondition: exactly one row exists for s.SpawnID; a zero UpdatedAt is
// stored as the database's current time.
func (r *BossStatusRepository) Save(ctx context.Context, s spawn.Status) error {
	if s.SpawnID == "" || s.CreatureID == "" {
		return errors.New("postgres.BossStatusRepository.Save: spawn and creature IDs must not be empty")
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO boss_status (`+statusColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
		 ON CONFLICT (spawn_id) DO UPDATE SET
		     creature_id = EXCLUDED.creature_id,
		     encounter   = EXCLUDED.encounter,
		     alive       = EXCLUDED.alive,
		     health      = EXCLUDED.health,
		     phase       = EXCLUDED.phase,
		     died_at     = EXCLUDED.died_at,
		     respawn_at  = EXCLUDED.respawn_at,
		     updated_at  = EXCLUDED.updated_at`,
		s.SpawnID, s.CreatureID, pgtype.UUID{Bytes: s.Encounter, Valid: true}, s.Alive, s.Health, s.Phase,
		nullTime(s.DiedAt), nullTime(s.RespawnAt), nullTime(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting boss status %q: %w", s.SpawnID, err)
	}
	return nil
}

// Get returns the status stored for spawnID.
//
// Postcondition: Returns the Status or ErrStatusNotFound.
func (r *BossStatusRepository) Get(ctx context.Context, spawnID string) (spawn.Status, error) {
	row := r.db.QueryRow(ctx, `SELECT `+statusColumns+` FROM boss_status WHERE spawn_id = $1`, spawnID)
	s, err := scanStatus(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return spawn.Status{}, ErrStatusNotFound
		}
		return spawn.Status{}, fmt.Errorf("querying boss status %q: %w", spawnID, err)
	}
	return s, nil
}

// Load adapts Get to spawn.StatusStore.
func (r *BossStatusRepository) Load(ctx context.Context, spawnID string) (spawn.Status, bool, error) {
	s, err := r.Get(ctx, spawnID)
	if errors.Is(err, ErrStatusNotFound) {
		return spawn.Status{}, false, nil
	}
	if err != nil {
		return spawn.Status{}, false, err
	}
	return s, true, nil
}

// List returns every stored status ordered by spawn ID.
func (r *BossStatusRepository) List(ctx context.Context) ([]spawn.Status, error) {
	return r.query(ctx, `SELECT `+statusColumns+` FROM boss_status ORDER BY spawn_id`)
}

// PendingRespawns returns dead bosses whose respawn is due at or before t, soonest first.
func (r *BossStatusRepository) PendingRespawns(ctx context.Context, t time.Time) ([]spawn.Status, error) {
	return r.query(ctx,
		`SELECT `+statusColumns+` FROM boss_status
		 WHERE NOT alive AND respawn_at IS NOT NULL AND respawn_at <= $1
		 ORDER BY respawn_at, spawn_id`, t)
}

// Delete removes the row for spawnID.
//
// Postcondition: Returns ErrStatusNotFound when no row existed.
func (r *BossStatusRepository) Delete(ctx context.Context, spawnID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM boss_status WHERE spawn_id = $1`, spawnID)
	if err != nil {
		return fmt.Errorf("deleting boss status %q: %w", spawnID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusNotFound
	}
	return nil
}

func (r *BossStatusRepository) query(ctx context.Context, sql string, args ...any) ([]spawn.Status, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying boss statuses: %w", err)
	}
	defer rows.Close()

	out := make([]spawn.Status, 0)
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning boss status: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanStatus(row pgx.Row) (spawn.Status, error) {
	var (
		s         spawn.Status
		encounter pgtype.UUID
		diedAt    *time.Time
		respawnAt *time.Time
	)
	if err := row.Scan(&s.SpawnID, &s.CreatureID, &encounter, &s.Alive, &s.Health, &s.Phase,
		&diedAt, &respawnAt, &s.UpdatedAt); err != nil {
		return spawn.Status{}, err
	}
	if encounter.Valid {
		s.Encounter = uuid.UUID(encounter.Bytes)
	}
	if diedAt != nil {
		s.DiedAt = diedAt.UTC()
	}
	if respawnAt != nil {
		s.RespawnAt = respawnAt.UTC()
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
