package eventlog

import (
	"context"
	"fmt"
	"time"
)

// EntityKind distinguishes a device event from a group event.
type EntityKind string

const (
	EntityDevice EntityKind = "device"
	EntityGroup  EntityKind = "group"
)

// StateEvent is one recorded state transition.
type StateEvent struct {
	ID          int64
	EntityKind  EntityKind
	EntityID    int
	On          bool
	Brightness  uint8
	Temperature uint8
	Online      bool
	Source      string
	RecordedAt  time.Time
}

// CommandEvent is one recorded command outcome.
type CommandEvent struct {
	ID         int64
	EntityKind EntityKind
	EntityID   int
	Command    string
	MsgID      int
	Outcome    string
	LatencyMS  int64
	RecordedAt time.Time
}

// Repository records state and command events to the event log.
type Repository struct {
	db *DB
}

// NewRepository wraps an open DB.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// RecordState appends a state_events row.
func (r *Repository) RecordState(ctx context.Context, e StateEvent) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state_events (entity_kind, entity_id, on_state, brightness, temperature, online, source, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.EntityKind), e.EntityID, boolToInt(e.On), e.Brightness, e.Temperature, boolToInt(e.Online),
		e.Source, e.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording state event: %w", err)
	}
	return nil
}

// RecordCommand appends a command_events row.
func (r *Repository) RecordCommand(ctx context.Context, e CommandEvent) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_events (entity_kind, entity_id, command, msg_id, outcome, latency_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.EntityKind), e.EntityID, e.Command, e.MsgID, e.Outcome, e.LatencyMS,
		e.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording command event: %w", err)
	}
	return nil
}

// RecentStateEvents returns the most recent state events for an entity,
// newest first, capped at limit.
func (r *Repository) RecentStateEvents(ctx context.Context, kind EntityKind, entityID int, limit int) ([]StateEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_kind, entity_id, on_state, brightness, temperature, online, source, recorded_at
		 FROM state_events WHERE entity_kind = ? AND entity_id = ?
		 ORDER BY recorded_at DESC LIMIT ?`,
		string(kind), entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state events: %w", err)
	}
	defer rows.Close()

	var out []StateEvent
	for rows.Next() {
		var e StateEvent
		var on, online int
		var recordedAt string
		var kindStr string
		if err := rows.Scan(&e.ID, &kindStr, &e.EntityID, &on, &e.Brightness, &e.Temperature, &online, &e.Source, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state event: %w", err)
		}
		e.EntityKind = EntityKind(kindStr)
		e.On = on != 0
		e.Online = online != 0
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentStateEventsAll returns the most recent state events across every
// entity, newest first, capped at limit — used by the diagnostics API's
// unscoped events listing.
func (r *Repository) RecentStateEventsAll(ctx context.Context, limit int) ([]StateEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_kind, entity_id, on_state, brightness, temperature, online, source, recorded_at
		 FROM state_events ORDER BY recorded_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state events: %w", err)
	}
	defer rows.Close()

	var out []StateEvent
	for rows.Next() {
		var e StateEvent
		var on, online int
		var recordedAt string
		var kindStr string
		if err := rows.Scan(&e.ID, &kindStr, &e.EntityID, &on, &e.Brightness, &e.Temperature, &online, &e.Source, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state event: %w", err)
		}
		e.EntityKind = EntityKind(kindStr)
		e.On = on != 0
		e.Online = online != 0
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
