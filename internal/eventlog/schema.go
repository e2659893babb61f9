package eventlog

// schemaSQL is applied idempotently on every Open; it is small enough
// (two tables) that it does not need the teacher's full up/down
// migration runner.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS state_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_kind TEXT    NOT NULL, -- "device" or "group"
	entity_id   INTEGER NOT NULL,
	on_state    INTEGER,
	brightness  INTEGER,
	temperature INTEGER,
	online      INTEGER,
	source      TEXT    NOT NULL, -- e.g. "mesh_status" (written by the reconciler)
	recorded_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_state_events_entity
	ON state_events (entity_kind, entity_id, recorded_at);

CREATE TABLE IF NOT EXISTS command_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_kind  TEXT    NOT NULL,
	entity_id    INTEGER NOT NULL,
	command      TEXT    NOT NULL,
	msg_id       INTEGER NOT NULL,
	outcome      TEXT    NOT NULL, -- "acked", "timeout", "sent_no_ack_path"
	latency_ms   INTEGER,
	recorded_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_command_events_entity
	ON command_events (entity_kind, entity_id, recorded_at);
`
