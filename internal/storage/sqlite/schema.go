package sqlite

// schema is applied on open. CREATE IF NOT EXISTS keeps reopening idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	role       TEXT NOT NULL,
	timestamp  TIMESTAMP NOT NULL,
	session_id TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp DESC);

CREATE TABLE IF NOT EXISTS chunks (
	id              TEXT PRIMARY KEY,
	message_id      TEXT NOT NULL REFERENCES messages(id),
	content         TEXT NOT NULL,
	position        INTEGER NOT NULL,
	char_start      INTEGER NOT NULL,
	char_end        INTEGER NOT NULL,
	chunk_type      TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	valid_at        TIMESTAMP NOT NULL,
	invalid_at      TIMESTAMP,
	embedding       BLOB,
	embedding_model TEXT NOT NULL DEFAULT '',
	embedded_at     TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_message ON chunks(message_id, position);
CREATE INDEX IF NOT EXISTS idx_chunks_valid ON chunks(invalid_at) WHERE invalid_at IS NULL;

CREATE TABLE IF NOT EXISTS entities (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	canonical_name  TEXT NOT NULL,
	type            TEXT NOT NULL,
	first_seen      TIMESTAMP NOT NULL,
	last_seen       TIMESTAMP NOT NULL,
	valid_at        TIMESTAMP NOT NULL,
	invalid_at      TIMESTAMP,
	embedding       BLOB,
	embedding_model TEXT NOT NULL DEFAULT '',
	mention_count   INTEGER NOT NULL DEFAULT 1,
	confidence      REAL NOT NULL,
	UNIQUE(canonical_name, type)
);

CREATE INDEX IF NOT EXISTS idx_entities_canonical ON entities(canonical_name);

CREATE TABLE IF NOT EXISTS similarity_edges (
	message_id TEXT NOT NULL REFERENCES messages(id),
	chunk_id   TEXT NOT NULL REFERENCES chunks(id),
	similarity REAL NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (message_id, chunk_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_message ON similarity_edges(message_id, similarity DESC);
`
