// Package sqlite provides the embedded storage backend. Embeddings are
// stored as little-endian float32 BLOBs; similarity math happens in the
// engine, not in SQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scrypster/recall/internal/storage"
	"github.com/scrypster/recall/pkg/types"
)

// Store implements storage.Store on a single SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database in tests.
func New(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc.org/sqlite handles one writer at a time; a single connection
	// avoids SQLITE_BUSY under concurrent analysis.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveMessage stores a chat message.
func (s *Store) SaveMessage(ctx context.Context, msg *types.ChatMessage) error {
	if msg == nil || msg.ID == "" || strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("%w: message requires id and content", storage.ErrInvalidInput)
	}
	if msg.Role == "" {
		return fmt.Errorf("%w: message requires a role", storage.ErrInvalidInput)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, content, role, timestamp, session_id)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Content, msg.Role, msg.Timestamp.UTC(), msg.SessionID)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *Store) GetMessage(ctx context.Context, id string) (*types.ChatMessage, error) {
	var msg types.ChatMessage
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content, role, timestamp, session_id
		FROM messages WHERE id = ?`, id).
		Scan(&msg.ID, &msg.Content, &msg.Role, &msg.Timestamp, &msg.SessionID)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// RecentMessages returns up to limit messages strictly older than before,
// newest first.
func (s *Store) RecentMessages(ctx context.Context, before time.Time, limit int) ([]types.ChatMessage, error) {
	if limit < 1 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, role, timestamp, session_id
		FROM messages
		WHERE timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Content, &msg.Role, &msg.Timestamp, &msg.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveChunks stores a message's chunks in one transaction.
func (s *Store) SaveChunks(ctx context.Context, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if chunks[i].ID == "" || chunks[i].MessageID == "" {
			return fmt.Errorf("%w: chunk %d requires id and message id", storage.ErrInvalidInput, i)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, message_id, content, position, char_start, char_end,
			chunk_type, created_at, valid_at, invalid_at, embedding, embedding_model, embedded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		var blob []byte
		if len(c.Embedding) > 0 {
			blob = encodeEmbedding(c.Embedding)
		}
		_, err := stmt.ExecContext(ctx,
			c.ID, c.MessageID, c.Content, c.Position, c.CharStart, c.CharEnd,
			string(c.Type), c.CreatedAt.UTC(), c.ValidAt.UTC(), nullTime(c.InvalidAt),
			blob, c.EmbeddingModel, nullTime(c.EmbeddedAt))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

const chunkColumns = `id, message_id, content, position, char_start, char_end,
	chunk_type, created_at, valid_at, invalid_at, embedding, embedding_model, embedded_at`

// ChunksWithEmbeddings returns every valid chunk that carries an embedding,
// optionally restricted to chunks created at or after since.
func (s *Store) ChunksWithEmbeddings(ctx context.Context, since time.Time) ([]types.Chunk, error) {
	query := `
		SELECT ` + chunkColumns + `
		FROM chunks
		WHERE embedding IS NOT NULL AND invalid_at IS NULL`
	var args []interface{}
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY created_at ASC, position ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embedded chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ChunksForMessage returns a message's chunks ordered by position.
func (s *Store) ChunksForMessage(ctx context.Context, messageID string) ([]types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`
		FROM chunks
		WHERE message_id = ?
		ORDER BY position ASC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query message chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// InvalidateChunk marks a chunk invalid without deleting it.
func (s *Store) InvalidateChunk(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chunks SET invalid_at = ? WHERE id = ? AND invalid_at IS NULL`,
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to invalidate chunk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpsertEntity inserts or merges an entity keyed by (canonical_name, type).
// On conflict mention_count increments, confidence averages with the
// incoming value, and last_seen advances.
func (s *Store) UpsertEntity(ctx context.Context, entity *types.Entity) (*types.Entity, error) {
	if entity == nil || entity.CanonicalName == "" || entity.Type == "" {
		return nil, fmt.Errorf("%w: entity requires canonical name and type", storage.ErrInvalidInput)
	}
	if entity.Confidence < 0 || entity.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence out of range", storage.ErrInvalidInput)
	}

	var blob []byte
	if len(entity.Embedding) > 0 {
		blob = encodeEmbedding(entity.Embedding)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (id, name, canonical_name, type, first_seen, last_seen,
			valid_at, invalid_at, embedding, embedding_model, mention_count, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(canonical_name, type) DO UPDATE SET
			mention_count = mention_count + 1,
			confidence    = (confidence + excluded.confidence) / 2.0,
			last_seen     = excluded.last_seen,
			name          = excluded.name`,
		entity.ID, entity.Name, entity.CanonicalName, entity.Type,
		entity.FirstSeen.UTC(), entity.LastSeen.UTC(),
		entity.ValidAt.UTC(), nullTime(entity.InvalidAt),
		blob, entity.EmbeddingModel, entity.Confidence)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert entity: %w", err)
	}

	return s.GetEntity(ctx, entity.CanonicalName, entity.Type)
}

const entityColumns = `id, name, canonical_name, type, first_seen, last_seen,
	valid_at, invalid_at, embedding, embedding_model, mention_count, confidence`

// GetEntity retrieves an entity by canonical name and type.
func (s *Store) GetEntity(ctx context.Context, canonicalName, entityType string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entityColumns+`
		FROM entities WHERE canonical_name = ? AND type = ?`,
		canonicalName, entityType)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return entity, nil
}

// EntitiesByNames returns entities whose canonical name is in names.
func (s *Store) EntitiesByNames(ctx context.Context, names []string) ([]types.Entity, error) {
	if len(names) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(names))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entityColumns+`
		FROM entities
		WHERE canonical_name IN (`+placeholders+`)
		ORDER BY mention_count DESC, canonical_name ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []types.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

// SaveEdges stores similarity edges from a message to prior chunks,
// replacing any edges from an earlier analysis of the same message.
func (s *Store) SaveEdges(ctx context.Context, messageID string, similar []types.SimilarChunk) error {
	if messageID == "" {
		return fmt.Errorf("%w: message id required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM similarity_edges WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("failed to clear edges: %w", err)
	}

	now := time.Now().UTC()
	for _, sc := range similar {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO similarity_edges (message_id, chunk_id, similarity, created_at)
			VALUES (?, ?, ?, ?)`,
			messageID, sc.Chunk.ID, sc.Similarity, now)
		if err != nil {
			return fmt.Errorf("failed to insert edge: %w", err)
		}
	}

	return tx.Commit()
}

// EdgesForMessage returns stored edges for a message, strongest first.
func (s *Store) EdgesForMessage(ctx context.Context, messageID string) ([]types.SimilarChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("c", chunkColumns)+`, e.similarity
		FROM similarity_edges e
		JOIN chunks c ON c.id = e.chunk_id
		WHERE e.message_id = ?
		ORDER BY e.similarity DESC`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []types.SimilarChunk
	for rows.Next() {
		chunk, similarity, err := scanChunkWithScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, types.SimilarChunk{Chunk: *chunk, Similarity: similarity})
	}
	return edges, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunks(rows *sql.Rows) ([]types.Chunk, error) {
	var chunks []types.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

func scanChunk(row rowScanner) (*types.Chunk, error) {
	var c types.Chunk
	var chunkType string
	var invalidAt, embeddedAt sql.NullTime
	var blob []byte

	err := row.Scan(&c.ID, &c.MessageID, &c.Content, &c.Position, &c.CharStart, &c.CharEnd,
		&chunkType, &c.CreatedAt, &c.ValidAt, &invalidAt, &blob, &c.EmbeddingModel, &embeddedAt)
	if err != nil {
		return nil, err
	}

	c.Type = types.ChunkType(chunkType)
	if invalidAt.Valid {
		t := invalidAt.Time
		c.InvalidAt = &t
	}
	if embeddedAt.Valid {
		t := embeddedAt.Time
		c.EmbeddedAt = &t
	}
	if len(blob) > 0 {
		c.Embedding = decodeEmbedding(blob)
	}
	return &c, nil
}

func scanChunkWithScore(rows *sql.Rows) (*types.Chunk, float64, error) {
	var c types.Chunk
	var chunkType string
	var invalidAt, embeddedAt sql.NullTime
	var blob []byte
	var similarity float64

	err := rows.Scan(&c.ID, &c.MessageID, &c.Content, &c.Position, &c.CharStart, &c.CharEnd,
		&chunkType, &c.CreatedAt, &c.ValidAt, &invalidAt, &blob, &c.EmbeddingModel, &embeddedAt,
		&similarity)
	if err != nil {
		return nil, 0, err
	}

	c.Type = types.ChunkType(chunkType)
	if invalidAt.Valid {
		t := invalidAt.Time
		c.InvalidAt = &t
	}
	if embeddedAt.Valid {
		t := embeddedAt.Time
		c.EmbeddedAt = &t
	}
	if len(blob) > 0 {
		c.Embedding = decodeEmbedding(blob)
	}
	return &c, similarity, nil
}

func scanEntity(row rowScanner) (*types.Entity, error) {
	var e types.Entity
	var invalidAt sql.NullTime
	var blob []byte

	err := row.Scan(&e.ID, &e.Name, &e.CanonicalName, &e.Type, &e.FirstSeen, &e.LastSeen,
		&e.ValidAt, &invalidAt, &blob, &e.EmbeddingModel, &e.MentionCount, &e.Confidence)
	if err != nil {
		return nil, err
	}

	if invalidAt.Valid {
		t := invalidAt.Time
		e.InvalidAt = &t
	}
	if len(blob) > 0 {
		e.Embedding = decodeEmbedding(blob)
	}
	return &e, nil
}

// encodeEmbedding serializes a vector as little-endian float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding is the inverse of encodeEmbedding. Trailing partial values
// are dropped.
func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// prefixColumns qualifies every column in list with a table alias.
func prefixColumns(alias, list string) string {
	cols := strings.Split(list, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

var _ storage.Store = (*Store)(nil)
