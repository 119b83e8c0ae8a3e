// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/patina-tui/internal/model"
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	message_id      TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
`

// =============================================================================
// MESSAGE INDEX
// =============================================================================

// MessageIndex indexes message content for conversation search.
type MessageIndex struct {
	db *sql.DB
}

// Open creates or opens the index database at the given path.
func Open(path string) (*MessageIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &MessageIndex{db: db}, nil
}

// Close releases the underlying database.
func (idx *MessageIndex) Close() error {
	return idx.db.Close()
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Add mirrors one appended message into the index.
func (idx *MessageIndex) Add(conversationID uuid.UUID, msg model.Message) error {
	_, err := idx.db.Exec(
		`INSERT OR REPLACE INTO messages (message_id, conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID.String(), conversationID.String(), msg.Role.String(), msg.Content,
		msg.CreatedAt.Format("2006-01-02T15:04:05.000000000Z07:00"),
	)
	if err != nil {
		return fmt.Errorf("failed to index message: %w", err)
	}
	return nil
}

// Remove drops all indexed messages for a conversation.
func (idx *MessageIndex) Remove(conversationID uuid.UUID) error {
	_, err := idx.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID.String())
	if err != nil {
		return fmt.Errorf("failed to remove conversation from index: %w", err)
	}
	return nil
}

// Rebuild replaces the whole index from loaded conversations. Used at
// startup so a stale or missing index self-heals from the transcripts.
func (idx *MessageIndex) Rebuild(conversations []*model.Conversation) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO messages (message_id, conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare rebuild insert: %w", err)
	}
	defer stmt.Close()

	for _, conv := range conversations {
		for _, msg := range conv.Messages {
			if _, err := stmt.Exec(
				msg.ID.String(), conv.ID.String(), msg.Role.String(), msg.Content,
				msg.CreatedAt.Format("2006-01-02T15:04:05.000000000Z07:00"),
			); err != nil {
				return fmt.Errorf("failed to index message: %w", err)
			}
		}
	}

	return tx.Commit()
}

// =============================================================================
// SEARCH
// =============================================================================

// Search returns the IDs of conversations with any message containing
// the query (case-insensitive), most recently active first. An empty
// query matches nothing.
func (idx *MessageIndex) Search(query string) ([]uuid.UUID, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	pattern := "%" + escapeLike(query) + "%"
	rows, err := idx.db.Query(
		`SELECT conversation_id
		 FROM messages
		 WHERE content LIKE ? ESCAPE '\' COLLATE NOCASE
		 GROUP BY conversation_id
		 ORDER BY MAX(created_at) DESC`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// escapeLike escapes LIKE metacharacters in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
