// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/patina-tui/internal/model"
	"github.com/jeranaias/patina-tui/internal/util"
)

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

const conversationsDir = "conversations"

// TranscriptStore persists conversation transcripts under a root
// directory. It holds no conversation logic: the engine owns ordering
// and titles, the store owns the on-disk layout.
type TranscriptStore struct {
	root string
}

// NewTranscriptStore creates a store rooted at the given directory,
// creating the conversations directory eagerly.
func NewTranscriptStore(root string) (*TranscriptStore, error) {
	if err := os.MkdirAll(filepath.Join(root, conversationsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &TranscriptStore{root: root}, nil
}

// Root returns the storage root directory.
func (s *TranscriptStore) Root() string {
	return s.root
}

func (s *TranscriptStore) logPath(id uuid.UUID) string {
	return filepath.Join(s.root, conversationsDir, id.String()+".jsonl")
}

func (s *TranscriptStore) metaPath(id uuid.UUID) string {
	return filepath.Join(s.root, conversationsDir, id.String()+".meta.json")
}

// conversationMeta is the single-object metadata file. The title lives
// here, decoupled from the append-only log, because titles can change
// after creation (rename) while the log never rewrites.
type conversationMeta struct {
	Title string `json:"title"`
}

// =============================================================================
// LOAD
// =============================================================================

// Load scans the storage root and replays every transcript, returning
// conversations sorted by UpdatedAt descending (newest first).
//
// A log file with zero readable lines yields an empty but valid
// conversation. A malformed interior line fails that conversation's
// load: the conversation is skipped and its error is joined into the
// returned error while the remaining transcripts still load. A
// truncated final line is ignored (interrupted append, not corruption).
func (s *TranscriptStore) Load() ([]*model.Conversation, error) {
	dir := filepath.Join(s.root, conversationsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*model.Conversation{}, nil
		}
		return nil, fmt.Errorf("failed to read storage root: %w", err)
	}

	var conversations []*model.Conversation
	var loadErrs []error

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		id, err := uuid.Parse(strings.TrimSuffix(name, ".jsonl"))
		if err != nil {
			// Not one of ours; leave foreign files alone.
			continue
		}

		conv, err := s.loadOne(id)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("conversation %s: %w", id, err))
			continue
		}
		conversations = append(conversations, conv)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	return conversations, errors.Join(loadErrs...)
}

// loadOne replays a single transcript and merges its stored title.
func (s *TranscriptStore) loadOne(id uuid.UUID) (*model.Conversation, error) {
	f, err := os.Open(s.logPath(id))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conv := model.NewConversationWithID(id, model.DefaultTitle)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var pendingErr error
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// An earlier line failed to decode and was not the last line:
		// the transcript is corrupt, not merely truncated.
		if pendingErr != nil {
			return nil, pendingErr
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			pendingErr = fmt.Errorf("malformed message line: %w", err)
			continue
		}
		conv.AddMessage(msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// pendingErr still set here means the bad line was the trailing one:
	// treat it as an interrupted append and ignore it.

	// Replay stamps the wall clock; restore the transcript's own times
	// so recency ordering survives a reload.
	if n := conv.MessageCount(); n > 0 {
		conv.CreatedAt = conv.Messages[0].CreatedAt
		conv.UpdatedAt = conv.Messages[n-1].CreatedAt
	}

	if title, ok := s.readTitle(id); ok && title != "" {
		conv.Title = title
	}

	return conv, nil
}

// readTitle reads the metadata file, reporting ok=false when absent or
// unreadable. Metadata is a re-derivable cache of the title, so a bad
// meta file never fails a load.
func (s *TranscriptStore) readTitle(id uuid.UUID) (string, bool) {
	data, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		return "", false
	}
	var meta conversationMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", false
	}
	return meta.Title, true
}

// =============================================================================
// APPEND
// =============================================================================

// Append durably adds one message to the conversation's log. The log is
// append-only; prior lines are never rewritten. Parent storage is
// created lazily so a brand-new conversation needs no prior setup.
func (s *TranscriptStore) Append(conversationID uuid.UUID, msg model.Message) error {
	path := s.logPath(conversationID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create conversation directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open transcript log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// =============================================================================
// METADATA
// =============================================================================

// PersistMetadata writes the conversation's mutable metadata (title)
// atomically, independent of the append-only message log.
func (s *TranscriptStore) PersistMetadata(conv *model.Conversation) error {
	data, err := json.Marshal(conversationMeta{Title: conv.Title})
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := util.AtomicWriteFile(s.metaPath(conv.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to persist metadata: %w", err)
	}
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes the conversation's log and metadata. Idempotent:
// deleting a conversation that does not exist is not an error.
func (s *TranscriptStore) Delete(id uuid.UUID) error {
	var errs []error
	for _, path := range []string{s.logPath(id), s.metaPath(id)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
