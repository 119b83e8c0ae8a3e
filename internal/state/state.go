// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/patina-tui/internal/index"
	"github.com/jeranaias/patina-tui/internal/llm"
	"github.com/jeranaias/patina-tui/internal/model"
	"github.com/jeranaias/patina-tui/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSendInFlight is returned when a send overlaps an unfinished
	// response for the same conversation.
	ErrSendInFlight = errors.New("a response is already being generated for this conversation")

	// ErrConversationNotFound indicates the referenced conversation no
	// longer exists.
	ErrConversationNotFound = errors.New("conversation not found")
)

// =============================================================================
// APP STATE
// =============================================================================

// AppState owns every conversation and the current selection. All
// access goes through its methods; the RWMutex is never exposed.
type AppState struct {
	mu sync.RWMutex

	// Conversations in sidebar order, newest first. Order changes only
	// on create, delete, explicit reorder, or reload.
	conversations []*model.Conversation

	// Selected conversation ID. Zero value means no selection.
	current uuid.UUID

	// Conversations with a response currently being generated.
	inFlight map[uuid.UUID]struct{}

	store  *storage.TranscriptStore
	driver *llm.Driver
	index  *index.MessageIndex
}

// New builds the engine over a transcript store and driver, replaying
// persisted conversations and selecting the most recent one. A non-nil
// error reports transcripts that failed to replay; the returned state
// is usable either way. The index is optional and best-effort.
func New(store *storage.TranscriptStore, driver *llm.Driver, idx *index.MessageIndex) (*AppState, error) {
	conversations, loadErr := store.Load()

	s := &AppState{
		conversations: conversations,
		inFlight:      make(map[uuid.UUID]struct{}),
		store:         store,
		driver:        driver,
		index:         idx,
	}
	if len(conversations) > 0 {
		s.current = conversations[0].ID
	}

	// A stale or missing index self-heals from the transcripts.
	if idx != nil {
		if err := idx.Rebuild(conversations); err != nil {
			loadErr = errors.Join(loadErr, err)
		}
	}

	return s, loadErr
}

// SetDriver swaps the language model driver, used when configuration
// changes at runtime. In-flight sends keep the driver they started with.
func (s *AppState) SetDriver(driver *llm.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driver = driver
}

// DriverStatus reports whether sends are currently possible.
func (s *AppState) DriverStatus() llm.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driver.Status()
}

// =============================================================================
// READS
// =============================================================================

// ConversationSummaries returns sidebar projections in display order,
// as a fresh slice the caller may keep.
func (s *AppState) ConversationSummaries() []model.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]model.Summary, len(s.conversations))
	for i, conv := range s.conversations {
		summaries[i] = conv.Summary()
	}
	return summaries
}

// ActiveConversation returns a deep clone of the selected conversation,
// falling back to the first when the selection is gone, or nil when
// there are no conversations at all.
func (s *AppState) ActiveConversation() *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.resolveActiveLocked()
	if conv == nil {
		return nil
	}
	return conv.Clone()
}

// resolveActiveLocked returns the live selected conversation, or the
// first one when the selection does not resolve. Callers hold the lock.
func (s *AppState) resolveActiveLocked() *model.Conversation {
	if s.current != uuid.Nil {
		if conv := s.findLocked(s.current); conv != nil {
			return conv
		}
	}
	if len(s.conversations) > 0 {
		return s.conversations[0]
	}
	return nil
}

func (s *AppState) findLocked(id uuid.UUID) *model.Conversation {
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

// SelectConversation makes the given conversation current. Returns
// false if the ID is unknown, leaving the selection unchanged.
func (s *AppState) SelectConversation(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return false
	}
	s.current = id
	return true
}

// StartNewConversation creates an empty conversation at the top of the
// sidebar, persists its placeholder metadata, and selects it.
func (s *AppState) StartNewConversation() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := model.NewConversation()
	s.conversations = append([]*model.Conversation{conv}, s.conversations...)
	s.current = conv.ID

	// Metadata failure is not fatal here; the title persists again on
	// the first message.
	_ = s.store.PersistMetadata(conv)

	return conv.ID
}

// RenameConversation sets a conversation's title and persists the
// metadata. Unknown IDs are a no-op.
func (s *AppState) RenameConversation(id uuid.UUID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil {
		return nil
	}
	conv.Title = title
	return s.store.PersistMetadata(conv)
}

// DeleteConversation removes a conversation from memory and disk.
// Returns false if the ID is unknown. The selection moves to the new
// first conversation, or clears when none remain. Known entries are
// always forgotten in memory even if file removal fails.
func (s *AppState) DeleteConversation(id uuid.UUID) bool {
	s.mu.Lock()

	found := false
	for i, conv := range s.conversations {
		if conv.ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return false
	}

	if s.current == id {
		if len(s.conversations) > 0 {
			s.current = s.conversations[0].ID
		} else {
			s.current = uuid.Nil
		}
	}
	idx := s.index
	s.mu.Unlock()

	// Best effort beyond this point.
	_ = s.store.Delete(id)
	if idx != nil {
		_ = idx.Remove(id)
	}
	return true
}

// ReorderConversations moves the dragged conversation to the position
// currently occupied by the target. Unknown or equal IDs are a no-op.
func (s *AppState) ReorderConversations(dragged, target uuid.UUID) {
	if dragged == target {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from := -1
	for i, conv := range s.conversations {
		if conv.ID == dragged {
			from = i
			break
		}
	}
	if from == -1 {
		return
	}

	conv := s.conversations[from]
	rest := append(s.conversations[:from:from], s.conversations[from+1:]...)

	to := -1
	for i, c := range rest {
		if c.ID == target {
			to = i
			break
		}
	}
	if to == -1 {
		return
	}

	rest = append(rest, nil)
	copy(rest[to+1:], rest[to:])
	rest[to] = conv
	s.conversations = rest
}

// =============================================================================
// SENDING
// =============================================================================

// beginSendLocked ensures a conversation exists for the send and
// reserves it. Callers hold the write lock.
func (s *AppState) beginSendLocked() (*model.Conversation, error) {
	conv := s.resolveActiveLocked()
	if conv == nil {
		conv = model.NewConversation()
		s.conversations = append([]*model.Conversation{conv}, s.conversations...)
	}
	s.current = conv.ID

	if _, busy := s.inFlight[conv.ID]; busy {
		return nil, ErrSendInFlight
	}
	s.inFlight[conv.ID] = struct{}{}
	return conv, nil
}

func (s *AppState) endSend(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// appendUserLocked records the user message in memory and on disk,
// persisting derived-title metadata on a conversation's first message.
// Callers hold the write lock.
func (s *AppState) appendUserLocked(conv *model.Conversation, msg model.Message) error {
	wasEmpty := conv.IsEmpty()
	conv.AddMessage(msg)

	if err := s.store.Append(conv.ID, msg); err != nil {
		return err
	}
	if wasEmpty {
		if err := s.store.PersistMetadata(conv); err != nil {
			return err
		}
	}
	if s.index != nil {
		_ = s.index.Add(conv.ID, msg)
	}
	return nil
}

// appendAssistant re-resolves the conversation by ID and records the
// assistant message. The conversation may have been deleted while the
// provider was responding; the reply is dropped silently in that case.
func (s *AppState) appendAssistant(conversationID uuid.UUID, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		return nil
	}
	conv.AddMessage(msg)
	if err := s.store.Append(conv.ID, msg); err != nil {
		return err
	}
	if s.index != nil {
		_ = s.index.Add(conv.ID, msg)
	}
	return nil
}

// SendUserMessage appends the user message, waits for a complete
// response, and appends it. Blank input is a no-op. The driver call
// runs outside the lock against a history snapshot. On provider error
// the user message stays, in memory and on disk.
func (s *AppState) SendUserMessage(ctx context.Context, content, modelOverride string, temperature *float64) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	s.mu.Lock()
	conv, err := s.beginSendLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	driver := s.driver
	conversationID := conv.ID
	defer s.endSend(conversationID)

	if err := s.appendUserLocked(conv, model.NewUserMessage(content)); err != nil {
		s.mu.Unlock()
		return err
	}
	history := conv.HistorySnapshot()
	s.mu.Unlock()

	resp, err := driver.Respond(ctx, history, modelOverride, temperature)
	if err != nil {
		return err
	}

	return s.appendAssistant(conversationID, resp.Message)
}

// SendUserMessageStream appends the user message and starts a streaming
// response. It returns the pre-allocated assistant message ID and a
// channel carrying the provider's items unchanged, one terminal item,
// then close. Blank input returns a nil channel and no error.
//
// A detached goroutine accumulates deltas and, on a done chunk (or the
// channel closing without one), persists the full assistant message
// against the conversation captured at stream start. On a stream error
// the partial text is discarded and nothing is persisted.
//
// Delivery is lossless for a live consumer, however slowly it drains.
// Cancelling ctx signals abandonment and releases delivery; persistence
// never waits on downstream progress either way.
func (s *AppState) SendUserMessageStream(ctx context.Context, content, modelOverride string, temperature *float64) (uuid.UUID, <-chan llm.StreamResult, error) {
	if strings.TrimSpace(content) == "" {
		return uuid.Nil, nil, nil
	}

	s.mu.Lock()
	conv, err := s.beginSendLocked()
	if err != nil {
		s.mu.Unlock()
		return uuid.Nil, nil, err
	}
	driver := s.driver
	conversationID := conv.ID

	if err := s.appendUserLocked(conv, model.NewUserMessage(content)); err != nil {
		s.mu.Unlock()
		s.endSend(conversationID)
		return uuid.Nil, nil, err
	}
	history := conv.HistorySnapshot()
	s.mu.Unlock()

	upstream, err := driver.RespondStream(ctx, history, modelOverride, temperature)
	if err != nil {
		s.endSend(conversationID)
		return uuid.Nil, nil, err
	}

	assistantID := uuid.New()
	downstream := make(chan llm.StreamResult, 16)
	relay := newStreamRelay(ctx, downstream)

	go s.finalizeStream(conversationID, assistantID, upstream, relay)

	return assistantID, downstream, nil
}

// finalizeStream drains the provider stream, relaying every item and
// persisting the accumulated reply when the stream completes. Pushes
// to the relay never block, so persistence cannot be held up by a
// downstream consumer.
func (s *AppState) finalizeStream(conversationID, assistantID uuid.UUID, upstream <-chan llm.StreamResult, relay *streamRelay) {
	defer relay.finish()
	defer s.endSend(conversationID)

	var buf strings.Builder
	for res := range upstream {
		if res.Err != nil {
			relay.push(res)
			return
		}

		buf.WriteString(res.Chunk.Delta)
		if res.Chunk.Done {
			s.persistStreamed(conversationID, assistantID, buf.String())
			relay.push(res)
			return
		}
		relay.push(res)
	}

	// Closed without a terminal item: implicit completion.
	s.persistStreamed(conversationID, assistantID, buf.String())
}

func (s *AppState) persistStreamed(conversationID, assistantID uuid.UUID, content string) {
	msg := model.NewAssistantMessage(content)
	msg.ID = assistantID
	_ = s.appendAssistant(conversationID, msg)
}

// streamRelay carries stream items from the finalizer to the consumer
// without loss. push appends to an unbounded queue and never blocks;
// a delivery goroutine drains the queue in order, waiting on the
// consumer for as long as it stays live and stopping when the stream
// context is cancelled.
type streamRelay struct {
	mu      sync.Mutex
	wake    *sync.Cond
	pending []llm.StreamResult
	done    bool
}

func newStreamRelay(ctx context.Context, downstream chan<- llm.StreamResult) *streamRelay {
	r := &streamRelay{}
	r.wake = sync.NewCond(&r.mu)
	go r.deliver(ctx, downstream)
	return r
}

// push enqueues one item. Never blocks.
func (r *streamRelay) push(res llm.StreamResult) {
	r.mu.Lock()
	r.pending = append(r.pending, res)
	r.mu.Unlock()
	r.wake.Signal()
}

// finish marks the queue complete. The delivery goroutine closes the
// downstream channel after the last queued item is out.
func (r *streamRelay) finish() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
	r.wake.Signal()
}

func (r *streamRelay) deliver(ctx context.Context, downstream chan<- llm.StreamResult) {
	defer close(downstream)
	for {
		r.mu.Lock()
		for len(r.pending) == 0 && !r.done {
			r.wake.Wait()
		}
		if len(r.pending) == 0 {
			r.mu.Unlock()
			return
		}
		res := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()

		select {
		case downstream <- res:
		case <-ctx.Done():
			return
		}
	}
}

// =============================================================================
// SEARCH
// =============================================================================

// SearchConversations returns summaries of conversations whose messages
// contain the query, newest first. Uses the message index when
// available and falls back to an in-memory scan otherwise. A blank
// query matches nothing.
func (s *AppState) SearchConversations(query string) []model.Summary {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()

	if idx != nil {
		if ids, err := idx.Search(query); err == nil {
			return s.summariesFor(ids)
		}
	}
	return s.scanConversations(query)
}

func (s *AppState) summariesFor(ids []uuid.UUID) []model.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []model.Summary
	for _, id := range ids {
		if conv := s.findLocked(id); conv != nil {
			results = append(results, conv.Summary())
		}
	}
	return results
}

// scanConversations is the indexless fallback, matching titles and
// message content case-insensitively in display order.
func (s *AppState) scanConversations(query string) []model.Summary {
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []model.Summary
	for _, conv := range s.conversations {
		if conversationMatches(conv, needle) {
			results = append(results, conv.Summary())
		}
	}
	return results
}

func conversationMatches(conv *model.Conversation, needle string) bool {
	if strings.Contains(strings.ToLower(conv.Title), needle) {
		return true
	}
	for _, msg := range conv.Messages {
		if strings.Contains(strings.ToLower(msg.Content), needle) {
			return true
		}
	}
	return false
}
