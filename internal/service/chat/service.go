package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/parleylabs/parley/internal/model/chat"
	"github.com/parleylabs/parley/internal/store"
)

const historyKeyPrefix = "chat:history:"

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrEmptyMessage    = errors.New("message is required")
	ErrUpstream        = errors.New("model invocation failed")
	ErrEmptyReply      = errors.New("model returned an empty reply")
)

// Generator is the inference collaborator. A nil Generator puts the service
// in development mode: replies are a deterministic echo of the input.
type Generator interface {
	Generate(ctx context.Context, history []chat.Message) (*schema.Message, error)
	Stream(ctx context.Context, history []chat.Message) (*schema.StreamReader[*schema.Message], error)
	StreamingEnabled() bool
}

// Service owns per-session conversation state: each exchange loads the
// stored history, appends the user turn, asks the generator for a reply,
// appends it, re-bounds the window and persists the result.
type Service struct {
	store        store.Store
	gen          Generator
	historyLimit int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the state holder to its storage port and generator.
func NewService(st store.Store, gen Generator, historyLimit int) *Service {
	return &Service{
		store:        st,
		gen:          gen,
		historyLimit: historyLimit,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Exchange runs one request/reply cycle for the session and returns the
// assistant reply. History is persisted only when generation succeeds.
func (s *Service) Exchange(ctx context.Context, sessionID, message string) (string, error) {
	return s.exchange(ctx, sessionID, message, nil)
}

// ExchangeStream behaves like Exchange but forwards reply chunks to onDelta
// as they arrive. The full reply is still returned and persisted at the end.
func (s *Service) ExchangeStream(ctx context.Context, sessionID, message string, onDelta func(string)) (string, error) {
	return s.exchange(ctx, sessionID, message, onDelta)
}

// History returns the stored transcript for the session, empty if none.
func (s *Service) History(ctx context.Context, sessionID string) (chat.History, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	return s.loadHistory(ctx, sessionID)
}

// Clear drops the stored transcript for the session.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	return s.store.Delete(ctx, historyKey(sessionID))
}

func (s *Service) exchange(ctx context.Context, sessionID, message string, onDelta func(string)) (string, error) {
	if sessionID == "" {
		return "", ErrSessionRequired
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}

	// Per-session serialization: the read-modify-write below must not
	// interleave with a concurrent request for the same session.
	unlock := s.lockSession(sessionID)
	defer unlock()

	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return "", err
	}

	history = history.Append(chat.RoleUser, message).Trim(s.historyLimit)

	reply, err := s.generateReply(ctx, history, message, onDelta)
	if err != nil {
		return "", err
	}

	history = history.Append(chat.RoleAssistant, reply).Trim(s.historyLimit)

	if err := s.saveHistory(ctx, sessionID, history); err != nil {
		return "", fmt.Errorf("failed to persist history: %w", err)
	}

	return reply, nil
}

func (s *Service) generateReply(ctx context.Context, history chat.History, message string, onDelta func(string)) (string, error) {
	if s.gen == nil {
		reply := fmt.Sprintf("[echo] %s", message)
		if onDelta != nil {
			onDelta(reply)
		}
		return reply, nil
	}

	if onDelta != nil && s.gen.StreamingEnabled() {
		return s.streamReply(ctx, history, onDelta)
	}

	response, err := s.gen.Generate(ctx, history)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var reply string
	if response != nil {
		reply = strings.TrimSpace(response.Content)
	}
	if reply == "" {
		return "", fmt.Errorf("%w (raw: %+v)", ErrEmptyReply, response)
	}

	if onDelta != nil {
		onDelta(reply)
	}
	return reply, nil
}

func (s *Service) streamReply(ctx context.Context, history chat.History, onDelta func(string)) (string, error) {
	stream, err := s.gen.Stream(ctx, history)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("%w: %v", ErrUpstream, recvErr)
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			onDelta(chunk.Content)
		}
	}

	if len(chunks) == 0 {
		return "", fmt.Errorf("%w (empty stream)", ErrEmptyReply)
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	reply := strings.TrimSpace(response.Content)
	if reply == "" {
		return "", fmt.Errorf("%w (raw: %q)", ErrEmptyReply, response.Content)
	}
	return reply, nil
}

func (s *Service) loadHistory(ctx context.Context, sessionID string) (chat.History, error) {
	value, ok, err := s.store.Get(ctx, historyKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if !ok {
		return chat.History{}, nil
	}

	var history chat.History
	if err := json.Unmarshal(value, &history); err != nil {
		return nil, fmt.Errorf("failed to decode stored history: %w", err)
	}
	return history, nil
}

func (s *Service) saveHistory(ctx context.Context, sessionID string, history chat.History) error {
	value, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, historyKey(sessionID), value)
}

// lockSession acquires the mutex dedicated to the session, creating it on
// first use. The lock map grows with the number of live sessions.
func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func historyKey(sessionID string) string {
	return historyKeyPrefix + sessionID
}
