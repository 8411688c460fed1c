// Package session persists conversation history as jsonl files.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pawzhub/pawd/internal/provider"
)

// Session is one conversation keyed by channel and chat.
type Session struct {
	Key       string             `json:"key"`
	Messages  []provider.Message `json:"messages"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
	mu        sync.RWMutex
}

// NewSession creates a new session with the given key.
func NewSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		Messages:  []provider.Message{},
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
	}
}

// Append adds messages to the session.
func (s *Session) Append(msgs ...provider.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msgs...)
	s.UpdatedAt = time.Now()
}

// Replace swaps the whole message list, e.g. after a turn mutated the
// conversation with truncation or synthetic results.
func (s *Session) Replace(msgs []provider.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append([]provider.Message(nil), msgs...)
	s.UpdatedAt = time.Now()
}

// History returns a copy of the most recent maxMessages messages.
// maxMessages <= 0 returns everything.
func (s *Session) History(maxMessages int) []provider.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if maxMessages > 0 && len(s.Messages) > maxMessages {
		start = len(s.Messages) - maxMessages
	}
	out := make([]provider.Message, len(s.Messages)-start)
	copy(out, s.Messages[start:])
	return out
}

// Clear removes all messages.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = []provider.Message{}
	s.UpdatedAt = time.Now()
}

// SetMetadata sets a metadata value.
func (s *Session) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
	s.Metadata[key] = value
	s.UpdatedAt = time.Now()
}

// GetMetadata returns a metadata value.
func (s *Session) GetMetadata(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Metadata == nil {
		return nil, false
	}
	v, ok := s.Metadata[key]
	return v, ok
}

// Manager loads and saves sessions under <dataDir>/sessions.
type Manager struct {
	sessionsDir string
	cache       map[string]*Session
	mu          sync.RWMutex
}

// NewManager creates a session manager rooted at dataDir.
func NewManager(dataDir string) *Manager {
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".pawd")
	}
	sessionsDir := filepath.Join(dataDir, "sessions")
	os.MkdirAll(sessionsDir, 0o755)
	return &Manager{
		sessionsDir: sessionsDir,
		cache:       make(map[string]*Session),
	}
}

// GetOrCreate returns the cached or persisted session, creating a
// fresh one when neither exists.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.cache[key]; ok {
		return session
	}
	session := m.load(key)
	if session == nil {
		session = NewSession(key)
	}
	m.cache[key] = session
	return session
}

// Save writes the session as jsonl: one metadata line, then one line
// per message.
func (m *Manager) Save(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.sessionPath(session.Key)

	session.mu.RLock()
	defer session.mu.RUnlock()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer file.Close()

	meta := map[string]any{
		"_type":      "metadata",
		"created_at": session.CreatedAt.Format(time.RFC3339),
		"updated_at": session.UpdatedAt.Format(time.RFC3339),
		"metadata":   session.Metadata,
	}
	metaLine, _ := json.Marshal(meta)
	if _, err := file.WriteString(string(metaLine) + "\n"); err != nil {
		return fmt.Errorf("write session metadata: %w", err)
	}

	for _, msg := range session.Messages {
		msgLine, _ := json.Marshal(msg)
		if _, err := file.WriteString(string(msgLine) + "\n"); err != nil {
			return fmt.Errorf("write session message: %w", err)
		}
	}

	m.cache[session.Key] = session
	return nil
}

// Delete removes a session from cache and disk.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cache, key)
	return os.Remove(m.sessionPath(key)) == nil
}

// Info describes a persisted session.
type Info struct {
	Key       string
	CreatedAt time.Time
	UpdatedAt time.Time
	Path      string
}

// List returns info for all persisted sessions.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []Info
	entries, err := os.ReadDir(m.sessionsDir)
	if err != nil {
		return sessions
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(m.sessionsDir, entry.Name())
		key := strings.ReplaceAll(strings.TrimSuffix(entry.Name(), ".jsonl"), "_", ":")
		info := Info{Key: key, Path: path}

		if data, err := os.ReadFile(path); err == nil {
			firstLine, _, _ := strings.Cut(string(data), "\n")
			var meta map[string]any
			if json.Unmarshal([]byte(firstLine), &meta) == nil {
				if created, ok := meta["created_at"].(string); ok {
					info.CreatedAt, _ = time.Parse(time.RFC3339, created)
				}
				if updated, ok := meta["updated_at"].(string); ok {
					info.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
				}
			}
		}
		sessions = append(sessions, info)
	}
	return sessions
}

func (m *Manager) sessionPath(key string) string {
	safeKey := strings.ReplaceAll(key, ":", "_")
	// Strip path separators and traversal components.
	safeKey = strings.ReplaceAll(safeKey, "/", "_")
	safeKey = strings.ReplaceAll(safeKey, "\\", "_")
	safeKey = strings.ReplaceAll(safeKey, "..", "_")
	return filepath.Join(m.sessionsDir, filepath.Base(safeKey)+".jsonl")
}

func (m *Manager) load(key string) *Session {
	file, err := os.Open(m.sessionPath(key))
	if err != nil {
		return nil
	}
	defer file.Close()

	session := NewSession(key)
	decoder := json.NewDecoder(file)

	for decoder.More() {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			break
		}

		var check map[string]any
		if json.Unmarshal(raw, &check) == nil && check["_type"] == "metadata" {
			if created, ok := check["created_at"].(string); ok {
				session.CreatedAt, _ = time.Parse(time.RFC3339, created)
			}
			if updated, ok := check["updated_at"].(string); ok {
				session.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
			}
			if meta, ok := check["metadata"].(map[string]any); ok {
				session.Metadata = meta
			}
			continue
		}

		var msg provider.Message
		if json.Unmarshal(raw, &msg) == nil && msg.Role != "" {
			session.Messages = append(session.Messages, msg)
		}
	}
	return session
}
