package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pollboard/pkg/types"
)

// SendChatMessage appends a message to the chat log and truncates the log
// to its capacity, silently dropping the oldest entries. Blank bodies are
// rejected here even though surfaces guard for them.
func (s *Store) SendChatMessage(senderID, senderName, senderRole, body string) (*types.ChatMessage, error) {
	body = normalize(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if !types.IsValidRole(senderRole) {
		return nil, types.ErrInvalidRole
	}

	msg := &types.ChatMessage{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		SenderName: senderName,
		SenderRole: senderRole,
		Body:       body,
		Timestamp:  time.Now(),
	}

	s.mu.Lock()
	s.chat = append(s.chat, msg)
	if len(s.chat) > s.chatLimit {
		trimmed := make([]*types.ChatMessage, s.chatLimit)
		copy(trimmed, s.chat[len(s.chat)-s.chatLimit:])
		s.chat = trimmed
	}
	s.persistLocked(context.Background())
	clone := msg.Clone()
	s.mu.Unlock()

	s.notify()
	return clone, nil
}
