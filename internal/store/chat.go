package store

import "context"

// CreateChatMessage persists a ChatMessage row — the durable half of
// the chat log; internal/chatlog keeps the fast in-memory replay
// window subscribers draw from on join (spec §4.B).
func (s *Store) CreateChatMessage(ctx context.Context, m *ChatMessage) error {
	return s.db.WithContext(ctx).Create(m).Error
}
