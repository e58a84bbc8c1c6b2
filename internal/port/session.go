package port

import (
	"context"

	"vaultrag/internal/domain"
)

// SessionMemory keeps bounded per-session conversation history.
type SessionMemory interface {
	Append(sessionID string, role domain.Role, text string) error
	Get(sessionID string) []domain.Turn
	EvictIfOver(sessionID string, maxTurns int)
	Close(sessionID string) error
}

// SessionJournal records turns outside process memory.
type SessionJournal interface {
	Record(ctx context.Context, sessionID string, turn domain.Turn) error
	Recent(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
	Purge(ctx context.Context, sessionID string) error
	Close() error
}
