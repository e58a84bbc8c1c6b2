package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"vaultrag/internal/domain"
	"vaultrag/internal/logger"
	"vaultrag/internal/port"
)

// ChatTopK is the number of results retrieved per chat message.
const ChatTopK = 5

// ChatUseCase answers questions grounded in the vault and records the
// conversation in session memory.
type ChatUseCase struct {
	retriever port.Retriever
	assembler *Assembler
	sessions  port.SessionMemory
	generator port.Generator
	boost     domain.BoostConfig
}

// NewChatUseCase creates a new chat use case.
func NewChatUseCase(
	retriever port.Retriever,
	assembler *Assembler,
	sessions port.SessionMemory,
	generator port.Generator,
	boost domain.BoostConfig,
) *ChatUseCase {
	return &ChatUseCase{
		retriever: retriever,
		assembler: assembler,
		sessions:  sessions,
		generator: generator,
		boost:     boost,
	}
}

// ChatReply is the answer to one chat message.
type ChatReply struct {
	SessionID         string            `json:"session_id"`
	Response          string            `json:"response"`
	Model             string            `json:"model"`
	Sources           []domain.Citation `json:"sources"`
	NoCitableEvidence bool              `json:"no_citable_evidence"`
}

// Context retrieves evidence for query and assembles it with the session's
// history without calling the generation model.
func (u *ChatUseCase) Context(ctx context.Context, sessionID, query string) (domain.ContextBundle, error) {
	if strings.TrimSpace(query) == "" {
		return domain.ContextBundle{}, fmt.Errorf("query: %w", domain.ErrEmptyInput)
	}
	results, err := u.retriever.Search(ctx, query, ChatTopK, u.boost)
	if err != nil {
		return domain.ContextBundle{}, fmt.Errorf("search failed: %w", err)
	}
	var history []domain.Turn
	if sessionID != "" {
		history = u.sessions.Get(sessionID)
	}
	return u.assembler.Assemble(results, history, query), nil
}

// Ask answers message within a session. An empty session id starts a new
// session. Both turns are appended only after generation succeeds.
func (u *ChatUseCase) Ask(ctx context.Context, sessionID, message string) (ChatReply, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	bundle, err := u.Context(ctx, sessionID, message)
	if err != nil {
		return ChatReply{}, err
	}
	if bundle.NoCitableEvidence {
		logger.Debug("session %s: no citable evidence for %q", sessionID, message)
	}

	answer, err := u.generator.Generate(ctx, Render(bundle))
	if err != nil {
		return ChatReply{}, fmt.Errorf("generation failed: %w", err)
	}

	if err := u.sessions.Append(sessionID, domain.RoleUser, message); err != nil {
		return ChatReply{}, err
	}
	if err := u.sessions.Append(sessionID, domain.RoleAssistant, answer); err != nil {
		return ChatReply{}, err
	}

	return ChatReply{
		SessionID:         sessionID,
		Response:          answer,
		Model:             u.generator.ModelName(),
		Sources:           bundle.Evidence,
		NoCitableEvidence: bundle.NoCitableEvidence,
	}, nil
}

// History returns the session's turns, oldest first.
func (u *ChatUseCase) History(sessionID string) []domain.Turn {
	return u.sessions.Get(sessionID)
}

// CloseSession discards a session and its journal.
func (u *ChatUseCase) CloseSession(sessionID string) error {
	return u.sessions.Close(sessionID)
}
