package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vaultrag/internal/domain"
	"vaultrag/internal/logger"
	"vaultrag/internal/usecase"
)

type searchRequest struct {
	Query       string   `json:"query"`
	K           int      `json:"k"`
	PreferTypes []string `json:"prefer_types"`
}

type searchResponse struct {
	Query   string                `json:"query"`
	Results []domain.SearchResult `json:"results"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type contextResponse struct {
	Bundle domain.ContextBundle `json:"bundle"`
	Prompt string               `json:"prompt"`
}

type verifyRequest struct {
	Filename string `json:"filename"`
	Claim    string `json:"claim"`
}

type rebuildRequest struct {
	Full bool `json:"full"`
}

type statusResponse struct {
	usecase.IndexStatus
	Model string `json:"model"`
	Root  string `json:"root"`
}

type sessionResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []domain.Turn `json:"turns"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		IndexStatus: usecase.Status(s.deps.Index),
		Model:       s.deps.Model,
		Root:        s.cfg.Root,
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"documents": usecase.Documents(s.deps.Index)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, fmt.Errorf("query is required: %w", domain.ErrEmptyInput))
		return
	}
	if req.K <= 0 {
		req.K = s.cfg.TopK
	}

	boost := s.cfg.Boost
	if len(req.PreferTypes) > 0 {
		boost.PreferTypes = nil
		for _, name := range req.PreferTypes {
			t, ok := domain.ParseDocType(name)
			if !ok {
				writeError(w, fmt.Errorf("%w: unknown doc type %q", domain.ErrInvalidConfig, name))
				return
			}
			boost.PreferTypes = append(boost.PreferTypes, t)
		}
	}

	results, err := s.deps.Retriever.Search(r.Context(), req.Query, req.K, boost)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, Results: results})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	bundle, err := s.deps.Chat.Context(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contextResponse{Bundle: bundle, Prompt: usecase.Render(bundle)})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	reply, err := s.deps.Chat.Ask(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.deps.Verify.Verify(r.Context(), req.Filename, req.Claim)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	var (
		res *usecase.IndexResult
		err error
	)
	if req.Full {
		res, err = s.deps.Indexer.Rebuild(r.Context(), s.cfg.Root, nil)
	} else {
		res, err = s.deps.Indexer.Update(r.Context(), s.cfg.Root)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns := s.deps.Chat.History(id)
	if turns == nil {
		turns = []domain.Turn{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, Turns: turns})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Chat.CloseSession(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response: %v", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyInput), errors.Is(err, domain.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRebuildInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDimensionMismatch):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
