package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultrag/config"
	"vaultrag/internal/adapter/chunker"
	"vaultrag/internal/adapter/embedding"
	"vaultrag/internal/adapter/fs"
	"vaultrag/internal/adapter/llm"
	"vaultrag/internal/adapter/memstore"
	"vaultrag/internal/adapter/retriever"
	"vaultrag/internal/adapter/vectorindex"
	"vaultrag/internal/domain"
	"vaultrag/internal/port"
	"vaultrag/internal/usecase"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()

	root := t.TempDir()
	files := map[string]string{
		"Hardware/Mini PC.md": "# Specs\nMini PC hardware specs: 32GB RAM.\n",
		"Projects/Routing.md": "routing configuration notes",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	emb := embedding.NewGateway(embedding.NewMockEmbedder(32), time.Second, 0)
	idx := vectorindex.New(port.IndexMeta{Dimension: 32}, nil)
	ch, err := chunker.NewWindowChunker(cfg.Index.WindowSize, cfg.Index.Overlap)
	require.NoError(t, err)
	ranker, err := retriever.NewHybridRanker(idx, emb, nil, retriever.DefaultWeights())
	require.NoError(t, err)

	sessions := memstore.NewSessionStore(cfg.Session.MaxTurns, cfg.Session.TTL)
	chat := usecase.NewChatUseCase(ranker, usecase.NewAssembler(idx, cfg.Assemble), sessions, llm.EchoGenerator{}, cfg.Boost())

	return New(Config{Port: 0, Root: root, TopK: 5, Boost: cfg.Boost()}, Deps{
		Index:     idx,
		Retriever: ranker,
		Indexer:   usecase.NewIndexUseCase(fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes), ch, emb, idx, 2, 8),
		Chat:      chat,
		Verify:    usecase.NewVerifyUseCase(ranker),
		Model:     emb.ModelName(),
	})
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRebuildStatusAndDocuments(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "POST", "/rebuild", rebuildRequest{Full: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[usecase.IndexResult](t, w)
	assert.Equal(t, 2, res.FilesIndexed)

	w = do(t, s, "GET", "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decodeBody[statusResponse](t, w)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, "mock", st.Model)

	w = do(t, s, "GET", "/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	docs := decodeBody[struct {
		Documents []domain.SourceInfo `json:"documents"`
	}](t, w)
	require.Len(t, docs.Documents, 2)
	assert.Equal(t, "Hardware/Mini PC.md", docs.Documents[0].ID)

	// An incremental update with nothing changed.
	w = do(t, s, "POST", "/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decodeBody[usecase.IndexResult](t, w)
	assert.Equal(t, 2, res.FilesSkipped)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)
	do(t, s, "POST", "/rebuild", rebuildRequest{Full: true})

	w := do(t, s, "POST", "/search", searchRequest{Query: "Mini PC", K: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[searchResponse](t, w)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "Hardware/Mini PC.md", resp.Results[0].SourceDocumentID)

	w = do(t, s, "POST", "/search", searchRequest{Query: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, "POST", "/search", searchRequest{Query: "x", PreferTypes: []string{"spaceship"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest("POST", "/search", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatContextAndSessions(t *testing.T) {
	s := newTestServer(t)
	do(t, s, "POST", "/rebuild", rebuildRequest{Full: true})

	w := do(t, s, "POST", "/chat", chatRequest{Message: "how much ram does the mini pc have"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	reply := decodeBody[usecase.ChatReply](t, w)
	assert.NotEmpty(t, reply.SessionID)
	assert.Contains(t, reply.Response, "[Source: Mini PC]")

	w = do(t, s, "GET", "/sessions/"+reply.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sess := decodeBody[sessionResponse](t, w)
	assert.Len(t, sess.Turns, 2)

	w = do(t, s, "POST", "/context", chatRequest{SessionID: reply.SessionID, Message: "and the cpu?"})
	require.Equal(t, http.StatusOK, w.Code)
	ctxResp := decodeBody[contextResponse](t, w)
	assert.Len(t, ctxResp.Bundle.History, 2)
	assert.Contains(t, ctxResp.Prompt, "=== RECENT CONVERSATION ===")

	w = do(t, s, "DELETE", "/sessions/"+reply.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, "GET", "/sessions/"+reply.SessionID, nil)
	assert.Empty(t, decodeBody[sessionResponse](t, w).Turns)
}

func TestVerify(t *testing.T) {
	s := newTestServer(t)
	do(t, s, "POST", "/rebuild", rebuildRequest{Full: true})

	w := do(t, s, "POST", "/verify", verifyRequest{Filename: "Mini PC.md", Claim: "32GB RAM"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v := decodeBody[usecase.Verification](t, w)
	assert.True(t, v.Found)

	w = do(t, s, "POST", "/verify", verifyRequest{Filename: "Mini PC.md"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", domain.ErrRebuildInProgress), http.StatusConflict},
		{&domain.DimensionMismatchError{Expected: 384, Got: 768}, http.StatusPreconditionFailed},
		{fmt.Errorf("%w: timeout", domain.ErrEmbeddingUnavailable), http.StatusServiceUnavailable},
		{domain.ErrInvalidConfig, http.StatusBadRequest},
		{domain.ErrEmptyInput, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
