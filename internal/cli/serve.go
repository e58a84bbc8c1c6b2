package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vaultrag/internal/logger"
	"vaultrag/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve search, context, chat, verify and rebuild endpoints over HTTP.

Example:
  vaultrag serve --port 8000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	a, err := openApp(cfg, GetRootDir(), openOptions{generator: true})
	if err != nil {
		return err
	}
	defer a.Close()

	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Session.TTL > 0 {
		go a.sessions.Run(ctx, cfg.Session.TTL/4)
	}

	srv := server.New(server.Config{
		Port:           port,
		Root:           GetRootDir(),
		TopK:           cfg.Retrieve.TopK,
		Boost:          cfg.Boost(),
		AllowAll:       cfg.Server.AllowAllOrigins,
		RequestTimeout: cfg.Generation.Timeout + cfg.Embedding.Timeout,
	}, server.Deps{
		Index:     a.index,
		Retriever: a.retriever,
		Indexer:   a.indexer,
		Chat:      a.chat,
		Verify:    a.verify,
		Model:     a.embedder.ModelName(),
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
