package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradpath/advisor/internal/convo"
	"github.com/gradpath/advisor/internal/engine"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Migrate(ctx); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newAPIHandler(env.Engine),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newAPIHandler(e *engine.Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Message   string `json:"message"`
				SessionID string `json:"session_id"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.Message == "" {
				writeError(w, http.StatusBadRequest, "message is required")
				return
			}

			resp, err := e.Process(req.Context(), body.SessionID, body.Message)
			switch {
			case err == nil:
				writeJSON(w, http.StatusOK, resp)
			case eris.Is(err, convo.ErrNotFound):
				writeError(w, http.StatusNotFound, "conversation not found")
			case eris.Is(err, engine.ErrSuperseded):
				writeError(w, http.StatusConflict, "superseded by a newer message")
			default:
				zap.L().Error("chat request failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		})

		r.Get("/conversations/{id}", func(w http.ResponseWriter, req *http.Request) {
			conv, err := e.Conversation(req.Context(), chi.URLParam(req, "id"))
			if eris.Is(err, convo.ErrNotFound) {
				writeError(w, http.StatusNotFound, "conversation not found")
				return
			}
			if err != nil {
				zap.L().Error("load conversation failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			writeJSON(w, http.StatusOK, conv)
		})

		r.Delete("/conversations/{id}", func(w http.ResponseWriter, req *http.Request) {
			err := e.Archive(req.Context(), chi.URLParam(req, "id"))
			if eris.Is(err, convo.ErrNotFound) {
				writeError(w, http.StatusNotFound, "conversation not found")
				return
			}
			if err != nil {
				zap.L().Error("archive conversation failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
