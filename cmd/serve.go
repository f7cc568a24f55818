package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-research/internal/model"
	"github.com/sells-group/outreach-research/internal/store"
)

var servePort int

// jobRunner abstracts the pipeline for the HTTP layer.
type jobRunner interface {
	Run(ctx context.Context, jobID string) error
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the research API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initResearch(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env.Store, env.Pipeline),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newRouter builds the API routes. baseCtx bounds background job runs so they
// stop with the server, not with the submitting request.
func newRouter(baseCtx context.Context, st store.Store, runner jobRunner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/research", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var input model.JobInput
			if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if err := input.Validate(); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			job, err := st.CreateJob(req.Context(), input)
			if err != nil {
				zap.L().Error("create job failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "could not create job")
				return
			}

			go func() {
				if err := runner.Run(baseCtx, job.ID); err != nil {
					zap.L().Error("research job failed",
						zap.String("job_id", job.ID),
						zap.Error(err))
				}
			}()

			writeJSON(w, http.StatusAccepted, job)
		})

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			filter := store.JobFilter{
				Status: model.JobStatus(req.URL.Query().Get("status")),
			}
			filter.Limit, _ = strconv.Atoi(req.URL.Query().Get("limit"))
			filter.Offset, _ = strconv.Atoi(req.URL.Query().Get("offset"))

			jobs, err := st.ListJobs(req.Context(), filter)
			if err != nil {
				zap.L().Error("list jobs failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "could not list jobs")
				return
			}
			if jobs == nil {
				jobs = []model.ResearchJob{}
			}
			writeJSON(w, http.StatusOK, jobs)
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			job, err := st.GetJob(req.Context(), chi.URLParam(req, "id"))
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			if err != nil {
				zap.L().Error("get job failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "could not load job")
				return
			}
			writeJSON(w, http.StatusOK, job)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
