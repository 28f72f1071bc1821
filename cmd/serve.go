package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/pipeline"
	"github.com/sells-group/parcel-leads/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve on-demand runs and stored snapshots over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, true, nil)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env.Snapshot, env.Store, env.Registry),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type runRequest struct {
	Borough  string `json:"borough"`
	AreaCode string `json:"area_code"`
	AreaName string `json:"area_name"`
	Save     bool   `json:"save"`
}

// buildRouter wires the HTTP API. st may be nil, in which case the
// snapshot routes answer 503.
func buildRouter(run runArea, st store.Store, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/runs", func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Save && st == nil {
			writeError(w, http.StatusServiceUnavailable, "store not configured")
			return
		}

		area := model.Area{Borough: req.Borough, Code: req.AreaCode, Name: req.AreaName}
		snap, err := run(r.Context(), area)
		if err != nil {
			if eris.Is(err, pipeline.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			zap.L().Error("run failed", zap.String("borough", req.Borough), zap.String("area_code", req.AreaCode), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "run failed")
			return
		}

		if req.Save {
			rec, err := st.SaveSnapshot(r.Context(), snap)
			if err != nil {
				zap.L().Error("save snapshot failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "save failed")
				return
			}
			w.Header().Set("X-Snapshot-Id", rec.ID)
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Route("/snapshots", func(r chi.Router) {
		r.Use(requireStore(st))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			f := store.Filter{Borough: q.Get("borough"), AreaCode: q.Get("area_code")}
			var err error
			if f.Limit, err = queryInt(q.Get("limit")); err != nil {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			if f.Offset, err = queryInt(q.Get("offset")); err != nil {
				writeError(w, http.StatusBadRequest, "invalid offset")
				return
			}
			recs, err := st.ListSnapshots(r.Context(), f)
			if err != nil {
				zap.L().Error("list snapshots failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "list failed")
				return
			}
			writeJSON(w, http.StatusOK, recs)
		})

		r.Get("/latest", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			borough, areaCode := q.Get("borough"), q.Get("area_code")
			if borough == "" || areaCode == "" {
				writeError(w, http.StatusBadRequest, "borough and area_code are required")
				return
			}
			rec, err := st.LatestSnapshot(r.Context(), borough, areaCode)
			if err != nil {
				if eris.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusNotFound, "no snapshot for area")
					return
				}
				zap.L().Error("latest snapshot failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "lookup failed")
				return
			}
			writeJSON(w, http.StatusOK, rec.Snapshot)
		})
	})

	return r
}

func requireStore(st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if st == nil {
				writeError(w, http.StatusServiceUnavailable, "store not configured")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
