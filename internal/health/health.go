// Package health serves the worker's liveness and status endpoints. The
// listener is optional; it only starts when an address is configured.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"loopmix/internal/httpkit"
	"loopmix/internal/pkg/logger"
	"loopmix/internal/pkg/middleware"
	"loopmix/internal/ports"
	"loopmix/internal/worker"
	"loopmix/internal/worker/util"
)

const checkTimeout = 5 * time.Second

type Deps struct {
	Pool    *pgxpool.Pool
	RDB     *redis.Client
	SP      ports.StorageProvider
	Tracker *worker.Tracker
	Log     *logger.Logger
}

type Handler struct {
	pool    *pgxpool.Pool
	rdb     *redis.Client
	sp      ports.StorageProvider
	tracker *worker.Tracker
	log     *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	h := &Handler{
		pool:    d.Pool,
		rdb:     d.RDB,
		sp:      d.SP,
		tracker: d.Tracker,
		log:     log.WithComponent("health"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Get("/healthz", h.Healthz)
	r.Get("/status", h.Status)
	return r
}

// Healthz reports liveness. With ?deep=true it also pings Postgres and
// Redis and degrades the status if either fails.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	health := map[string]any{
		"status":  "ok",
		"service": "loopmix-worker",
	}

	status := http.StatusOK
	if r.URL.Query().Get("deep") == "true" {
		checks := map[string]any{
			"postgres": h.checkPostgres(ctx),
			"redis":    h.checkRedis(ctx),
			"storage":  map[string]any{"status": "ok", "provider": h.sp.Provider()},
		}
		health["checks"] = checks

		for _, check := range checks {
			if checkMap, ok := check.(map[string]any); ok {
				if checkMap["status"] != "ok" {
					health["status"] = "degraded"
					status = http.StatusServiceUnavailable
					log.Warn("health check degraded", "checks", checks)
					break
				}
			}
		}
	}

	httpkit.WriteJSON(w, status, health)
}

// Status reports what the worker is doing right now.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"worker_id":      util.WorkerID(),
		"uptime_seconds": int64(h.tracker.Uptime().Seconds()),
	}
	if jobID, busy := h.tracker.CurrentJob(); busy {
		body["current_job_id"] = jobID
	} else {
		body["current_job_id"] = nil
	}
	httpkit.WriteJSON(w, http.StatusOK, body)
}

func (h *Handler) checkPostgres(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := h.pool.Ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	} else {
		stats := h.pool.Stat()
		result["total_conns"] = stats.TotalConns()
		result["idle_conns"] = stats.IdleConns()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *Handler) checkRedis(ctx context.Context) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := h.rdb.Ping(checkCtx).Err(); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}
