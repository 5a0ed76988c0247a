package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coupon-market/api/internal/handle"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type RoutesConfig struct {
	Handle      *handle.Handle // optional; mounts the verification endpoints
	DB          Pinger         // optional
	CORSOrigins []string
	// Extra mounts additional routes, e.g. the Telegram webhook.
	Extra func(chi.Router)
}

// Routes mounts the middleware stack and every endpoint of the service.
func Routes(rc RoutesConfig) func(*chi.Mux) {
	return func(m *chi.Mux) {
		origins := rc.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		m.Use(chimw.Recoverer)
		m.Use(RequestID)
		m.Use(AccessLog(30 * time.Second))
		m.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Request-Timeout"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))

		m.Get("/healthz", Healthz(rc.DB))
		m.Handle("/metrics", promhttp.Handler())

		if rc.Handle != nil {
			m.Post("/api/verify-coupon", rc.Handle.VerifyUpload)
			m.Post("/v1/verify", rc.Handle.VerifyJSON)
		}
		if rc.Extra != nil {
			rc.Extra(m)
		}
	}
}

// Healthz answers ok, or 503 when db is set and does not answer a ping.
func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
