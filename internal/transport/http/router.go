package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/burner-chat/internal/transport/http/middleware"
	"github.com/cwrk-planet/burner-chat/internal/transport/ws"
	"github.com/cwrk-planet/burner-chat/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	// CORSOrigins: origin браузерного клиента, если он живёт на другом хосте.
	CORSOrigins    []string
	RequestTimeout time.Duration
}

func NewRouter(h *Handler, authz httpmw.Authorizer, wsServer *ws.Server, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)
	r.Use(httpmw.MetricsMiddleware)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// вход в комнату
	r.Get("/room/{roomId}", h.EnterRoom)
	r.Get("/room", h.RedirectLanding)
	r.Get("/room/*", h.RedirectLanding)

	r.Route("/api", func(api chi.Router) {
		api.With(middlewareChi.Timeout(cfg.RequestTimeout)).Post("/room/create", h.CreateRoom)

		// всё остальное: только участникам комнаты из ?roomId=
		api.Group(func(pr chi.Router) {
			pr.Use(httpmw.AuthMiddleware(authz, h.cfg.Cookie.Name))

			pr.Get("/realtime", wsServer.HandleWS)

			pr.Group(func(rest chi.Router) {
				rest.Use(middlewareChi.Timeout(cfg.RequestTimeout))

				rest.Get("/room/ttl", h.GetTTL)
				rest.Get("/room/presence", h.GetPresence)
				rest.Delete("/room", h.DeleteRoom)
				rest.Post("/messages", h.PostMessage)
				rest.Get("/messages", h.ListMessages)
			})
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
