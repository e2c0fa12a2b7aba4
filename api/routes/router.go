package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockcast/api/controllers"
	analyticscontrollers "github.com/angelmondragon/stockcast/api/controllers/analytics"
	"github.com/angelmondragon/stockcast/api/middleware"
	"github.com/angelmondragon/stockcast/pkg/config"
	"github.com/angelmondragon/stockcast/pkg/logger"
)

// NewRouter wires the health, metrics and analytics routes. Dependencies
// with a nil Pinger are skipped by the readiness probe.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	analyticsService analyticscontrollers.Service,
	gatherer prometheus.Gatherer,
	deps ...controllers.Dependency,
) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	scope := cfg.Forecast.DefaultScopeLimit

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps...))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/transactions/summary", analyticscontrollers.TransactionsSummary(analyticsService, logg))
		r.Get("/movement", analyticscontrollers.Movement(analyticsService, cfg.Movement.TopN, logg))
		r.Get("/next-purchase", analyticscontrollers.NextPurchase(analyticsService, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", analyticscontrollers.ProductList(analyticsService, logg))
			r.Route("/{product}", func(r chi.Router) {
				r.Get("/monthly", analyticscontrollers.ProductMonthly(analyticsService, logg))
				r.Get("/seasonal", analyticscontrollers.ProductSeasonal(analyticsService, logg))
				r.Get("/trend", analyticscontrollers.ProductTrend(analyticsService, logg))
				r.Get("/festivals/{festival}", analyticscontrollers.ProductFestival(analyticsService, logg))
			})
		})

		r.Get("/customers/{customerId}/profile", analyticscontrollers.CustomerProfile(analyticsService, logg))

		r.Route("/forecasts", func(r chi.Router) {
			r.Get("/", analyticscontrollers.ForecastList(analyticsService, scope, logg))
			r.Post("/", analyticscontrollers.ForecastRun(analyticsService, scope, logg))
		})

		r.Post("/cache/invalidate", analyticscontrollers.InvalidateCache(analyticsService, logg))
	})

	return r
}
