package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/streamcart/streamcart/internal/domain/checkout"
	"github.com/streamcart/streamcart/internal/domain/coupon"
	"github.com/streamcart/streamcart/internal/domain/order"
	"github.com/streamcart/streamcart/internal/domain/plan"
	"github.com/streamcart/streamcart/internal/domain/user"
	"github.com/streamcart/streamcart/internal/handler"
	"github.com/streamcart/streamcart/internal/invoice"
	"github.com/streamcart/streamcart/internal/payment"
	"github.com/streamcart/streamcart/internal/repository"
	"github.com/streamcart/streamcart/pkg/health"
	"github.com/streamcart/streamcart/pkg/httpmiddleware"
)

// seedPlans is the OTT catalog inserted into an empty database at startup.
var seedPlans = []plan.Plan{
	{ID: 1, Name: "Netflix Standard", Price: 199, Logo: "netflix.png"},
	{ID: 2, Name: "Amazon Prime Video", Price: 149, Logo: "prime.png"},
	{ID: 3, Name: "Disney+ Hotstar Premium", Price: 299, Logo: "hotstar.png"},
	{ID: 4, Name: "Sony LIV Premium", Price: 129, Logo: "sonyliv.png"},
	{ID: 5, Name: "Zee5 Premium", Price: 99, Logo: "zee5.png"},
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations + catalog seed.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	planRepo := repository.NewPlanRepository(pool)
	if err := planRepo.SeedIfEmpty(ctx, seedPlans); err != nil {
		return errors.Wrap(err, "seed plans")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)

	// Domain services.
	evaluator := coupon.NewEvaluator(couponRepo)
	provider := payment.NewStripeProvider(cfg.StripeSecretKey)
	checkoutSvc := checkout.NewService(checkout.Config{
		Currency: cfg.Currency,
		BaseURL:  cfg.BaseURL,
	}, planRepo, evaluator, sessionRepo, provider)
	recorder := order.NewRecorder(planRepo, evaluator, orderRepo, sessionRepo)
	userSvc := user.NewService(userRepo)
	invoices := invoice.New("StreamCart", cfg.Currency)

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			AdminUser:    cfg.AdminUser,
			AdminPass:    cfg.AdminPass,
			CookieSecure: cfg.CookieSecure,
		},
		planRepo,
		couponRepo,
		evaluator,
		checkoutSvc,
		recorder,
		orderRepo,
		userSvc,
		userRepo,
		sessionRepo,
		invoices,
	)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Router())

	instrumented := otelhttp.NewHandler(
		httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
		"streamcart-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           instrumented,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
