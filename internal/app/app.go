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

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/cart"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/checkout"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/geo"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/tracking"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/handler"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/orderapi"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/repository"
	"github.com/SoftyPy-IT/fashion-client-saas/internal/session"
	"github.com/SoftyPy-IT/fashion-client-saas/pkg/health"
	"github.com/SoftyPy-IT/fashion-client-saas/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	shipping, err := cfg.Shipping.Table()
	if err != nil {
		return errors.Wrap(err, "shipping table")
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	applied, err := repository.RunMigrations(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	if len(applied) > 0 {
		lg.Info("Migrations applied", zap.Strings("versions", applied))
	}

	// Coupons.
	couponRepo := repository.NewCouponRepository(pool)
	var lookup coupon.Repository = couponRepo
	if interval := cfg.Coupons.FilterRefresh; interval > 0 {
		codes, err := couponRepo.ListCodes(ctx)
		if err != nil {
			return errors.Wrap(err, "list coupon codes")
		}
		filtered := coupon.NewFilteredRepository(couponRepo, codes)
		lg.Info("Coupon code filter loaded", zap.Int("codes", len(codes)))
		go refreshCouponFilter(ctx, couponRepo, filtered, interval)
		lookup = filtered
	}
	couponValidator := coupon.NewRepoValidator(lookup)

	// Outbound HTTP is traced with the same providers as the server.
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	// Geography.
	fetcher, err := geo.NewFetcher(cfg.Geography.Source, &http.Client{Transport: transport})
	if err != nil {
		return errors.Wrap(err, "geography fetcher")
	}
	geography := geo.NewProvider(geo.NewLoader(fetcher, geo.DefaultNames(), cfg.Geography.Timeout))
	if err := geography.Reload(ctx); err != nil {
		// The storefront serves empty location options until a reload succeeds.
		lg.Error("Geography load failed", zap.Error(err))
	} else {
		ix := geography.Index()
		lg.Info("Geography loaded",
			zap.Int("divisions", ix.Len(geo.Division)),
			zap.Int("districts", ix.Len(geo.District)),
			zap.Int("upazilas", ix.Len(geo.Upazila)),
			zap.Int("unions", ix.Len(geo.Union)),
		)
	}

	// Order API.
	orders, err := orderapi.New(cfg.OrderAPI.BaseURL, &http.Client{
		Transport: transport,
		Timeout:   cfg.OrderAPI.Timeout,
	})
	if err != nil {
		return errors.Wrap(err, "order api client")
	}

	// Domain services.
	checkoutSvc, err := checkout.NewService(orders, geography, m)
	if err != nil {
		return errors.Wrap(err, "checkout service")
	}
	sessions := session.NewRegistry(cfg.Session.TTL, func() (*cart.Store, *tracking.Tracker) {
		return cart.NewStore(geography, shipping), tracking.NewTracker(orders)
	})
	sessions.StartSweep(ctx, cfg.Session.SweepInterval)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Add(health.Degraded, "geography", time.Second, health.DatasetCheck(geography))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			ImageHosts: cfg.Storefront.ImageHosts,
			PixelID:    cfg.Storefront.PixelID,
			Shipping:   shipping,
		},
		geography,
		sessions,
		couponValidator,
		checkoutSvc,
	)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Checkout waits on the order API.
		WriteTimeout:   cfg.OrderAPI.Timeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   httpmiddleware.SkipPaths("/livez", "/readyz"),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m),
			httpmiddleware.LogRequests(),
			httpmiddleware.Route(),
		),
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

// refreshCouponFilter rebuilds the known-code filter every interval so codes
// added by the ingest tools become valid without a restart. A failed listing
// keeps the previous filter.
func refreshCouponFilter(ctx context.Context, repo *repository.CouponRepository, f *coupon.FilteredRepository, interval time.Duration) {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			codes, err := repo.ListCodes(ctx)
			if err != nil {
				lg.Warn("Coupon code filter refresh failed", zap.Error(err))
				continue
			}
			f.Reset(codes)
			lg.Debug("Coupon code filter refreshed", zap.Int("codes", len(codes)))
		}
	}
}
