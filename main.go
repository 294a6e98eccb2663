package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "github.com/patrickjcash/delco-water-hass/internal/api/http"
	"github.com/patrickjcash/delco-water-hass/internal/audit"
	"github.com/patrickjcash/delco-water-hass/internal/auth"
	billingapp "github.com/patrickjcash/delco-water-hass/internal/billing/application"
	"github.com/patrickjcash/delco-water-hass/internal/delco"
	"github.com/patrickjcash/delco-water-hass/internal/extract"
	"github.com/patrickjcash/delco-water-hass/internal/observability/metrics"
	refresh "github.com/patrickjcash/delco-water-hass/internal/refresh/application"
	statsapp "github.com/patrickjcash/delco-water-hass/internal/statistics/application"
	statistics "github.com/patrickjcash/delco-water-hass/internal/statistics/domain"
	memorysink "github.com/patrickjcash/delco-water-hass/internal/statistics/infrastructure/memory"
	postgressink "github.com/patrickjcash/delco-water-hass/internal/statistics/infrastructure/postgres"
	recordersink "github.com/patrickjcash/delco-water-hass/internal/statistics/infrastructure/recorder"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	refreshCfg, err := refresh.LoadConfig()
	if err != nil {
		logger.Fatalf("refresh config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, auditLogger, cleanup := buildSink(ctx, cfg, logger)
	defer cleanup()

	client, err := delco.NewClient(cfg.APIBaseURL, cfg.CustomerEmail, delco.StaticToken(cfg.AccessToken))
	if err != nil {
		logger.Fatalf("delco client error: %v", err)
	}

	assembler, err := billingapp.NewAssembler(extract.PDF{}, billingapp.WithAssemblerLogger(logger))
	if err != nil {
		logger.Fatalf("assembler error: %v", err)
	}
	backfill, err := statsapp.NewBackfillService(sink, statsapp.WithZone(refreshCfg.Zone), statsapp.WithLogger(logger))
	if err != nil {
		logger.Fatalf("backfill service error: %v", err)
	}
	runner, err := refresh.NewRunner(client, assembler, backfill, refreshCfg, refresh.WithRunnerLogger(logger))
	if err != nil {
		logger.Fatalf("refresh runner error: %v", err)
	}
	go runner.Start(ctx)

	refreshHandler, err := apihttp.NewRefreshHandler(runner, auditLogger)
	if err != nil {
		logger.Fatalf("refresh handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/status", apihttp.NewStatusHandler(runner))
	mux.Handle("/api/v1/records", apihttp.NewRecordsHandler(runner))
	mux.Handle("/api/v1/payments", apihttp.NewPaymentsHandler(runner))
	mux.Handle("/api/v1/refresh", refreshHandler)
	for _, format := range []string{"csv", "xlsx", "pdf"} {
		exportHandler, err := apihttp.NewExportBillingHandler(runner, format)
		if err != nil {
			logger.Fatalf("export handler error: %v", err)
		}
		mux.Handle("/api/v1/exports/billing."+format, exportHandler)
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s sink=%s", cfg.HTTPAddr, cfg.SinkDriver)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http server error: %v", err)
	}
}

// buildSink opens the configured statistics store. The returned cleanup
// closes whatever was opened; the audit logger shares the postgres handle
// when one exists and falls back to plain log output otherwise.
func buildSink(ctx context.Context, cfg config, logger *log.Logger) (statistics.Sink, audit.Logger, func()) {
	switch cfg.SinkDriver {
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		sink, err := postgressink.NewSink(db)
		if err != nil {
			logger.Fatalf("postgres sink error: %v", err)
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			logger.Fatalf("postgres sink schema error: %v", err)
		}
		auditRepo := audit.NewRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			logger.Fatalf("audit schema error: %v", err)
		}
		metrics.Init(db, logger)
		return sink, auditRepo, func() { _ = db.Close() }
	case "recorder":
		db, err := sql.Open("sqlite", cfg.RecorderPath)
		if err != nil {
			logger.Fatalf("recorder open error: %v", err)
		}
		if err := db.Ping(); err != nil {
			logger.Fatalf("recorder ping error: %v", err)
		}
		sink, err := recordersink.NewSink(db)
		if err != nil {
			logger.Fatalf("recorder sink error: %v", err)
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			logger.Fatalf("recorder sink schema error: %v", err)
		}
		metrics.Init(nil, logger)
		return sink, audit.NewLogWriter(logger), func() { _ = db.Close() }
	case "memory":
		metrics.Init(nil, logger)
		return memorysink.NewSink(), audit.NewLogWriter(logger), func() {}
	default:
		logger.Fatalf("unknown sink driver %q", cfg.SinkDriver)
		return nil, nil, nil
	}
}

type config struct {
	HTTPAddr      string
	APIBaseURL    string
	CustomerEmail string
	AccessToken   string
	SinkDriver    string
	RecorderPath  string
	DatabaseURL   string
	JWTSecret     string
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		APIBaseURL:    getenvDefault("DELCO_API_BASE_URL", ""),
		CustomerEmail: getenvDefault("DELCO_CUSTOMER_EMAIL", ""),
		AccessToken:   getenvDefault("DELCO_ACCESS_TOKEN", ""),
		SinkDriver:    getenvDefault("STATISTICS_SINK", "recorder"),
		RecorderPath:  getenvDefault("RECORDER_DB_PATH", "home-assistant_v2.db"),
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.CustomerEmail == "" {
		log.Fatal("DELCO_CUSTOMER_EMAIL is required")
	}
	if cfg.AccessToken == "" {
		log.Fatal("DELCO_ACCESS_TOKEN is required")
	}
	if cfg.SinkDriver == "postgres" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required for the postgres sink")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
