package internal

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/analytics"
	"github.com/yuta66jp/bodymake-dashboard/internal/config"
	"github.com/yuta66jp/bodymake-dashboard/internal/db"
	"github.com/yuta66jp/bodymake-dashboard/internal/history"
	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"
	"github.com/yuta66jp/bodymake-dashboard/internal/middleware"
	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/metrics"
	"github.com/yuta66jp/bodymake-dashboard/internal/telemetry/tracing"
	"github.com/yuta66jp/bodymake-dashboard/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

const (
	defaultLogWriteRateLimitPerMin = 30
	forecastCacheSizeBytes         = 10 * 1024 * 1024
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config         *config.Config
	dbPool         *pgxpool.Pool
	redisClient    *redis.Client
	forecastCache  *analytics.ForecastCache
	historyManager *history.Manager // nil when no history CSV is configured

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})
	if params.HoneycombTracingEnabled {
		rdb.AddHook(redisotel.NewTracingHook())
	}

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "bodymake-backend")
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:        params.Config,
		dbPool:        dbPool,
		versionInfo:   params.VersionInfo,
		redisClient:   rdb,
		forecastCache: analytics.NewForecastCache(forecastCacheSizeBytes, metricsManager),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	if params.Config.CompetitionHistoryCsvPath == "" {
		log.Warnln("competition history CSV not configured, history endpoints disabled")
		return s, nil
	}

	historyCsvFile, err := os.Open(params.Config.CompetitionHistoryCsvPath)
	if err != nil {
		log.Warnf("open competition history file: %s, history endpoints disabled", err)
		return s, nil
	}
	defer func() {
		if err := historyCsvFile.Close(); err != nil {
			log.Warnf("close competition history csv file: %s", err)
		}
	}()

	s.historyManager, err = history.NewManager(csv.NewReader(historyCsvFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create history manager: %s", err)
	}

	return s, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	repo := logstore.NewRepo(s.dbPool)

	logWriteRateLimit := s.config.LogWriteRateLimitAllowedPerMin
	if logWriteRateLimit <= 0 {
		logWriteRateLimit = defaultLogWriteRateLimitPerMin
	}
	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	rateLimitLogWrites := middleware.RateLimit(reqRateLimiter, "logstore-write", logWriteRateLimit)

	logStoreHandler := logstore.NewHandler(repo, s.metricsManager, s.forecastCache)
	r.Handle("/logstore/log", rateLimitLogWrites(http.HandlerFunc(logStoreHandler.HandleUpsertLog))).Methods("POST", "OPTIONS").Name("upsert-log")
	r.HandleFunc("/logstore/log/{date}", logStoreHandler.HandleGetLog).Methods("GET", "OPTIONS").Name("get-log")
	r.HandleFunc("/logstore/log/{id}", logStoreHandler.HandleDeleteLog).Methods("DELETE", "OPTIONS").Name("delete-log")
	r.HandleFunc("/logstore/logs", logStoreHandler.HandleListLogs).Methods("GET", "OPTIONS").Name("list-logs")
	r.HandleFunc("/logstore/food", logStoreHandler.HandleAddFood).Methods("POST", "OPTIONS").Name("new-food")
	r.HandleFunc("/logstore/food", logStoreHandler.HandleListFood).Methods("GET", "OPTIONS").Name("list-food")
	r.HandleFunc("/logstore/food/{id}", logStoreHandler.HandleUpdateFood).Methods("PUT", "OPTIONS").Name("update-food")
	r.HandleFunc("/logstore/food/{id}", logStoreHandler.HandleDeleteFood).Methods("DELETE", "OPTIONS").Name("delete-food")
	r.HandleFunc("/logstore/menu", logStoreHandler.HandleAddMenu).Methods("POST", "OPTIONS").Name("new-menu")
	r.HandleFunc("/logstore/menu", logStoreHandler.HandleListMenus).Methods("GET", "OPTIONS").Name("list-menus")
	r.HandleFunc("/logstore/menu/{id}", logStoreHandler.HandleDeleteMenu).Methods("DELETE", "OPTIONS").Name("delete-menu")
	r.HandleFunc("/logstore/cart/total", logStoreHandler.HandleCartTotal).Methods("POST", "OPTIONS").Name("cart-total")
	r.HandleFunc("/logstore/settings", logStoreHandler.HandleGetSettings).Methods("GET", "OPTIONS").Name("get-settings")
	r.HandleFunc("/logstore/settings", logStoreHandler.HandleUpdateSettings).Methods("PUT", "OPTIONS").Name("update-settings")

	analyzer := analytics.NewAnalyzer(analytics.NewAnalyzerParams{
		Repo:                   repo,
		Cache:                  s.forecastCache,
		Metrics:                s.metricsManager,
		WeightWindow:           s.config.WeightMovingAvgWindow,
		TDEEWindow:             s.config.ExpenditureSmoothing,
		EnergyDensityEstimator: s.config.EnergyDensityEstimator,
		EnergyDensitySimulator: s.config.EnergyDensitySimulator,
		AdaptationFactor:       s.config.AdaptationFactor,
	})
	dashboardHandler := analytics.NewHandler(analyzer)
	r.HandleFunc("/dashboard", dashboardHandler.HandleDashboard).Methods("GET", "OPTIONS").Name("dashboard")
	r.HandleFunc("/dashboard/recent/{n}", dashboardHandler.HandleRecent).Methods("GET", "OPTIONS").Name("recent-logs")

	if s.historyManager != nil {
		historyHandler := history.NewHandler(s.historyManager)
		r.HandleFunc("/history/overlay", historyHandler.HandleOverlay).Methods("GET", "OPTIONS").Name("history-overlay")
		r.HandleFunc("/history/seasons", historyHandler.HandleSeasons).Methods("GET", "OPTIONS").Name("history-seasons")
	}

	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET").Name("version")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
