package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aboudjelida/aimenboudev/internal/config"
	"github.com/aboudjelida/aimenboudev/internal/content"
	"github.com/aboudjelida/aimenboudev/internal/db"
	"github.com/aboudjelida/aimenboudev/internal/lastcommit"
	"github.com/aboudjelida/aimenboudev/internal/middleware"
	"github.com/aboudjelida/aimenboudev/internal/misc"
	"github.com/aboudjelida/aimenboudev/internal/nowplaying"
	"github.com/aboudjelida/aimenboudev/internal/reading"
	"github.com/aboudjelida/aimenboudev/internal/stickers"
	"github.com/aboudjelida/aimenboudev/internal/telemetry/metrics"
	"github.com/aboudjelida/aimenboudev/internal/telemetry/tracing"
	"github.com/aboudjelida/aimenboudev/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config *config.Config
	dbPool *pgxpool.Pool

	stickersRepo   *stickers.Repo
	stickersHub    *stickers.Hub
	contentManager *content.Manager
	nowPlaying     *nowplaying.Handler
	readingClient  *reading.Client
	commitClient   *lastcommit.Client

	redisClient *redis.Client

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config              *config.Config
	VersionInfo         string
	RedisPassword       string
	SpotifyClientID     string
	SpotifyClientSecret string
	LiteralEmail        string
	LiteralPassword     string
	TracingEnabled      bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	if err := db.Migrate(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDBName); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		TracingEnabled: params.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	otelShutdown, err := tracing.HoneycombSetup(params.TracingEnabled, "aimenbou-backend", rdb)
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	contentManager, err := loadContentManager(cfg.ContentJsonPath, cfg.ProjectsJsonPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		dbPool:      dbPool,

		stickersRepo:   stickers.NewRepo(dbPool),
		stickersHub:    stickers.NewHub(rdb, metricsManager),
		contentManager: contentManager,
		nowPlaying: nowplaying.NewHandler(
			cfg.SpotifyRedirectURI,
			params.SpotifyClientID,
			params.SpotifyClientSecret,
			func() string {
				state, err := pkg.GenerateRandomString(16)
				if err != nil {
					log.Errorf("generate spotify auth state: %s", err)
				}
				return state
			},
			rdb,
		),
		readingClient: reading.NewClient(
			reading.DefaultEndpoint,
			params.LiteralEmail,
			params.LiteralPassword,
			tracedHttpClient,
			rdb,
		),
		commitClient: lastcommit.NewClient(
			"",
			cfg.SiteRepoOwner,
			cfg.SiteRepoName,
			tracedHttpClient,
		),

		redisClient: rdb,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	return s, nil
}

func loadContentManager(contentJsonPath, projectsJsonPath string) (*content.Manager, error) {
	contentFile, err := os.Open(contentJsonPath)
	if err != nil {
		return nil, fmt.Errorf("open content file: %w", err)
	}
	defer func() {
		if err := contentFile.Close(); err != nil {
			log.Warnf("close content file: %s", err)
		}
	}()

	projectsFile, err := os.Open(projectsJsonPath)
	if err != nil {
		return nil, fmt.Errorf("open projects file: %w", err)
	}
	defer func() {
		if err := projectsFile.Close(); err != nil {
			log.Warnf("close projects file: %s", err)
		}
	}()

	manager, err := content.NewManager(contentFile, projectsFile)
	if err != nil {
		return nil, fmt.Errorf("new content manager: %w", err)
	}
	return manager, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)

	stickersHandler := stickers.NewHandler(
		s.stickersRepo,
		s.stickersHub,
		stickers.NewListCache(),
		s.metricsManager,
	)
	stickersHandler.SetupRoutes(r, reqRateLimiter, s.config.StickerSubmitPerMin)

	contentHandler := content.NewHandler(s.contentManager)
	contentHandler.SetupRoutes(r)

	s.nowPlaying.SetupRoutes(r)

	readingHandler := reading.NewHandler(s.readingClient, s.redisClient)
	readingHandler.SetupRoutes(r)

	commitHandler := lastcommit.NewHandler(s.commitClient, s.redisClient)
	commitHandler.SetupRoutes(r)

	miscHandler := misc.NewHandler(s.versionInfo)
	miscHandler.SetupRoutes(r)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router := s.routerSetup()

	go s.stickersHub.Run(ctx)

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

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
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
