// Package server assembles the kernel and its HTTP surface.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/jettr/tock/internal/api/http"
	"github.com/jettr/tock/internal/api/middleware"
	"github.com/jettr/tock/internal/boot"
	"github.com/jettr/tock/internal/infrastructure/config"
	"github.com/jettr/tock/internal/infrastructure/logging"
	"github.com/jettr/tock/internal/infrastructure/monitoring"
	"github.com/jettr/tock/internal/kernel/ipc"
	"github.com/jettr/tock/internal/kernel/mpu"
	"github.com/jettr/tock/internal/kernel/proc"
	"github.com/jettr/tock/internal/kernel/sched"
	"github.com/jettr/tock/internal/ws"
)

// Server wraps the HTTP server and the kernel it fronts
type Server struct {
	router  *gin.Engine
	table   *proc.Table
	ipc     *ipc.IPC
	sched   *sched.Scheduler
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// New creates a server instance around a freshly booted kernel
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing kernel",
		zap.String("port", cfg.Server.Port),
		zap.Int("max_procs", cfg.Kernel.MaxProcs),
	)

	metrics := monitoring.NewMetrics()

	// Kernel: MPU, process table, IPC driver, scheduler
	mpuManager := mpu.NewTrackingManager()
	table := proc.NewTable(proc.Config{
		MaxProcs:         cfg.Kernel.MaxProcs,
		TaskQueueDepth:   cfg.Kernel.TaskQueueDepth,
		UpcallQueueDepth: cfg.Kernel.UpcallQueueDepth,
		ProcMemBytes:     cfg.Kernel.ProcMemBytes,
	}, mpuManager)
	driver := ipc.New(table, cfg.Kernel.GrantBudget, logger).WithMetrics(metrics)
	table.OnReclaim(driver.Reclaim)
	scheduler := sched.New(table, driver, logger)

	// Board manifest
	if cfg.Boot.ManifestPath != "" {
		manifest, err := boot.Load(cfg.Boot.ManifestPath)
		if err != nil {
			return nil, err
		}
		if err := manifest.Seed(table, logger); err != nil {
			return nil, err
		}
		metrics.ProcessesLive.Set(float64(table.Len()))
		logger.Info("board manifest loaded",
			zap.String("board", manifest.Board),
			zap.Int("apps", len(manifest.Apps)),
		)
	}

	// Router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(table, driver, scheduler, mpuManager, logger, metrics)
	wsHandler := ws.NewHandler(table, scheduler, logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Process lifecycle
	router.GET("/processes", handlers.ListProcesses)
	router.POST("/processes", handlers.SpawnProcess)
	router.DELETE("/processes/:slot", handlers.TerminateProcess)
	router.POST("/processes/:slot/restart", handlers.RestartProcess)

	// Syscall setup: upcall subscriptions and allow buffers
	router.POST("/processes/:slot/subscribe", handlers.Subscribe)
	router.POST("/processes/:slot/allow-ro", handlers.AllowReadOnly)
	router.POST("/processes/:slot/allow-rw", handlers.AllowReadWrite)

	// Syscall commands and the deferred side
	router.POST("/syscall", handlers.Syscall)
	router.POST("/scheduler/run", handlers.RunAll)
	router.POST("/processes/:slot/run", handlers.RunProcess)

	// Inspection
	router.GET("/processes/:slot/upcalls", handlers.ListUpcalls)
	router.POST("/processes/:slot/upcalls/drain", handlers.DrainUpcalls)
	router.GET("/processes/:slot/mpu", handlers.ListMPURegions)
	router.GET("/processes/:slot/grant", handlers.GrantInfo)

	// WebSocket
	router.GET("/stream", wsHandler.HandleConnection)

	// Metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		table:   table,
		ipc:     driver,
		sched:   scheduler,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down kernel...")
	s.logger.Sync()
	return nil
}
