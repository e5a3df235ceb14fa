package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	httpHandler "github.com/Harinid27/Studymate/internal/handler/http"
	wsHandler "github.com/Harinid27/Studymate/internal/handler/websocket"
	"github.com/Harinid27/Studymate/internal/hub"
	"github.com/Harinid27/Studymate/internal/middleware"
	"github.com/Harinid27/Studymate/internal/repository"
	"github.com/Harinid27/Studymate/internal/service"
)

// Config holds everything loaded from the environment.
type Config struct {
	Port              int           `envconfig:"PORT" default:"8080"`
	PortScanAttempts  int           `envconfig:"PORT_SCAN_ATTEMPTS" default:"5"`
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
	UploadDir         string        `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxUploadMB       int64         `envconfig:"MAX_UPLOAD_MB" default:"50"`
	RoomCodeLength    int           `envconfig:"ROOM_CODE_LENGTH" default:"8"`
	RoomTTL           time.Duration `envconfig:"ROOM_TTL" default:"24h"`
	JanitorInterval   time.Duration `envconfig:"JANITOR_INTERVAL" default:"10m"`
	RateLimitMax      int           `envconfig:"RATE_LIMIT_MAX" default:"100"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1s"`
	CORSAllowedOrigin string        `envconfig:"CORS_ALLOWED_ORIGIN" default:"*"`
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL %q, using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// App wires all components together.
type App struct {
	Config     *Config
	Log        *logrus.Logger
	Hub        *hub.Hub
	Rooms      *service.RoomService
	HTTPServer *http.Server
}

// NewApp creates and wires the whole application.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.Info("Configuration loaded")

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", cfg.UploadDir, err)
	}

	// Stores.
	registry := repository.NewRoomRegistry(cfg.RoomCodeLength)
	participants := repository.NewParticipantTable()
	documents := repository.NewDocumentCatalog()
	annotations := repository.NewAnnotationStore()
	log.Info("Stores initialized")

	// Hub and coordinator. The hub needs the coordinator as its inbound
	// handler and the coordinator needs the hub as its broadcaster, so they
	// are wired in two steps.
	hubInstance := hub.NewHub(participants)
	roomService := service.NewRoomService(registry, participants, documents, annotations, cfg.RoomTTL)
	coordinator := service.NewSessionCoordinator(registry, participants, documents, annotations, hubInstance)
	hubInstance.SetHandler(coordinator)
	log.Info("Services initialized")

	// Handlers.
	roomHandler := httpHandler.NewRoomHandler(roomService)
	uploadHandler := httpHandler.NewUploadHandler(roomService, documents, hubInstance, cfg.UploadDir, cfg.MaxUploadMB<<20)
	socketHandler := wsHandler.NewWebSocketHandler(hubInstance)
	log.Info("Handlers initialized")

	// Router.
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigin))
	router.MaxMultipartMemory = 8 << 20

	api := router.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimitMax, cfg.RateLimitWindow))
	{
		api.POST("/create_room", roomHandler.CreateRoom)
		api.POST("/join_room", roomHandler.JoinRoom)
		api.GET("/rooms/:code", roomHandler.Status)
		api.POST("/upload_pdf", uploadHandler.UploadPDF)
	}
	router.GET("/ws", socketHandler.HandleConnection)
	router.Static("/uploads", cfg.UploadDir)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	return &App{
		Config: cfg,
		Log:    log,
		Hub:    hubInstance,
		Rooms:  roomService,
		HTTPServer: &http.Server{
			Handler: router,
		},
	}, nil
}

// Start launches the hub loop, the room janitor and the HTTP server. When
// the configured port is busy the next ports are probed, matching the
// original client's expectations.
func (a *App) Start() error {
	go a.Hub.Run()
	a.Rooms.StartJanitor(a.Config.JanitorInterval)

	listener, err := a.listen()
	if err != nil {
		return err
	}
	a.Log.Infof("HTTP server listening on %s", listener.Addr())

	go func() {
		if err := a.HTTPServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("HTTP server failed: %v", err)
		}
		a.Log.Info("HTTP server stopped listening")
	}()
	return nil
}

func (a *App) listen() (net.Listener, error) {
	for i := 0; i < a.Config.PortScanAttempts; i++ {
		addr := fmt.Sprintf(":%d", a.Config.Port+i)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			return listener, nil
		}
		a.Log.Warnf("Port %d is busy, trying next port...", a.Config.Port+i)
	}
	return nil, fmt.Errorf("no free port in range %d-%d", a.Config.Port, a.Config.Port+a.Config.PortScanAttempts-1)
}

// Shutdown stops the server gracefully.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully")
	}

	a.Rooms.StopJanitor()
	a.Hub.Stop()
	a.Log.Info("Application shutdown complete")
}

// LoggerMiddleware records one structured log line per request.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
