package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
)

const shutdownTimeout = 5 * time.Second

// app is the state shared by every request.
type app struct {
	cfg      *Config
	logger   *zap.Logger
	started  time.Time
	history  *history
	sim      *simulator
	hub      *Hub
	limiter  *clientLimiter
	metrics  *metrics
	registry *prometheus.Registry
}

func newApp(cfg *Config, logger *zap.Logger, model anomalyPredictor, src rand.Source) (*app, error) {
	h := newHistory(cfg.History.Capacity)
	hub := newHub(logger)

	reg := prometheus.NewRegistry()
	m, err := registerMetrics(reg, h)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		started:  time.Now(),
		history:  h,
		sim:      newSimulator(src, model, h, hub, m, logger),
		hub:      hub,
		limiter:  newClientLimiter(cfg.RateLimit),
		metrics:  m,
		registry: reg,
	}, nil
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Println("FATAL ERROR: couldn't load config:", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Println("FATAL ERROR: couldn't build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting quantumshield ...")

	model, samples, err := trainAnomalyModel(cfg.Model)
	if err != nil {
		logger.Fatal("couldn't train anomaly model", zap.Error(err))
	}
	mean, std := stat.MeanStdDev(samples, nil)
	logger.Info("anomaly model trained",
		zap.Int("samples", len(samples)),
		zap.Float64("sample_mean", roundFloat(mean, 3)),
		zap.Float64("sample_std", roundFloat(std, 3)),
		zap.Int("trees", cfg.Model.Trees),
		zap.Float64("threshold", roundFloat(model.Threshold(), 3)),
	)

	a, err := newApp(cfg, logger, model, rand.NewSource(uint64(time.Now().UnixNano())))
	if err != nil {
		logger.Fatal("couldn't build app", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hub.run(ctx)
	go a.limiter.startCleanup(ctx, limiterCleanupInterval, logger)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           initRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", zap.Error(err))
	}

	select {
	case <-a.hub.done:
	case <-shutdownCtx.Done():
		logger.Warn("feed hub did not stop in time")
	}

	logger.Info("Stopped quantumshield ...")
}

func initRouter(a *app) *gin.Engine {
	if a.cfg.Server.Environment != "dev" && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(requestLogger(a.logger), gin.Recovery())

	r.Use(corsPolicy())

	r.SetTrustedProxies(nil)

	r.GET("/", rootHandler)
	r.GET("/ping", func(c *gin.Context) {
		pingHandler(c, a.started)
	})

	r.GET("/simulate", rateLimit(a.limiter), func(c *gin.Context) {
		simulateHandler(c, a.sim)
	})

	r.GET("/history", func(c *gin.Context) {
		historyHandler(c, a.history)
	})

	r.DELETE("/clear", func(c *gin.Context) {
		clearHandler(c, a.sim)
	})

	r.GET("/websocket", func(c *gin.Context) {
		serveWs(a.hub, c.Writer, c.Request)
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return r
}

// corsPolicy lets any origin in with credentials. Browsers ignore "*" on
// credentialed requests, so the origin and the requested headers are echoed
// back instead.
func corsPolicy() gin.HandlerFunc {
	allow := cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowCredentials: true,
		MaxAge:           10 * time.Minute,
	})

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions && c.GetHeader("Origin") != "" {
			if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
				c.Header("Access-Control-Allow-Headers", requested)
			}
		}
		allow(c)
	}
}

func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
