package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/certs"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/config"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/docstore"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/handlers"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/ledger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/logger"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/metrics"
	"github.com/stanisdev/critical-softpaymoney-api-handler-and-external/internal/webhook"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
}

func main() {
	logger.SetService("handlerd")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	store, err := ledger.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open ledger database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer store.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if err := store.EnsureSchema(startupCtx); err != nil {
		logger.Fatal("failed to ensure database schema", map[string]interface{}{
			"error": err.Error(),
		})
	}

	docs, err := docstore.Connect(startupCtx, cfg.Mongo.URI, cfg.Mongo.Database, store)
	if err != nil {
		logger.Fatal("failed to connect to document store", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		docs.Close(ctx)
	}()

	encryption := certs.NewEncryption(cfg.Secret.AESKey, cfg.Secret.AESIV)
	certificates, err := certs.LoadAll(startupCtx, store, encryption)
	if err != nil {
		logger.Fatal("failed to load gateway certificates", map[string]interface{}{
			"error": err.Error(),
		})
	}

	metrics.Register()

	notifier := webhook.NewNotifier(cfg.ExternalInteractionURL)
	processor := webhook.NewProcessor(store, docs, certificates, store, notifier, cfg.Gazprom.MerchID)
	webhookHandler := handlers.NewWebhookHandler(processor)

	http.HandleFunc("/handler", instrumentHandler("handler", webhookHandler.ServeHTTP))
	http.HandleFunc("/health", instrumentHandler("health", handlers.HealthHandler))
	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info("starting HTTP server", map[string]interface{}{
		"port":          cfg.Port,
		"read_timeout":  "10s",
		"write_timeout": "10s",
		"idle_timeout":  "120s",
	})

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c
	logger.Info("shutting down server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	logger.Info("server shutdown complete", nil)
}

// instrumentHandler wraps an HTTP handler with Prometheus instrumentation
func instrumentHandler(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(wrapped, r)

		duration := time.Since(startTime).Seconds()
		httpRequestDuration.WithLabelValues(handlerName, r.Method).Observe(duration)
		httpRequestsTotal.WithLabelValues(handlerName, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
