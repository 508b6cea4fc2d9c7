// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"homescout-workers/internal/common/camunda"
	"homescout-workers/internal/common/config"
	"homescout-workers/internal/common/database"
	"homescout-workers/internal/common/logger"
	"homescout-workers/internal/common/observability"
	"homescout-workers/internal/match"
	"homescout-workers/pkg/catalog"

	// Listing Workers (3)
	aef "homescout-workers/internal/workers/listing/ai-extract-fallback"
	el "homescout-workers/internal/workers/listing/extract-listing"
	sl "homescout-workers/internal/workers/listing/save-listing"

	// Preference Workers (1)
	sp "homescout-workers/internal/workers/preferences/save-preferences"

	// Analysis Workers (3)
	ap "homescout-workers/internal/workers/analysis/analyze-property"
	cp "homescout-workers/internal/workers/analysis/compare-properties"
	gn "homescout-workers/internal/workers/analysis/generate-narrative"

	// Search Workers (1)
	srch "homescout-workers/internal/workers/search/search-listings"

	// Notification Workers (1)
	sn "homescout-workers/internal/workers/notification/send-notification"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Load feature catalog ---
	featureCatalog := match.DefaultCatalog()
	if cfg.Catalog.Path != "" {
		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			zapLog.Fatal("feature catalog load failed", zap.Error(err), zap.String("path", cfg.Catalog.Path))
		}
		featureCatalog = cat.Definitions()
		zapLog.Info("Feature catalog loaded",
			zap.String("path", cfg.Catalog.Path),
			zap.String("version", cat.Version),
			zap.Int("features", len(featureCatalog)),
		)
	}

	// --- Init Zeebe Client with retry ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	if err := esClient.EnsureListingIndex(ctx, cfg.Database.Elasticsearch.ListingIndex); err != nil {
		zapLog.Fatal("listing index setup failed", zap.Error(err),
			zap.String("index", cfg.Database.Elasticsearch.ListingIndex))
	}

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- START: Register ALL 9 Workers ---

	var activeWorkers []*camunda.Worker

	// --- 1. Listing Workers (3) ---
	if cfg.Workers[el.TaskType].Enabled {
		handler := el.NewHandler(
			&el.Config{
				ExtractorBaseURL: cfg.APIs.Extractor.BaseURL,
				APIKey:           cfg.APIs.Extractor.APIKey,
				MaxRetries:       cfg.Workers[el.TaskType].MaxRetries,
				Timeout:          config.GetDuration(cfg.APIs.Extractor.Timeout),
			},
			log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, obs, el.TaskType, cfg.Workers[el.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[aef.TaskType].Enabled {
		handler := aef.NewHandler(
			&aef.Config{
				GenAIBaseURL: cfg.APIs.GenAI.BaseURL,
				APIKey:       cfg.APIs.GenAI.APIKey,
				Model:        cfg.APIs.GenAI.Model,
				MaxRetries:   cfg.Workers[aef.TaskType].MaxRetries,
				Timeout:      config.GetDuration(cfg.APIs.GenAI.Timeout),
			},
			log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, obs, aef.TaskType, cfg.Workers[aef.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[sl.TaskType].Enabled {
		handler := sl.NewHandler(
			&sl.Config{
				ListingIndex: cfg.Database.Elasticsearch.ListingIndex,
				Timeout:      config.GetDuration(cfg.Workers[sl.TaskType].Timeout),
			},
			pg.DB, esClient.Client, redis.Client, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, obs, sl.TaskType, cfg.Workers[sl.TaskType], handler.Handle, zapLog))
	}

	// --- 2. Preference Workers (1) ---
	if cfg.Workers[sp.TaskType].Enabled {
		handler := sp.NewHandler(
			&sp.Config{
				MaxPreferences: 50,
				Timeout:        config.GetDuration(cfg.Workers[sp.TaskType].Timeout),
			},
			pg.DB, redis.Client, featureCatalog, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, obs, sp.TaskType, cfg.Workers[sp.TaskType], handler.Handle, zapLog))
	}

	// --- 3. Analysis Workers (3) ---
	if cfg.Workers[ap.TaskType].Enabled {
		handler := ap.NewHandler(
			&ap.Config{
				CacheTTL: time.Duration(cfg.Database.Redis.TTL) * time.Second,
				Timeout:  config.GetDuration(cfg.Workers[ap.TaskType].Timeout),
			},
			pg.DB, redis.Client, featureCatalog, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, obs, ap.TaskType, cfg.Workers[ap.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[cp.TaskType].Enabled {
		handler := cp.NewHandler(
			&cp.Config{
				CacheTTL:    time.Duration(cfg.Database.Redis.TTL) * time.Second,
				Timeout:     config.GetDuration(cfg.Workers[cp.TaskType].Timeout),
				MaxListings: 10,
			},
			pg.DB, redis.Client, featureCatalog, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, obs, cp.TaskType, cfg.Workers[cp.TaskType], handler.Handle, zapLog))
	}

	if cfg.Workers[gn.TaskType].Enabled {
		handler := gn.NewHandler(
			&gn.Config{
				GenAIBaseURL: cfg.APIs.GenAI.BaseURL,
				APIKey:       cfg.APIs.GenAI.APIKey,
				Model:        cfg.APIs.GenAI.Model,
				MaxTokens:    400,
				Temperature:  0.4,
				MaxRetries:   cfg.Workers[gn.TaskType].MaxRetries,
				Timeout:      config.GetDuration(cfg.APIs.GenAI.Timeout),
			},
			log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, obs, gn.TaskType, cfg.Workers[gn.TaskType], handler.Handle, zapLog))
	}

	// --- 4. Search Workers (1) ---
	if cfg.Workers[srch.TaskType].Enabled {
		handler := srch.NewHandler(
			&srch.Config{
				ListingIndex: cfg.Database.Elasticsearch.ListingIndex,
				MaxResults:   20,
				CacheTTL:     time.Duration(cfg.Database.Redis.TTL) * time.Second,
				Timeout:      config.GetDuration(cfg.Workers[srch.TaskType].Timeout),
			},
			esClient.Client, redis.Client, log,
		)
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, obs, srch.TaskType, cfg.Workers[srch.TaskType], handler.Handle, zapLog))
	}

	// --- 5. Notification Workers (1) ---
	if cfg.Workers[sn.TaskType].Enabled {
		handler, err := sn.NewHandler(
			&sn.Config{
				EmailEnabled:     cfg.Notifications.Email.Enabled,
				SMSEnabled:       cfg.Notifications.SMS.Enabled,
				FromEmail:        cfg.Notifications.Email.FromEmail,
				AWSRegion:        cfg.Notifications.AWS.Region,
				TemplateRegistry: cfg.Notifications.TemplateRegistry,
				Timeout:          config.GetDuration(cfg.Workers[sn.TaskType].Timeout),
			},
			pg.DB, log,
		)
		if err != nil {
			zapLog.Fatal("failed to create send-notification handler", zap.Error(err))
		}
		activeWorkers = append(activeWorkers, startWorker(zeebeClient, obs, sn.TaskType, cfg.Workers[sn.TaskType], handler.Handle, zapLog))
	}

	zapLog.Info("All 9 workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		for _, w := range activeWorkers {
			if w != nil {
				w.Close()
			}
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		zapLog.Warn("shutdown deadline exceeded, some jobs may be re-delivered")
	}

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func startWorker(client *camunda.Client, obs *observability.Observability, taskType string, wcfg config.WorkerConfig, handlerFunc func(worker.JobClient, entities.Job), log *zap.Logger) *camunda.Worker {
	if !wcfg.Enabled {
		log.Info("worker disabled", zap.String("taskType", taskType))
		return nil
	}

	instrumented := func(jobClient worker.JobClient, job entities.Job) {
		start := time.Now()
		handlerFunc(jobClient, job)
		obs.RecordJob(context.Background(), taskType, time.Since(start))
	}

	return camunda.OpenWorker(
		client.GetClient(),
		taskType,
		wcfg.MaxJobsActive,
		time.Duration(wcfg.Timeout)*time.Millisecond,
		instrumented,
		log,
	)
}
