/**
 * Identity Scan Worker - Main Entry Point
 *
 * Go worker that classifies identity-document scans.
 *
 * Architecture:
 * - Redis-backed job queue consumer
 * - Per-page detection pipeline: region detection, OCR, keyword/MRZ
 *   classification, page-wide confidence adjustment, pairing
 * - PostgreSQL persistence for scan results and job status
 * - Optional annotated PNG reports per page
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cardsight/idscan-worker/internal/config"
	"github.com/cardsight/idscan-worker/internal/detect"
	"github.com/cardsight/idscan-worker/internal/logging"
	"github.com/cardsight/idscan-worker/internal/ocr"
	"github.com/cardsight/idscan-worker/internal/processor"
	"github.com/cardsight/idscan-worker/internal/queue"
	"github.com/cardsight/idscan-worker/internal/storage"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Identity scan worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Workers=%d, OCR=%s",
		cfg.RedisURL, cfg.WorkerConcurrency, cfg.OCREngine)

	// Load and validate detection bundle. A malformed bundle is fatal at
	// startup, never at scan time.
	bundle, err := config.LoadDetectionBundle(cfg.DetectionConfigPath)
	if err != nil {
		log.Fatalf("Failed to load detection bundle: %v", err)
	}
	log.Printf("Detection bundle loaded: %s (languages: %v)", cfg.DetectionConfigPath, bundle.Languages)

	// Initialize storage
	log.Printf("Connecting to PostgreSQL...")
	store, err := storage.NewPostgresClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Printf("PostgreSQL connection established")

	// Build the text acquirer
	var acquirer detect.TextAcquirer
	switch cfg.OCREngine {
	case "remote":
		acquirer = ocr.NewRemoteEngine(cfg.RemoteOCRURL, logging.NewLogger("ocr-remote"))
		log.Printf("Using remote OCR engine: %s", cfg.RemoteOCRURL)
	default:
		acquirer = ocr.NewTesseractEngine(strings.Split(cfg.OCRLanguages, "+"), logging.NewLogger("ocr"))
		log.Printf("Using local tesseract (languages: %s)", cfg.OCRLanguages)
	}

	// Assemble the detection engine
	engine := detect.NewEngine(
		detect.NewDetector(bundle.DetectorConfig()),
		detect.NewClassifier(bundle.ClassifierConfig()),
		detect.NewAdjuster(bundle.AdjusterConfig()),
		acquirer,
		ocr.CleanText,
		bundle.PipelineConfig(cfg.OCRConcurrency),
		logging.NewLogger("detect"),
	)

	// Initialize scan processor
	defaultLang := bundle.Languages[0]
	proc, err := processor.NewScanProcessor(&processor.ProcessorConfig{
		Engine:        engine,
		Store:         store,
		MaxFileSize:   cfg.MaxFileSize,
		ReportDir:     cfg.ReportDir,
		Language:      defaultLang,
		OCREngineName: cfg.OCREngine,
	})
	if err != nil {
		log.Fatalf("Failed to initialize scan processor: %v", err)
	}
	log.Printf("Scan processor initialized")

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	queueConsumer, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         "idscan:jobs",
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}
	log.Printf("Queue consumer initialized with concurrency=%d", cfg.WorkerConcurrency)

	// Start queue consumer
	if err := queueConsumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	// Print startup summary
	log.Printf("===========================================")
	log.Printf("Identity Scan Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: idscan:jobs")
	log.Printf("Workers: %d (OCR pool: %d per page)", cfg.WorkerConcurrency, cfg.OCRConcurrency)
	log.Printf("OCR engine: %s", cfg.OCREngine)
	log.Printf("Languages: %v", bundle.Languages)
	if cfg.ReportEnabled {
		log.Printf("Annotated reports: %s", cfg.ReportDir)
	}
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal
	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	// Stop queue consumer
	if err := queueConsumer.Stop(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	// Close storage
	if err := store.Close(); err != nil {
		log.Printf("Error closing storage: %v", err)
	} else {
		log.Printf("Storage closed")
	}

	log.Printf("Shutdown complete")
}

// Health check endpoint (optional - can be added via HTTP server)
func healthCheck(db *storage.PostgresClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Check database
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
