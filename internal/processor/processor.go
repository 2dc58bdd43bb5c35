/**
 * Scan processor for the identity scan worker
 *
 * Orchestrates one scan job end to end: load the page images, run the
 * detection engine on each page, persist the classified regions, and
 * optionally render annotated report images. Pages are independent; the
 * engine keeps no state between them.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/google/uuid"

	"github.com/cardsight/idscan-worker/internal/detect"
	scanerrors "github.com/cardsight/idscan-worker/internal/errors"
	"github.com/cardsight/idscan-worker/internal/report"
	"github.com/cardsight/idscan-worker/internal/storage"
)

// ScanProcessorInterface defines the interface for scan processing
type ScanProcessorInterface interface {
	ProcessScan(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Engine        *detect.Engine
	Store         *storage.PostgresClient
	MaxFileSize   int64
	ReportDir     string // empty disables annotated reports
	Language      string // default language hint for the text acquirer
	OCREngineName string // recorded on the job row
}

// ProcessRequest represents a scan processing request
type ProcessRequest struct {
	JobID      string
	UserID     string
	Filename   string
	MimeType   string
	FileSize   int64
	FileURL    string
	FileBuffer []byte
	PageURLs   []string // multi-page jobs: one image URL per page
	Language   string   // optional language hint override
	Metadata   map[string]interface{}
}

// ProcessResult represents the processing result
type ProcessResult struct {
	ScanResultID   string
	PagesProcessed int
	RegionsFound   int
	BestType       string
	BestSide       string
	BestConfidence float64
	ReportPaths    []string
}

// ScanProcessor handles scan jobs
type ScanProcessor struct {
	config *ProcessorConfig
	engine *detect.Engine
	store  *storage.PostgresClient
}

// NewScanProcessor creates a new scan processor
func NewScanProcessor(cfg *ProcessorConfig) (*ScanProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("detection engine is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &ScanProcessor{
		config: cfg,
		engine: cfg.Engine,
		store:  cfg.Store,
	}, nil
}

// ProcessScan processes one scan job through the complete pipeline
func (p *ScanProcessor) ProcessScan(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	if req.JobID == "" {
		// Jobs submitted directly (bypassing the API) arrive without an ID.
		req.JobID = uuid.NewString()
		log.Printf("[Job %s] Assigned job ID to anonymous request", req.JobID)
	}
	log.Printf("[Job %s] Starting scan pipeline", req.JobID)

	lang := req.Language
	if lang == "" {
		lang = p.config.Language
	}

	// Step 1: Load page images.
	log.Printf("[Job %s] Step 1: Loading page images", req.JobID)
	pages, err := p.loadPages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	log.Printf("[Job %s] Loaded %d page(s)", req.JobID, len(pages))

	// Step 2: Run detection per page.
	result := &ProcessResult{PagesProcessed: len(pages)}
	pageResults := make([]detect.PageResult, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Printf("[Job %s] Step 2: Detecting page %d/%d", req.JobID, i+1, len(pages))
		pageResults[i] = p.engine.ProcessPage(ctx, i, page, lang)
		result.RegionsFound += len(pageResults[i].Regions)
	}

	// Step 3: Persist results.
	log.Printf("[Job %s] Step 3: Storing scan result (%d regions)", req.JobID, result.RegionsFound)
	record := buildScanRecord(req.JobID, pageResults)
	resultID, err := p.store.StoreScanResult(ctx, record)
	if err != nil {
		return nil, scanerrors.NewStorageFailedError(req.JobID, err)
	}
	result.ScanResultID = resultID
	result.BestType = record.BestType
	result.BestSide = record.BestSide
	result.BestConfidence = record.BestConfidence
	log.Printf("[Job %s] Scan result stored: id=%s, best=%s/%s @ %.1f",
		req.JobID, resultID, record.BestType, record.BestSide, record.BestConfidence)

	// Step 4: Annotated reports, best effort.
	if p.config.ReportDir != "" {
		for i, page := range pages {
			path, err := report.WritePage(p.config.ReportDir, req.JobID, page, pageResults[i])
			if err != nil {
				log.Printf("[Job %s] WARNING: Failed to write report for page %d: %v", req.JobID, i, err)
				continue
			}
			result.ReportPaths = append(result.ReportPaths, path)
		}
	}

	return result, nil
}

// UpdateJobStatus updates job status in the database
func (p *ScanProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error {
	update := &storage.JobUpdate{
		JobID:         jobID,
		Status:        status,
		OCREngineUsed: p.config.OCREngineName,
		Metadata:      metadata,
	}

	if metadata != nil {
		if confidence, ok := metadata["confidence"].(float64); ok {
			update.Confidence = confidence
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if resultID, ok := metadata["scanResultId"].(string); ok {
			update.ScanResultID = resultID
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			update.ErrorCode = "PROCESSING_ERROR"
			update.ErrorMessage = errorMsg
		}
	}

	return p.store.UpdateJobStatus(ctx, update)
}

// buildScanRecord flattens page results into the storable form and finds
// the best-confidence region for the summary columns.
func buildScanRecord(jobID string, pages []detect.PageResult) *storage.ScanResult {
	record := &storage.ScanResult{JobID: jobID}
	for _, page := range pages {
		pr := storage.PageRecord{PageIndex: page.PageIndex}
		for _, rr := range page.Regions {
			cls := rr.Classification
			var keywords []string
			for kw := range cls.MatchedKeywordSet() {
				keywords = append(keywords, kw)
			}
			pr.Regions = append(pr.Regions, storage.RegionRecord{
				X:          rr.Region.X,
				Y:          rr.Region.Y,
				W:          rr.Region.W,
				H:          rr.Region.H,
				Type:       string(cls.Type),
				Side:       string(cls.Side),
				Method:     string(cls.Method),
				Confidence: cls.AdjustedConfidence,
				Keywords:   keywords,
				OCRQuality: rr.Evidence.OCRQuality,
				InkRatio:   rr.Evidence.InkRatio,
			})
			if cls.AdjustedConfidence > record.BestConfidence {
				record.BestConfidence = cls.AdjustedConfidence
				record.BestType = string(cls.Type)
				record.BestSide = string(cls.Side)
			}
		}
		record.Pages = append(record.Pages, pr)
	}
	return record
}

// loadPages resolves the request's page images: inline buffer, single URL,
// or one URL per page.
func (p *ScanProcessor) loadPages(ctx context.Context, req *ProcessRequest) ([]image.Image, error) {
	if len(req.PageURLs) > 0 {
		pages := make([]image.Image, 0, len(req.PageURLs))
		for i, url := range req.PageURLs {
			data, err := p.downloadFile(ctx, req.JobID, url, 0)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", i, err)
			}
			img, err := decodePage(req.JobID, i, data)
			if err != nil {
				return nil, err
			}
			pages = append(pages, img)
		}
		return pages, nil
	}

	var data []byte
	var err error
	switch {
	case len(req.FileBuffer) > 0:
		log.Printf("[Job %s] Using file buffer (%d bytes)", req.JobID, len(req.FileBuffer))
		data = req.FileBuffer
	case req.FileURL != "":
		data, err = p.downloadFile(ctx, req.JobID, req.FileURL, req.FileSize)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no file source provided (buffer, URL, or page URLs)")
	}

	img, err := decodePage(req.JobID, 0, data)
	if err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

func decodePage(jobID string, page int, data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, scanerrors.NewDecodeFailedError(jobID, page, err)
	}
	log.Printf("[Job %s] Decoded page %d: format=%s, size=%dx%d",
		jobID, page, format, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// downloadFile downloads a page image with retry and exponential backoff.
func (p *ScanProcessor) downloadFile(ctx context.Context, jobID string, fileURL string, expectedSize int64) ([]byte, error) {
	const (
		maxRetries       = 5
		initialBackoffMs = 1000
		maxBackoffMs     = 32000
	)

	client := &http.Client{Timeout: 10 * time.Minute}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("[Job %s] Download attempt %d/%d from: %s", jobID, attempt, maxRetries, fileURL)

		data, err := p.tryDownload(ctx, client, fileURL, expectedSize)
		if err == nil {
			log.Printf("[Job %s] Download successful on attempt %d: %d bytes", jobID, attempt, len(data))
			return data, nil
		}
		lastErr = err
		log.Printf("[Job %s] Download attempt %d failed: %v", jobID, attempt, err)

		if attempt < maxRetries {
			backoffMs := initialBackoffMs * int(math.Pow(2, float64(attempt-1)))
			if backoffMs > maxBackoffMs {
				backoffMs = maxBackoffMs
			}
			log.Printf("[Job %s] Retrying in %dms...", jobID, backoffMs)
			select {
			case <-time.After(time.Duration(backoffMs) * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff")
			}
		}
	}
	return nil, fmt.Errorf("failed to download file after %d attempts: %w", maxRetries, lastErr)
}

func (p *ScanProcessor) tryDownload(ctx context.Context, client *http.Client, fileURL string, expectedSize int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if expectedSize > 0 && resp.ContentLength > 0 && resp.ContentLength != expectedSize {
		log.Printf("WARNING: Content-Length mismatch. Expected=%d, Got=%d", expectedSize, resp.ContentLength)
	}
	if p.config.MaxFileSize > 0 && resp.ContentLength > p.config.MaxFileSize {
		return nil, fmt.Errorf("file size exceeds maximum: %d > %d bytes", resp.ContentLength, p.config.MaxFileSize)
	}

	maxReadBytes := p.config.MaxFileSize
	if maxReadBytes == 0 {
		maxReadBytes = 1 << 30
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
}
