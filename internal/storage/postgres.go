/**
 * PostgreSQL Client for the identity scan worker
 *
 * Handles database operations for job persistence and scan result storage.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Confidence       float64 // best adjusted confidence across the scan, 0-100
	ProcessingTimeMs int64
	ScanResultID     string
	ErrorCode        string
	ErrorMessage     string
	OCREngineUsed    string
	Metadata         map[string]interface{}
}

// ScanResult is the persisted outcome of one scan job: every page's
// classified regions plus summary fields used for querying.
type ScanResult struct {
	ID            string
	JobID         string
	Pages         []PageRecord
	BestType      string
	BestSide      string
	BestConfidence float64
}

// PageRecord is one page's classified regions in storable form.
type PageRecord struct {
	PageIndex int            `json:"pageIndex"`
	Regions   []RegionRecord `json:"regions"`
}

// RegionRecord mirrors one classified region.
type RegionRecord struct {
	X          int      `json:"x"`
	Y          int      `json:"y"`
	W          int      `json:"w"`
	H          int      `json:"h"`
	Type       string   `json:"type"`
	Side       string   `json:"side"`
	Method     string   `json:"method"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords,omitempty"`
	OCRQuality float64  `json:"ocrQuality"`
	InkRatio   float64  `json:"inkRatio"`
}

// sanitizeConfidence rounds confidence to 2 decimal places and clamps it to
// [0, 100]. PostgreSQL FLOAT can carry excess precision (e.g. 96.320000000001)
// that breaks NUMERIC casts downstream.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return float64(int(confidence*100+0.5)) / 100
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus updates job status in the database
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	sanitizedConfidence := sanitizeConfidence(update.Confidence)

	// Convert metadata to JSONB
	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	// UPSERT so the worker can create the job record on first status update
	// when the API has not created it yet. NUMERIC(5,2) keeps confidence at
	// bounded precision.
	query := `
		INSERT INTO idscan.scan_jobs (
			id, user_id, filename, mime_type, file_size,
			status, confidence, processing_time_ms, scan_result_id,
			error_code, error_message, ocr_engine_used, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE($13, 'anonymous'), COALESCE($10, 'unknown'),
			COALESCE($11, 'application/octet-stream'), COALESCE($12, 0),
			$2, NULLIF($3::NUMERIC(5,2), 0), NULLIF($4, 0),
			CASE WHEN $5 = '' THEN NULL ELSE $5::uuid END,
			NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
			COALESCE($9::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confidence = COALESCE(NULLIF(EXCLUDED.confidence::NUMERIC(5,2), 0), idscan.scan_jobs.confidence),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), idscan.scan_jobs.processing_time_ms),
			scan_result_id = CASE
				WHEN EXCLUDED.scan_result_id IS NOT NULL THEN EXCLUDED.scan_result_id
				ELSE idscan.scan_jobs.scan_result_id
			END,
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			ocr_engine_used = NULLIF(EXCLUDED.ocr_engine_used, ''),
			metadata = COALESCE(EXCLUDED.metadata, idscan.scan_jobs.metadata),
			filename = COALESCE(EXCLUDED.filename, idscan.scan_jobs.filename),
			mime_type = COALESCE(EXCLUDED.mime_type, idscan.scan_jobs.mime_type),
			file_size = COALESCE(NULLIF(EXCLUDED.file_size, 0), idscan.scan_jobs.file_size),
			user_id = COALESCE(EXCLUDED.user_id, idscan.scan_jobs.user_id),
			updated_at = NOW()
		RETURNING id
	`

	// Extract additional fields from metadata if present
	var filename, mimeType, userId string
	var fileSize int64
	if update.Metadata != nil {
		if fn, ok := update.Metadata["filename"].(string); ok {
			filename = fn
		}
		if mt, ok := update.Metadata["mimeType"].(string); ok {
			mimeType = mt
		}
		if fs, ok := update.Metadata["fileSize"].(int64); ok {
			fileSize = fs
		} else if fs, ok := update.Metadata["fileSize"].(float64); ok {
			fileSize = int64(fs)
		}
		if uid, ok := update.Metadata["userId"].(string); ok {
			userId = uid
		}
	}

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1 - job_id
		update.Status,           // $2 - status
		sanitizedConfidence,     // $3 - confidence
		update.ProcessingTimeMs, // $4 - processing_time_ms
		update.ScanResultID,     // $5 - scan_result_id
		update.ErrorCode,        // $6 - error_code
		update.ErrorMessage,     // $7 - error_message
		update.OCREngineUsed,    // $8 - ocr_engine_used
		metadataJSON,            // $9 - metadata
		filename,                // $10 - filename
		mimeType,                // $11 - mime_type
		fileSize,                // $12 - file_size
		userId,                  // $13 - user_id
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s, confidence=%.2f): %w",
			update.JobID, update.Status, sanitizedConfidence, err)
	}

	return nil
}

// StoreScanResult stores the classified pages of a finished scan
func (p *PostgresClient) StoreScanResult(ctx context.Context, result *ScanResult) (string, error) {
	if result.JobID == "" {
		return "", fmt.Errorf("job ID is required")
	}

	pagesJSON, err := json.Marshal(result.Pages)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pages: %w", err)
	}

	query := `
		INSERT INTO idscan.scan_results (
			job_id,
			pages,
			best_type,
			best_side,
			best_confidence,
			created_at
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5::NUMERIC(5,2), NOW())
		RETURNING id
	`

	var resultID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		result.JobID,
		pagesJSON,
		result.BestType,
		result.BestSide,
		sanitizeConfidence(result.BestConfidence),
	).Scan(&resultID)

	if err != nil {
		return "", fmt.Errorf("failed to store scan result: %w", err)
	}

	return resultID, nil
}

// GetScanResult retrieves a scan result by ID
func (p *PostgresClient) GetScanResult(ctx context.Context, resultID string) (*ScanResult, error) {
	if resultID == "" {
		return nil, fmt.Errorf("result ID is required")
	}

	query := `
		SELECT
			id,
			job_id,
			pages,
			COALESCE(best_type, ''),
			COALESCE(best_side, ''),
			COALESCE(best_confidence, 0)
		FROM idscan.scan_results
		WHERE id = $1
	`

	var result ScanResult
	var pagesJSON []byte

	err := p.db.QueryRowContext(ctx, query, resultID).Scan(
		&result.ID,
		&result.JobID,
		&pagesJSON,
		&result.BestType,
		&result.BestSide,
		&result.BestConfidence,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scan result not found: %s", resultID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get scan result: %w", err)
	}

	if err := json.Unmarshal(pagesJSON, &result.Pages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pages: %w", err)
	}

	return &result, nil
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id,
			user_id,
			filename,
			mime_type,
			file_size,
			status,
			confidence,
			processing_time_ms,
			scan_result_id,
			error_code,
			error_message,
			ocr_engine_used,
			metadata,
			created_at,
			updated_at
		FROM idscan.scan_jobs
		WHERE id = $1::uuid
	`

	var (
		id, userID, filename                   string
		mimeType, status                       sql.NullString
		fileSize                               sql.NullInt64
		confidence                             sql.NullFloat64
		processingTimeMs                       sql.NullInt64
		scanResultID, errorCode, errorMessage  sql.NullString
		ocrEngineUsed                          sql.NullString
		metadataJSON                           []byte
		createdAt, updatedAt                   time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &userID, &filename, &mimeType, &fileSize, &status,
		&confidence, &processingTimeMs, &scanResultID,
		&errorCode, &errorMessage, &ocrEngineUsed,
		&metadataJSON, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	// Parse metadata
	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	// Build result map
	result := map[string]interface{}{
		"id":        id,
		"userId":    userID,
		"filename":  filename,
		"status":    status.String,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"metadata":  metadata,
	}

	if mimeType.Valid {
		result["mimeType"] = mimeType.String
	}
	if fileSize.Valid {
		result["fileSize"] = fileSize.Int64
	}
	if confidence.Valid {
		result["confidence"] = confidence.Float64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if scanResultID.Valid {
		result["scanResultId"] = scanResultID.String
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}
	if ocrEngineUsed.Valid {
		result["ocrEngineUsed"] = ocrEngineUsed.String
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
