/**
 * Remote text acquirer
 *
 * Delegates OCR to an HTTP vision service instead of local tesseract,
 * useful when the worker runs without tesseract installed or when a
 * higher-accuracy hosted model is available. Fast mode asks the service to
 * prefer speed; full mode asks for accuracy. Transport failures surface as
 * empty text with quality 0.
 */

package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/cardsight/idscan-worker/internal/detect"
	"github.com/cardsight/idscan-worker/internal/logging"
)

// RemoteEngine implements detect.TextAcquirer against a vision OCR service.
type RemoteEngine struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// remoteOCRRequest is the request body for the /api/vision/ocr endpoint.
type remoteOCRRequest struct {
	Image          string `json:"image"`  // base64 encoded PNG
	Format         string `json:"format"` // always "base64"
	PreferAccuracy bool   `json:"preferAccuracy"`
	Language       string `json:"language,omitempty"`
}

// remoteOCRResponse is the synchronous response envelope.
type remoteOCRResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"` // 0-1
		ModelUsed  string  `json:"modelUsed"`
	} `json:"data"`
}

// NewRemoteEngine creates a client for the given service base URL.
func NewRemoteEngine(baseURL string, logger *logging.Logger) *RemoteEngine {
	if logger == nil {
		logger = logging.NewLogger("ocr-remote")
	}
	return &RemoteEngine{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// Acquire sends the region image to the remote service and returns its
// text. Quality is the service confidence scaled to 0-100.
func (r *RemoteEngine) Acquire(ctx context.Context, img image.Image, lang string, mode detect.AcquireMode) (string, float64) {
	data, err := encodePNG(img)
	if err != nil {
		r.logger.Warn("failed to encode region image", "error", err)
		return "", 0
	}

	reqBody := remoteOCRRequest{
		Image:          base64.StdEncoding.EncodeToString(data),
		Format:         "base64",
		PreferAccuracy: mode == detect.AcquireFull,
		Language:       lang,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		r.logger.Warn("failed to marshal OCR request", "error", err)
		return "", 0
	}

	url := fmt.Sprintf("%s/api/vision/ocr", r.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		r.logger.Warn("failed to build OCR request", "error", err)
		return "", 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("remote OCR call failed", "error", err, "mode", modeName(mode))
		return "", 0
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.logger.Warn("failed to read OCR response", "error", err)
		return "", 0
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("remote OCR returned non-200", "status", resp.StatusCode)
		return "", 0
	}

	var parsed remoteOCRResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		r.logger.Warn("failed to parse OCR response", "error", err)
		return "", 0
	}
	if !parsed.Success {
		r.logger.Warn("remote OCR reported failure", "message", parsed.Message)
		return "", 0
	}

	return parsed.Data.Text, clampQuality(parsed.Data.Confidence * 100)
}

func clampQuality(q float64) float64 {
	if q < 0 {
		return 0
	}
	if q > 100 {
		return 100
	}
	return q
}
