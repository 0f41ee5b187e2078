// Analysis proxy client implementing [Extractor] and [Classifier]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
)

// AnalysisService makes HTTP requests to the analysis proxy.
type AnalysisService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAnalysisService creates a client for the analysis proxy at baseURL.
func NewAnalysisService(baseURL string, client *http.Client) *AnalysisService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &AnalysisService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (r *APIResponse) message() string {
	var detail struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(r.Body, &detail); err == nil {
		if detail.Detail != "" {
			return detail.Detail
		}
		if detail.Error != "" {
			return detail.Error
		}
	}
	return strings.TrimSpace(string(r.Body))
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *AnalysisService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return a.do(req)
}

// Post sends v as JSON to the specified path and returns the raw response.
func (a *AnalysisService) Post(ctx context.Context, path string, v any) (*APIResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req)
}

func (a *AnalysisService) do(req *http.Request) (*APIResponse, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

type extractRequest struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

type extractResponse struct {
	Features models.FeatureVector `json:"features"`
}

// Extract asks the proxy to download and analyse the track.
// Every failure, including an empty vector, wraps [shared.ErrExtractionFailed].
func (a *AnalysisService) Extract(ctx context.Context, artist, title string) (models.FeatureVector, error) {
	resp, err := a.Post(ctx, "/features", extractRequest{Artist: artist, Title: title})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrExtractionFailed, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrExtractionFailed, resp.StatusCode, resp.message())
	}

	var out extractResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrExtractionFailed, err)
	}
	if len(out.Features) == 0 {
		return nil, fmt.Errorf("%w: no features for %s - %s", shared.ErrExtractionFailed, artist, title)
	}
	return out.Features, nil
}

type modelResponse struct {
	Labels []string `json:"labels"`
}

// Labels fetches the model's label set.
func (a *AnalysisService) Labels(ctx context.Context) ([]string, error) {
	resp, err := a.Get(ctx, "/model")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrModelUnavailable, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrModelUnavailable, resp.StatusCode, resp.message())
	}

	var out modelResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrModelUnavailable, err)
	}
	if len(out.Labels) == 0 {
		return nil, fmt.Errorf("%w: model has no labels", shared.ErrModelUnavailable)
	}
	return out.Labels, nil
}

type predictRequest struct {
	Features models.FeatureVector `json:"features"`
}

type predictResponse struct {
	Probabilities []models.Probability `json:"probabilities"`
}

// PredictProba classifies a feature vector.
func (a *AnalysisService) PredictProba(ctx context.Context, features models.FeatureVector) ([]models.Probability, error) {
	resp, err := a.Post(ctx, "/predict", predictRequest{Features: features})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrModelUnavailable, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrModelUnavailable, resp.StatusCode, resp.message())
	}

	var out predictResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrModelUnavailable, err)
	}
	return out.Probabilities, nil
}
