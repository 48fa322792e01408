package tryon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"garment-studio/internal/domain"
	"garment-studio/internal/domain/model"
	"garment-studio/internal/domain/ports/adapter"
	"garment-studio/internal/infra/metrics"
)

var _ adapter.VirtualTryOnAdapter = (*HTTPAdapter)(nil)

// HTTPAdapter talks to a hosted try-on service over its JSON API:
// POST /v1/run starts a prediction, GET /v1/status/{id} reports it.
type HTTPAdapter struct {
	baseURL      string
	apiKey       string
	model        string
	submitClient *http.Client
	pollClient   *http.Client
}

func NewHTTPAdapter(baseURL, apiKey, model string, submitTimeout, pollTimeout time.Duration) (*HTTPAdapter, error) {
	if baseURL == "" {
		return nil, errors.New("tryon: empty base url")
	}
	if model == "" {
		model = "tryon-v1.6"
	}
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	if pollTimeout <= 0 {
		pollTimeout = 15 * time.Second
	}
	return &HTTPAdapter{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		submitClient: &http.Client{Timeout: submitTimeout},
		pollClient:   &http.Client{Timeout: pollTimeout},
	}, nil
}

func (h *HTTPAdapter) Name() string { return "tryon" }

type runRequest struct {
	ModelName string    `json:"model_name"`
	Inputs    runInputs `json:"inputs"`
}

type runInputs struct {
	ModelImage   string `json:"model_image"`
	GarmentImage string `json:"garment_image"`
}

type runResponse struct {
	ID    string    `json:"id"`
	Error *apiError `json:"error"`
}

type statusResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Output []string  `json:"output"`
	Error  *apiError `json:"error"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *apiError) String() string {
	if e == nil {
		return ""
	}
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

func (h *HTTPAdapter) Submit(ctx context.Context, sub adapter.TryOnSubmission) (string, error) {
	body, err := json.Marshal(runRequest{
		ModelName: h.model,
		Inputs: runInputs{
			ModelImage:   sub.PersonImageURL,
			GarmentImage: sub.GarmentImageURL,
		},
	})
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := h.do(ctx, h.submitClient, http.MethodPost, h.baseURL+"/v1/run", bytes.NewReader(body))
	metrics.ObserveProviderCall(h.Name(), "submit", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return "", domain.NewUpstreamError(h.Name(), err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", h.statusError(resp)
	}

	var out runResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewUpstreamError(h.Name(), err, false)
	}
	if out.ID == "" {
		return "", domain.NewUpstreamError(h.Name(), fmt.Errorf("run accepted without id: %s", out.Error.String()), false)
	}
	return out.ID, nil
}

func (h *HTTPAdapter) Poll(ctx context.Context, providerJobID string) (*adapter.TryOnPoll, error) {
	start := time.Now()
	resp, err := h.do(ctx, h.pollClient, http.MethodGet, h.baseURL+"/v1/status/"+providerJobID, nil)
	metrics.ObserveProviderCall(h.Name(), "poll", time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		return nil, domain.NewUpstreamError(h.Name(), err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, h.statusError(resp)
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.NewUpstreamError(h.Name(), err, false)
	}
	metrics.IncStatusPoll("provider")
	return normalize(&out), nil
}

// normalize maps provider status vocabulary onto the three states the
// pipeline understands. Unknown statuses are treated as still running
// so a vocabulary addition upstream never fails jobs spuriously.
func normalize(out *statusResponse) *adapter.TryOnPoll {
	poll := &adapter.TryOnPoll{}
	switch out.Status {
	case "completed":
		poll.Status = model.TryOnStatusCompleted
		if len(out.Output) > 0 {
			poll.ResultImageURL = out.Output[0]
		}
	case "failed", "canceled":
		poll.Status = model.TryOnStatusFailed
		poll.FailureReason = out.Error.String()
		if poll.FailureReason == "" {
			poll.FailureReason = "try-on failed without detail"
		}
	default: // starting, in_queue, processing
		poll.Status = model.TryOnStatusProcessing
		if len(out.Output) > 0 {
			poll.IntermediateImageURL = out.Output[0]
		}
	}
	return poll
}

func (h *HTTPAdapter) do(ctx context.Context, client *http.Client, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return client.Do(req)
}

func (h *HTTPAdapter) statusError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	err := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, err)
	}
	transient := resp.StatusCode >= 500
	return domain.NewUpstreamError(h.Name(), err, transient)
}
