package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"water-quality-api/apperrors"
	"water-quality-api/config"
	"water-quality-api/metrics"
	"water-quality-api/models"
)

// InferenceResult is the classification produced by the external ML service.
type InferenceResult struct {
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
	ResultText  string  `json:"result_text"`
}

// InferenceClient calls the external ML service. Each attempt has its own
// timeout; failed attempts are retried with exponential backoff until
// maxRetries attempts have been made.
type InferenceClient struct {
	baseURL     string
	client      *http.Client
	maxRetries  int
	backoffBase time.Duration
}

func NewInferenceClient(cfg config.MLConfig) *InferenceClient {
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}
	// Every attempt needs a bound; an unset timeout would let a stalled ML
	// service hang the caller.
	timeoutSec := cfg.TimeoutSec
	if timeoutSec < 1 {
		timeoutSec = 10
	}
	return &InferenceClient{
		baseURL: cfg.URL,
		client: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		maxRetries:  retries,
		backoffBase: time.Second,
	}
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Prediction struct {
		Potability  *int     `json:"potability"`
		Probability *float64 `json:"probability"`
		Confidence  *float64 `json:"confidence"`
	} `json:"prediction"`
}

// Predict classifies one sample. Feature order is fixed by the model: pH,
// hardness, solids, chloramines, sulfate, conductivity, organic carbon,
// trihalomethanes, turbidity.
func (c *InferenceClient) Predict(ctx context.Context, features [9]float64) (*InferenceResult, error) {
	body, err := json.Marshal(predictRequest{Features: features[:]})
	if err != nil {
		return nil, &apperrors.InferenceError{Attempts: 0, Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		result, err := c.doPredict(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Printf("inference attempt %d/%d failed: %v", attempt, c.maxRetries, err)

		if attempt == c.maxRetries {
			break
		}
		metrics.InferenceRetries.Inc()

		// Backoff delay doubles per attempt: base*2, base*4, ...
		delay := c.backoffBase << uint(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			metrics.InferenceFailures.Inc()
			return nil, &apperrors.InferenceError{Attempts: attempt, Err: ctx.Err()}
		}
	}

	metrics.InferenceFailures.Inc()
	return nil, &apperrors.InferenceError{Attempts: c.maxRetries, Err: lastErr}
}

func (c *InferenceClient) doPredict(ctx context.Context, body []byte) (*InferenceResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("ml service returned status %d", resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode ml response: %w", err)
	}

	p := pr.Prediction
	if p.Potability == nil || p.Probability == nil || p.Confidence == nil {
		return nil, fmt.Errorf("ml response missing prediction fields")
	}
	if *p.Potability != models.LabelNotPotable && *p.Potability != models.LabelPotable {
		return nil, fmt.Errorf("ml response potability out of range: %d", *p.Potability)
	}
	if *p.Probability < 0 || *p.Probability > 1 {
		return nil, fmt.Errorf("ml response probability out of range: %f", *p.Probability)
	}
	if *p.Confidence < 0 || *p.Confidence > 1 {
		return nil, fmt.Errorf("ml response confidence out of range: %f", *p.Confidence)
	}

	return &InferenceResult{
		Label:       *p.Potability,
		Probability: *p.Probability,
		Confidence:  *p.Confidence,
		ResultText:  models.ResultTextFor(*p.Potability),
	}, nil
}
