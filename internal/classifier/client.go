package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"emobot/internal/domain"
)

var ErrNoFace = errors.New("no face detected")

const maxResponseBytes = 1 << 20

type Classifier interface {
	Classify(ctx context.Context, frame domain.Frame) (string, error)
}

// Client calls a facial analysis service exposing the deepface REST contract.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type analyzeRequest struct {
	Img              string   `json:"img"`
	Actions          []string `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
}

type analyzeResult struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Emotion         map[string]float64 `json:"emotion,omitempty"`
}

type analyzeResponse struct {
	Results []analyzeResult `json:"results"`
}

func (c *Client) Classify(ctx context.Context, frame domain.Frame) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("emotion classifier is not configured")
	}
	if len(frame.JPEG) == 0 {
		return "", fmt.Errorf("empty frame")
	}
	body, _ := json.Marshal(analyzeRequest{
		Img:              "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame.JPEG),
		Actions:          []string{"emotion"},
		EnforceDetection: false,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("classifier read: %w", err)
	}
	if len(respBody) > maxResponseBytes {
		return "", fmt.Errorf("classifier response too large")
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("classifier status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out analyzeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("classifier decode: %w", err)
	}
	if len(out.Results) == 0 {
		return "", ErrNoFace
	}
	emotion := strings.TrimSpace(out.Results[0].DominantEmotion)
	if emotion == "" {
		return "", fmt.Errorf("classifier returned no dominant emotion")
	}
	return emotion, nil
}
