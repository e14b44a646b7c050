// Package deepface adapts a DeepFace HTTP sidecar to the emotion
// analyzer port. The sidecar serves the model; this client only moves
// frames in and score mappings out.
package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/emovid/emovid-analysis-service/internal/domain/entity"
	"github.com/emovid/emovid-analysis-service/internal/domain/port"
)

type analyzeRequest struct {
	Image            string   `json:"img"`
	Actions          []string `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
	DetectorBackend  string   `json:"detector_backend"`
}

type analyzeResponse struct {
	Results []struct {
		Emotion        map[string]float64 `json:"emotion"`
		FaceConfidence float64            `json:"face_confidence"`
		Region         struct {
			X int `json:"x"`
			Y int `json:"y"`
			W int `json:"w"`
			H int `json:"h"`
		} `json:"region"`
	} `json:"results"`
}

type Client struct {
	baseURL string
	backend string
	http    *http.Client
}

func NewClient(baseURL, backend string) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 3 * time.Minute,
		}).DialContext,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       2 * time.Minute,
		ResponseHeaderTimeout: 5 * time.Minute,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		backend: backend,
		http: &http.Client{
			Transport: tr,
			Timeout:   10 * time.Minute,
		},
	}
}

func (c *Client) Backend() string {
	return c.backend
}

// Analyze posts one frame to the sidecar. Detection enforcement is
// disabled: a frame without a face comes back with confidence 0 and empty
// scores instead of an error.
func (c *Client) Analyze(ctx context.Context, frame entity.Frame) (*port.FaceAnalysis, error) {
	body, err := json.Marshal(analyzeRequest{
		Image:            base64.StdEncoding.EncodeToString(frame.Data),
		Actions:          []string{"emotion"},
		EnforceDetection: false,
		DetectorBackend:  c.backend,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		const maxErr = 4096
		lb := io.LimitReader(resp.Body, maxErr)
		msg, _ := io.ReadAll(lb)
		return nil, fmt.Errorf("analyze %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("analyze decode: %w", err)
	}
	if len(out.Results) == 0 {
		// No detection at all still counts as a valid "no face" outcome.
		return &port.FaceAnalysis{Scores: map[string]float64{}}, nil
	}

	first := out.Results[0]
	return &port.FaceAnalysis{
		Scores:         first.Emotion,
		FaceConfidence: first.FaceConfidence,
		Region: entity.Region{
			X: first.Region.X,
			Y: first.Region.Y,
			W: first.Region.W,
			H: first.Region.H,
		},
	}, nil
}

// Factory hands each pool worker its own client over a shared transport.
// The warm-up ping at construction stands in for the model load the
// sidecar performs on first contact, so workers start with a hot model.
type Factory struct {
	baseURL string
	backend string
}

func NewFactory(baseURL, backend string) *Factory {
	return &Factory{baseURL: baseURL, backend: backend}
}

func (f *Factory) New(ctx context.Context) (port.EmotionAnalyzer, error) {
	client := NewClient(f.baseURL, f.backend)
	if err := client.ping(ctx); err != nil {
		return nil, fmt.Errorf("deepface warm-up: %w", err)
	}
	return client, nil
}

func (c *Client) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
