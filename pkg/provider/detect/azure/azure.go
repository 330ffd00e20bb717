// Package azure provides an Azure Text Analytics-backed language detection
// provider.
//
// Usage:
//
//	p, err := azure.New(key, "https://myresource.cognitiveservices.azure.com")
//	d, err := p.Detect(ctx, "bonjour tout le monde")
package azure

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

	"github.com/voxlate/voxlate/pkg/provider/detect"
)

const (
	languagesPath  = "/text/analytics/v3.0/languages"
	defaultTimeout = 10 * time.Second
)

// Compile-time assertion that Provider implements detect.Provider.
var _ detect.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for detection requests.
// Defaults to a client with a 10s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements detect.Provider backed by the Azure Text Analytics
// language detection endpoint. It is safe for concurrent use.
type Provider struct {
	key        string
	endpoint   string
	httpClient *http.Client
}

// New creates a Provider for the given subscription key and resource endpoint
// (e.g., "https://myresource.cognitiveservices.azure.com"). Both must be
// non-empty.
func New(key, endpoint string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azure detect: subscription key must not be empty")
	}
	if endpoint == "" {
		return nil, errors.New("azure detect: endpoint must not be empty")
	}
	p := &Provider{
		key:        key,
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type detectRequest struct {
	Documents []detectDocument `json:"documents"`
}

type detectDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type detectResponse struct {
	Documents []struct {
		ID               string `json:"id"`
		DetectedLanguage struct {
			Name           string  `json:"name"`
			ISO6391Name    string  `json:"iso6391Name"`
			ConfidenceScore float64 `json:"confidenceScore"`
		} `json:"detectedLanguage"`
	} `json:"documents"`
	Errors []struct {
		ID    string `json:"id"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"errors"`
}

// Detect determines the language of text.
func (p *Provider) Detect(ctx context.Context, text string) (detect.Detection, error) {
	if strings.TrimSpace(text) == "" {
		return detect.Detection{}, errors.New("azure detect: text must not be empty")
	}

	payload, err := json.Marshal(detectRequest{
		Documents: []detectDocument{{ID: "1", Text: text}},
	})
	if err != nil {
		return detect.Detection{}, fmt.Errorf("azure detect: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+languagesPath, bytes.NewReader(payload))
	if err != nil {
		return detect.Detection{}, fmt.Errorf("azure detect: build request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return detect.Detection{}, fmt.Errorf("azure detect: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return detect.Detection{}, fmt.Errorf("azure detect: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return detect.Detection{}, fmt.Errorf("azure detect: unexpected status %d: %s",
			resp.StatusCode, truncate(body, 200))
	}

	var dec detectResponse
	if err := json.Unmarshal(body, &dec); err != nil {
		return detect.Detection{}, fmt.Errorf("azure detect: decode response: %w", err)
	}
	if len(dec.Errors) > 0 {
		e := dec.Errors[0]
		return detect.Detection{}, fmt.Errorf("azure detect: document error %s: %s",
			e.Error.Code, e.Error.Message)
	}
	if len(dec.Documents) == 0 {
		return detect.Detection{}, errors.New("azure detect: response contains no documents")
	}

	doc := dec.Documents[0]
	return detect.Detection{
		Language:   doc.DetectedLanguage.ISO6391Name,
		Confidence: doc.DetectedLanguage.ConfidenceScore,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
