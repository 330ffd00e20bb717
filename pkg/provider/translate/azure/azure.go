// Package azure provides an Azure Translator-backed translation provider
// using the v3.0 REST API.
//
// Usage:
//
//	p, err := azure.New(key, "westeurope")
//	out, err := p.Translate(ctx, translate.Request{Text: "hello", From: "en", To: "fr"})
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/voxlate/voxlate/pkg/provider/translate"
)

const (
	defaultEndpoint = "https://api.cognitive.microsofttranslator.com"
	apiVersion      = "3.0"
	defaultTimeout  = 10 * time.Second
)

// Compile-time assertion that Provider implements translate.Provider.
var _ translate.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for translation requests.
// Defaults to a client with a 10s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithEndpoint overrides the service endpoint URL. Intended for tests and
// sovereign-cloud deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements translate.Provider backed by the Azure Translator v3.0
// REST API. It is safe for concurrent use.
type Provider struct {
	key        string
	region     string
	endpoint   string
	httpClient *http.Client
}

// New creates a Provider for the given subscription key and service region.
// Both must be non-empty.
func New(key, region string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azure translate: subscription key must not be empty")
	}
	if region == "" {
		return nil, errors.New("azure translate: region must not be empty")
	}
	p := &Provider{
		key:        key,
		region:     region,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type translateResponse []struct {
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}

type translateError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Translate renders req.Text in the target language.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	if req.Text == "" {
		return "", errors.New("azure translate: text must not be empty")
	}
	if req.To == "" {
		return "", errors.New("azure translate: target language must not be empty")
	}

	q := url.Values{
		"api-version": {apiVersion},
		"to":          {req.To},
	}
	if req.From != "" {
		q.Set("from", req.From)
	}

	payload, err := json.Marshal([]map[string]string{{"Text": req.Text}})
	if err != nil {
		return "", fmt.Errorf("azure translate: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"/translate?"+q.Encode(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("azure translate: build request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	httpReq.Header.Set("Ocp-Apim-Subscription-Region", p.region)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("azure translate: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("azure translate: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr translateError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("azure translate: service error %d: %s",
				apiErr.Error.Code, apiErr.Error.Message)
		}
		return "", fmt.Errorf("azure translate: unexpected status %d", resp.StatusCode)
	}

	var dec translateResponse
	if err := json.Unmarshal(body, &dec); err != nil {
		return "", fmt.Errorf("azure translate: decode response: %w", err)
	}
	if len(dec) == 0 || len(dec[0].Translations) == 0 {
		return "", errors.New("azure translate: response contains no translations")
	}

	return dec[0].Translations[0].Text, nil
}
