// Package azure provides an Azure Cognitive Services Speech-backed recognize
// provider using the short-audio REST API.
//
// Authentication uses the token exchange flow: the subscription key is traded
// for a short-lived bearer token at the regional issueToken endpoint, and the
// token is reused until shortly before it expires.
//
// Usage:
//
//	p, err := azure.New(key, "westeurope")
//	res, err := p.Recognize(ctx, recognize.Request{PCM: pcm, SampleRate: 16000, Language: "en-US"})
package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/voxlate/voxlate/pkg/audio"
	"github.com/voxlate/voxlate/pkg/provider/recognize"
)

const (
	// tokenLifetime is how long an issued bearer token is reused. Azure
	// tokens are valid for 10 minutes; refreshing after 9 leaves headroom
	// for clock skew and in-flight requests.
	tokenLifetime = 9 * time.Minute

	// ticksPerNanosecond converts the 100-nanosecond ticks the Speech API
	// reports offsets and durations in.
	nanosPerTick = 100

	defaultTimeout = 15 * time.Second
)

// Recognition status values reported by the short-audio endpoint.
const (
	statusSuccess        = "Success"
	statusNoMatch        = "NoMatch"
	statusSilenceTimeout = "InitialSilenceTimeout"
	statusBabbleTimeout  = "BabbleTimeout"
)

// Compile-time assertion that Provider implements recognize.Provider.
var _ recognize.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for both token and recognition
// requests. Defaults to a client with a 15s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithEndpoint overrides the recognition endpoint URL. Intended for tests and
// sovereign-cloud deployments; the default is derived from the region.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithTokenEndpoint overrides the issueToken endpoint URL. Intended for tests
// and sovereign-cloud deployments; the default is derived from the region.
func WithTokenEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.tokenEndpoint = endpoint
	}
}

// Provider implements recognize.Provider backed by the Azure Speech
// short-audio REST API. It is safe for concurrent use; concurrent calls share
// one cached bearer token.
type Provider struct {
	key           string
	endpoint      string
	tokenEndpoint string
	httpClient    *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a Provider for the given subscription key and service region
// (e.g., "westeurope"). Both must be non-empty.
func New(key, region string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, errors.New("azure speech: subscription key must not be empty")
	}
	if region == "" {
		return nil, errors.New("azure speech: region must not be empty")
	}
	p := &Provider{
		key: key,
		endpoint: fmt.Sprintf(
			"https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1",
			region),
		tokenEndpoint: fmt.Sprintf(
			"https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken",
			region),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// recognitionResponse mirrors the short-audio endpoint's simple result format.
type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
}

// Recognize transcribes one audio frame. Frames the service classifies as
// silence or noise return an empty Result with a nil error.
func (p *Provider) Recognize(ctx context.Context, req recognize.Request) (recognize.Result, error) {
	if len(req.PCM) == 0 {
		return recognize.Result{}, errors.New("azure speech: empty PCM frame")
	}
	if req.Language == "" {
		return recognize.Result{}, errors.New("azure speech: language must not be empty")
	}

	token, err := p.bearerToken(ctx)
	if err != nil {
		return recognize.Result{}, fmt.Errorf("azure speech: obtain token: %w", err)
	}

	wav, err := audio.EncodeWAV(req.PCM, req.SampleRate)
	if err != nil {
		return recognize.Result{}, fmt.Errorf("azure speech: encode frame: %w", err)
	}

	u := p.endpoint + "?" + url.Values{
		"language": {req.Language},
		"format":   {"detailed"},
	}.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(string(wav)))
	if err != nil {
		return recognize.Result{}, fmt.Errorf("azure speech: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type",
		fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", req.SampleRate))
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return recognize.Result{}, fmt.Errorf("azure speech: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return recognize.Result{}, fmt.Errorf("azure speech: read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// The cached token may have been revoked; drop it so the next call
		// fetches a fresh one.
		p.invalidateToken()
		return recognize.Result{}, fmt.Errorf("azure speech: unauthorized (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return recognize.Result{}, fmt.Errorf("azure speech: unexpected status %d: %s",
			resp.StatusCode, truncate(body, 200))
	}

	var rec recognitionResponse
	if err := json.Unmarshal(body, &rec); err != nil {
		return recognize.Result{}, fmt.Errorf("azure speech: decode response: %w", err)
	}

	switch rec.RecognitionStatus {
	case statusSuccess:
		return recognize.Result{
			Text:     rec.DisplayText,
			Offset:   time.Duration(rec.Offset * nanosPerTick),
			Duration: time.Duration(rec.Duration * nanosPerTick),
		}, nil
	case statusNoMatch, statusSilenceTimeout, statusBabbleTimeout:
		// Silence or unintelligible audio is a normal outcome, not an error.
		return recognize.Result{}, nil
	default:
		return recognize.Result{}, fmt.Errorf("azure speech: recognition failed with status %q", rec.RecognitionStatus)
	}
}

// bearerToken returns a cached token, refreshing it from the issueToken
// endpoint when missing or about to expire.
func (p *Provider) bearerToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Length", "0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected token status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	if len(body) == 0 {
		return "", errors.New("empty token response")
	}

	p.token = string(body)
	p.tokenExpiry = time.Now().Add(tokenLifetime)
	return p.token, nil
}

func (p *Provider) invalidateToken() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
