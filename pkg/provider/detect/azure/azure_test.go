package azure_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxlate/voxlate/pkg/provider/detect/azure"
)

func TestDetect_ParsesDetectedLanguage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "sub-key" {
			t.Errorf("key header: got %q, want sub-key", got)
		}
		var req struct {
			Documents []struct {
				ID   string `json:"id"`
				Text string `json:"text"`
			} `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Documents) != 1 || req.Documents[0].Text != "bonjour tout le monde" {
			t.Errorf("unexpected request documents: %+v", req.Documents)
		}
		io.WriteString(w, `{"documents":[{"id":"1","detectedLanguage":{"name":"French","iso6391Name":"fr","confidenceScore":0.98}}],"errors":[]}`)
	}))
	t.Cleanup(srv.Close)

	p, err := azure.New("sub-key", srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d, err := p.Detect(context.Background(), "bonjour tout le monde")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if d.Language != "fr" {
		t.Errorf("language: got %q, want fr", d.Language)
	}
	if d.Confidence != 0.98 {
		t.Errorf("confidence: got %v, want 0.98", d.Confidence)
	}
}

func TestDetect_DocumentErrorIsSurfaced(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"documents":[],"errors":[{"id":"1","error":{"code":"InvalidDocument","message":"bad document"}}]}`)
	}))
	t.Cleanup(srv.Close)

	p, err := azure.New("sub-key", srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Detect(context.Background(), "text"); err == nil {
		t.Fatal("want document error, got nil")
	}
}

func TestDetect_RejectsEmptyText(t *testing.T) {
	t.Parallel()

	p, err := azure.New("sub-key", "https://example.cognitiveservices.azure.com")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Detect(context.Background(), "   "); err == nil {
		t.Error("blank text: want error, got nil")
	}
}

func TestNew_RequiresKeyAndEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := azure.New("", "https://example.com"); err == nil {
		t.Error("empty key: want error, got nil")
	}
	if _, err := azure.New("sub-key", ""); err == nil {
		t.Error("empty endpoint: want error, got nil")
	}
}
