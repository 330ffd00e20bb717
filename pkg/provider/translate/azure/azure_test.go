package azure_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxlate/voxlate/pkg/provider/translate"
	"github.com/voxlate/voxlate/pkg/provider/translate/azure"
)

func TestTranslate_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "sub-key" {
			t.Errorf("key header: got %q, want sub-key", got)
		}
		if got := r.Header.Get("Ocp-Apim-Subscription-Region"); got != "westeurope" {
			t.Errorf("region header: got %q, want westeurope", got)
		}
		q := r.URL.Query()
		if q.Get("api-version") != "3.0" || q.Get("from") != "en" || q.Get("to") != "fr" {
			t.Errorf("query: got %v", q)
		}
		var docs []map[string]string
		if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(docs) != 1 || docs[0]["Text"] != "hello world" {
			t.Errorf("unexpected request body: %v", docs)
		}
		io.WriteString(w, `[{"translations":[{"text":"bonjour le monde","to":"fr"}]}]`)
	}))
	t.Cleanup(srv.Close)

	p, err := azure.New("sub-key", "westeurope", azure.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := p.Translate(context.Background(), translate.Request{
		Text: "hello world", From: "en", To: "fr",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "bonjour le monde" {
		t.Errorf("translation: got %q, want %q", out, "bonjour le monde")
	}
}

func TestTranslate_OmitsFromWhenUnknown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, present := r.URL.Query()["from"]; present {
			t.Error("from query parameter should be omitted for auto-detect")
		}
		io.WriteString(w, `[{"translations":[{"text":"hola","to":"es"}]}]`)
	}))
	t.Cleanup(srv.Close)

	p, err := azure.New("sub-key", "westeurope", azure.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := p.Translate(context.Background(), translate.Request{Text: "hello", To: "es"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "hola" {
		t.Errorf("translation: got %q, want hola", out)
	}
}

func TestTranslate_SurfacesServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400036,"message":"The target language is not valid."}}`)
	}))
	t.Cleanup(srv.Close)

	p, err := azure.New("sub-key", "westeurope", azure.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Translate(context.Background(), translate.Request{Text: "hello", To: "xx"})
	if err == nil {
		t.Fatal("want service error, got nil")
	}
}

func TestTranslate_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	p, err := azure.New("sub-key", "westeurope")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Translate(context.Background(), translate.Request{To: "fr"}); err == nil {
		t.Error("empty text: want error, got nil")
	}
	if _, err := p.Translate(context.Background(), translate.Request{Text: "hi"}); err == nil {
		t.Error("empty target: want error, got nil")
	}
}
