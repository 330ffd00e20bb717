package detect_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxlate/voxlate/pkg/provider/detect"
	"github.com/voxlate/voxlate/pkg/provider/detect/mock"
)

func TestCache_HitSkipsInnerProvider(t *testing.T) {
	t.Parallel()

	inner := &mock.Provider{Detection: detect.Detection{Language: "de", Confidence: 0.95}}
	c := detect.NewCache(inner, time.Minute)

	for i := 0; i < 3; i++ {
		d, err := c.Detect(context.Background(), "guten tag")
		if err != nil {
			t.Fatalf("Detect #%d: %v", i, err)
		}
		if d.Language != "de" {
			t.Fatalf("Detect #%d language: got %q, want de", i, d.Language)
		}
	}
	if got := inner.CallCount(); got != 1 {
		t.Errorf("inner calls: got %d, want 1", got)
	}
}

func TestCache_DistinctTextsAreSeparateEntries(t *testing.T) {
	t.Parallel()

	inner := &mock.Provider{
		DetectFunc: func(text string) (detect.Detection, error) {
			if text == "hello" {
				return detect.Detection{Language: "en", Confidence: 0.9}, nil
			}
			return detect.Detection{Language: "fr", Confidence: 0.9}, nil
		},
	}
	c := detect.NewCache(inner, time.Minute)

	en, err := c.Detect(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Detect(hello): %v", err)
	}
	fr, err := c.Detect(context.Background(), "bonjour")
	if err != nil {
		t.Fatalf("Detect(bonjour): %v", err)
	}
	if en.Language != "en" || fr.Language != "fr" {
		t.Errorf("languages: got %q/%q, want en/fr", en.Language, fr.Language)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	inner := &mock.Provider{Err: errors.New("backend down")}
	c := detect.NewCache(inner, time.Minute)

	if _, err := c.Detect(context.Background(), "hello"); err == nil {
		t.Fatal("first Detect: want error, got nil")
	}

	inner.Err = nil
	inner.Detection = detect.Detection{Language: "en", Confidence: 0.9}
	d, err := c.Detect(context.Background(), "hello")
	if err != nil {
		t.Fatalf("second Detect: %v", err)
	}
	if d.Language != "en" {
		t.Errorf("language: got %q, want en", d.Language)
	}
	if got := inner.CallCount(); got != 2 {
		t.Errorf("inner calls: got %d, want 2", got)
	}
}
