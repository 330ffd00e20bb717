package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxlate/voxlate/pkg/provider/detect"
	detectazure "github.com/voxlate/voxlate/pkg/provider/detect/azure"
	"github.com/voxlate/voxlate/pkg/provider/recognize"
	recognizeazure "github.com/voxlate/voxlate/pkg/provider/recognize/azure"
	"github.com/voxlate/voxlate/pkg/provider/translate"
	translateazure "github.com/voxlate/voxlate/pkg/provider/translate/azure"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their factory functions for each pipeline
// stage. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	recognize map[string]func(ProviderEntry) (recognize.Provider, error)
	detect    map[string]func(ProviderEntry) (detect.Provider, error)
	translate map[string]func(ProviderEntry) (translate.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognize: make(map[string]func(ProviderEntry) (recognize.Provider, error)),
		detect:    make(map[string]func(ProviderEntry) (detect.Provider, error)),
		translate: make(map[string]func(ProviderEntry) (translate.Provider, error)),
	}
}

// DefaultRegistry returns a [Registry] pre-populated with the built-in
// provider factories.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterRecognize("azure", func(e ProviderEntry) (recognize.Provider, error) {
		return recognizeazure.New(e.APIKey, e.Region)
	})
	r.RegisterDetect("azure", func(e ProviderEntry) (detect.Provider, error) {
		return detectazure.New(e.APIKey, e.Endpoint)
	})
	r.RegisterTranslate("azure", func(e ProviderEntry) (translate.Provider, error) {
		return translateazure.New(e.APIKey, e.Region)
	})
	return r
}

// RegisterRecognize registers a recognition provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterRecognize(name string, factory func(ProviderEntry) (recognize.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognize[name] = factory
}

// RegisterDetect registers a detection provider factory under name.
func (r *Registry) RegisterDetect(name string, factory func(ProviderEntry) (detect.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detect[name] = factory
}

// RegisterTranslate registers a translation provider factory under name.
func (r *Registry) RegisterTranslate(name string, factory func(ProviderEntry) (translate.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translate[name] = factory
}

// CreateRecognize instantiates a recognition provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateRecognize(entry ProviderEntry) (recognize.Provider, error) {
	r.mu.RLock()
	factory, ok := r.recognize[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognize/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateDetect instantiates a detection provider using the factory registered
// under entry.Name. The names "" and "none" disable detection; the caller
// receives (nil, nil) and every caption assumes the fallback language.
func (r *Registry) CreateDetect(entry ProviderEntry) (detect.Provider, error) {
	if entry.Name == "" || entry.Name == "none" {
		return nil, nil
	}
	r.mu.RLock()
	factory, ok := r.detect[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: detect/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTranslate instantiates a translation provider using the factory
// registered under entry.Name.
func (r *Registry) CreateTranslate(entry ProviderEntry) (translate.Provider, error) {
	r.mu.RLock()
	factory, ok := r.translate[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: translate/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
