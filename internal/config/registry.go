package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vhfnav/readback/pkg/output"
	"github.com/vhfnav/readback/pkg/recognize"
	"github.com/vhfnav/readback/pkg/speak"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	recognizers  map[string]func(ProviderEntry) (recognize.Provider, error)
	synthesizers map[string]func(ProviderEntry) (speak.Synthesizer, error)
	outputs      map[string]func(ProviderEntry) (output.Sink, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognizers:  make(map[string]func(ProviderEntry) (recognize.Provider, error)),
		synthesizers: make(map[string]func(ProviderEntry) (speak.Synthesizer, error)),
		outputs:      make(map[string]func(ProviderEntry) (output.Sink, error)),
	}
}

// RegisterRecognizer registers a recognizer factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterRecognizer(name string, factory func(ProviderEntry) (recognize.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = factory
}

// RegisterSynthesizer registers a synthesizer factory under name.
func (r *Registry) RegisterSynthesizer(name string, factory func(ProviderEntry) (speak.Synthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synthesizers[name] = factory
}

// RegisterOutput registers an output sink factory under name.
func (r *Registry) RegisterOutput(name string, factory func(ProviderEntry) (output.Sink, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[name] = factory
}

// CreateRecognizer instantiates a recognizer using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has
// been registered for that name.
func (r *Registry) CreateRecognizer(entry ProviderEntry) (recognize.Provider, error) {
	r.mu.RLock()
	factory, ok := r.recognizers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSynthesizer instantiates a synthesizer using the factory registered
// under entry.Name.
func (r *Registry) CreateSynthesizer(entry ProviderEntry) (speak.Synthesizer, error) {
	r.mu.RLock()
	factory, ok := r.synthesizers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: synthesizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateOutput instantiates an output sink using the factory registered
// under entry.Name.
func (r *Registry) CreateOutput(entry ProviderEntry) (output.Sink, error) {
	r.mu.RLock()
	factory, ok := r.outputs[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: output/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
