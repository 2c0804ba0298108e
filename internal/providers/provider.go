// Package providers adapts third-party generation backends to one interface.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

// Kind names a generation backend. The set is closed.
type Kind string

const (
	KindMock      Kind = "mock"
	KindDalle     Kind = "dalle"
	KindStability Kind = "stability"
	KindReplicate Kind = "replicate"
)

// Kinds lists every supported backend.
func Kinds() []Kind {
	return []Kind{KindMock, KindDalle, KindStability, KindReplicate}
}

// ParseKind validates free-form provider input.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Params carries the optional per-request knobs. Zero values select the
// backend defaults.
type Params struct {
	Size     string
	Quality  string
	Style    string
	Duration int
}

// Request is one generation call.
type Request struct {
	Type   domain.ResourceType
	Prompt string
	Params Params
}

// Result is the normalized outcome of a successful call. ID is the backend's
// job or prediction id when it has one.
type Result struct {
	ID    string
	Asset domain.Asset
}

// Provider generates one asset per call. Failures are *domain.ProviderError.
type Provider interface {
	Kind() Kind
	Supports(rt domain.ResourceType) bool
	Generate(ctx context.Context, req Request) (*Result, error)
}

// KeySource resolves an API key, preferring the configured value.
type KeySource interface {
	Resolve(ctx context.Context, provider, configured string) (string, error)
}

// Config holds the settings of every backend.
type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string

	StabilityAPIKey  string
	StabilityBaseURL string
	StabilityEngine  string

	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicateModelVersion string
	ReplicatePollInterval time.Duration

	// Keys supplies stored API keys when the configured ones are empty.
	Keys       KeySource
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// New constructs the backend for kind.
func New(kind Kind, cfg Config) (Provider, error) {
	cfg = cfg.withDefaults()
	switch kind {
	case KindMock:
		return NewMock(), nil
	case KindDalle:
		return newDalle(cfg), nil
	case KindStability:
		return newStability(cfg), nil
	case KindReplicate:
		return newReplicate(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, kind)
	}
}

func (c Config) withDefaults() Config {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if c.Logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		c.Logger = &l
	}
	if c.ReplicatePollInterval <= 0 {
		c.ReplicatePollInterval = 2 * time.Second
	}
	return c
}

// Registry holds one constructed backend per kind.
type Registry struct {
	providers map[Kind]Provider
}

// NewRegistry constructs every kind in Kinds.
func NewRegistry(cfg Config) (*Registry, error) {
	r := &Registry{providers: make(map[Kind]Provider, len(Kinds()))}
	for _, k := range Kinds() {
		p, err := New(k, cfg)
		if err != nil {
			return nil, err
		}
		r.providers[k] = p
	}
	return r, nil
}

// NewRegistryOf builds a registry from explicit providers.
func NewRegistryOf(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[Kind]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Kind()] = p
	}
	return r
}

// Get returns the backend for kind.
func (r *Registry) Get(kind Kind) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, kind)
	}
	return p, nil
}

func providerErr(kind Kind, format string, args ...any) error {
	return &domain.ProviderError{Provider: string(kind), Message: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, op string, err error) error {
	return &domain.ProviderError{Provider: string(kind), Message: op + ": " + err.Error(), Err: err}
}

func resolveKey(ctx context.Context, kind Kind, keys KeySource, tokenName, configured string) (string, error) {
	key := strings.TrimSpace(configured)
	if key == "" && keys != nil {
		var err error
		key, err = keys.Resolve(ctx, tokenName, configured)
		if err != nil {
			return "", wrapErr(kind, "resolve api key", err)
		}
	}
	if key == "" {
		return "", providerErr(kind, "api key not configured")
	}
	return key, nil
}
