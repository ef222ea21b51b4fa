// Package resolver implements the scheme-based URI-to-Generator lookup
// described in §4.11 and §6: a registry of providers keyed by scheme,
// default-scheme dispatch for bare paths, and a file-backed provider with
// at-most-once concurrent cache initialization.
package resolver

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/generator"
)

// Provider answers a resolved URI with a generator, or nil if it cannot
// (§6: "a resolver returning no generator yields a null result").
type Provider interface {
	// Schemes lists the URI schemes this provider handles.
	Schemes() []string
	// Resolve attempts to produce a generator for uri. A nil return (with
	// a nil error) means "not found"; it is not an error condition at the
	// resolver boundary (§7.1).
	Resolve(ctx context.Context, uri string) (generator.Generator, error)
}

// schemePattern matches a leading URI scheme: one or more of
// [A-Za-z0-9+\-.] followed by ':' (§4.11, §6).
var schemePattern = regexp.MustCompile(`^[A-Za-z0-9+\-.]+:`)

// Registry maps scheme to Provider (case-insensitive; last registration
// wins) and dispatches bare paths to a configured default scheme.
type Registry struct {
	mu            sync.Mutex
	providers     map[string]Provider
	defaultScheme string
}

// New creates an empty Registry. defaultScheme is used for inputs with no
// explicit scheme prefix.
func New(defaultScheme string) *Registry {
	return &Registry{
		providers:     make(map[string]Provider),
		defaultScheme: strings.ToLower(defaultScheme),
	}
}

// Register associates p with every scheme it advertises. A later
// Register call for the same scheme replaces the earlier provider
// (§4.11: "last registration wins").
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, scheme := range p.Schemes() {
		r.providers[strings.ToLower(scheme)] = p
	}
}

// SetDefaultScheme changes the scheme used for bare-path inputs.
func (r *Registry) SetDefaultScheme(scheme string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultScheme = strings.ToLower(scheme)
}

// Normalize turns a bare path or explicit URI into a canonical URI,
// applying §4.11's path-normalization and default-scheme wrapping rules.
func (r *Registry) Normalize(input string) string {
	if schemePattern.MatchString(input) {
		return input
	}
	r.mu.Lock()
	scheme := r.defaultScheme
	r.mu.Unlock()

	path := strings.ReplaceAll(input, `\`, "/")
	path = strings.TrimPrefix(path, "/")
	return scheme + ":///" + path
}

// Resolve normalizes input into a URI, dispatches to the registered
// provider for its scheme, and returns the provider's generator. A
// missing scheme, an unregistered scheme, or a provider that returns nil
// all yield (nil, nil) — resource-not-found is not an error (§7.1).
func (r *Registry) Resolve(ctx context.Context, input string) (generator.Generator, error) {
	uri := r.Normalize(input)
	scheme := schemeOf(uri)
	if scheme == "" {
		return nil, nil
	}

	r.mu.Lock()
	p, ok := r.providers[scheme]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}

	return p.Resolve(ctx, uri)
}

func schemeOf(uri string) string {
	idx := strings.Index(uri, ":")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(uri[:idx])
}

// pathOf strips "<scheme>://" (or "<scheme>:") from uri, returning the
// remainder with any leading slashes removed.
func pathOf(uri string) string {
	idx := strings.Index(uri, ":")
	if idx < 0 {
		return uri
	}
	rest := uri[idx+1:]
	return strings.TrimLeft(rest, "/")
}
