package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/the-byte-bender/Playmaker.Audio/pkg/backend"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/decoder"
	"github.com/the-byte-bender/Playmaker.Audio/pkg/generator"
)

// errNoMatch is returned internally when no search root contains the
// requested path; FileProvider.Resolve turns this into a nil-generator,
// nil-error "not found" result rather than surfacing it (§7.1).
var errNoMatch = errors.New("resolver: no search root contains path")

// DecoderFactory opens a decoder for a resolved filesystem path, picking
// an implementation by file extension (wired from internal/decoders by
// the caller that constructs a FileProvider).
type DecoderFactory func(path string) (decoder.Decoder, error)

// FileProvider is the built-in provider for schemes "file" (cached
// static generators) and "stream" (fresh streaming generators per
// request), resolving the URI path against an ordered list of search
// roots — first match wins (§6, §4.11).
type FileProvider struct {
	be      backend.Backend
	open    DecoderFactory
	roots   []string
	relRoot bool
	submit  generator.Submitter

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]*generator.Static
}

// NewFileProvider constructs a FileProvider searching roots in order.
// treatAbsoluteAsRelative, when true, strips a leading slash from an
// absolute URI path and resolves it relative to the search roots instead
// of the filesystem root (§6). submit is forwarded to every streaming
// generator it creates, so their buffer uploads run on the audio thread
// (typically (*marshaller.Marshaller).Submit via the engine; §4.9).
func NewFileProvider(be backend.Backend, open DecoderFactory, roots []string, treatAbsoluteAsRelative bool, submit generator.Submitter) *FileProvider {
	return &FileProvider{
		be:      be,
		open:    open,
		roots:   roots,
		relRoot: treatAbsoluteAsRelative,
		submit:  submit,
		cache:   make(map[string]*generator.Static),
	}
}

// Schemes implements Provider.
func (p *FileProvider) Schemes() []string { return []string{"file", "stream"} }

// Resolve implements Provider.
func (p *FileProvider) Resolve(ctx context.Context, uri string) (generator.Generator, error) {
	scheme := schemeOf(uri)
	uriPath := strings.TrimPrefix(uri[strings.Index(uri, ":")+1:], "//")

	resolved, err := p.resolvePath(uriPath)
	if err != nil {
		return nil, nil
	}

	switch scheme {
	case "file":
		return p.resolveStatic(resolved)
	case "stream":
		return p.newStreaming(resolved)
	default:
		return nil, nil
	}
}

func (p *FileProvider) resolvePath(relPath string) (string, error) {
	if p.relRoot {
		relPath = filepathTrimLeadingSlash(relPath)
	} else if filepath.IsAbs(relPath) {
		if _, err := os.Stat(relPath); err == nil {
			return relPath, nil
		}
		return "", errNoMatch
	}
	for _, root := range p.roots {
		candidate := filepath.Join(root, relPath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if len(p.roots) == 0 {
		if _, err := os.Stat(relPath); err == nil {
			return relPath, nil
		}
	}
	return "", errNoMatch
}

func filepathTrimLeadingSlash(p string) string {
	for len(p) > 0 && (p[0] == '/' || p[0] == '\\') {
		p = p[1:]
	}
	return p
}

// resolveStatic serves a cached *generator.Static for resolvedPath,
// initializing it at most once even under concurrent requests for the
// same path (§4.11).
func (p *FileProvider) resolveStatic(resolvedPath string) (generator.Generator, error) {
	p.mu.Lock()
	if g, ok := p.cache[resolvedPath]; ok && !g.Disposed() {
		p.mu.Unlock()
		return g, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(resolvedPath, func() (any, error) {
		p.mu.Lock()
		if g, ok := p.cache[resolvedPath]; ok && !g.Disposed() {
			p.mu.Unlock()
			return g, nil
		}
		p.mu.Unlock()

		dec, err := p.open(resolvedPath)
		if err != nil {
			return nil, err
		}
		g := generator.NewStatic(p.be, dec)
		<-g.Done()
		if err := g.InitError(); err != nil {
			return nil, err
		}

		g.OnDispose(func() { p.invalidate(resolvedPath, g) })

		p.mu.Lock()
		p.cache[resolvedPath] = g
		p.mu.Unlock()

		// The cache holds g by pointer only, not by reference count: drop
		// the construction reference so the count reflects exactly the
		// voices attached to it and can reach zero — and fire OnDispose —
		// once the last one detaches (§4.11).
		g.SilentRelease()
		return g, nil
	})
	if err != nil {
		return nil, nil
	}
	return v.(*generator.Static), nil
}

// invalidate removes resolvedPath from the cache via a direct index
// lookup — not the source's O(N) scan-for-matching-result (§9).
func (p *FileProvider) invalidate(resolvedPath string, g *generator.Static) {
	p.mu.Lock()
	if current, ok := p.cache[resolvedPath]; ok && current == g {
		delete(p.cache, resolvedPath)
	}
	p.mu.Unlock()
}

// newStreaming creates a fresh, exclusive streaming generator for
// resolvedPath. Streaming generators are never shared, so no caching
// applies (§3, §4.11).
func (p *FileProvider) newStreaming(resolvedPath string) (generator.Generator, error) {
	dec, err := p.open(resolvedPath)
	if err != nil {
		return nil, nil
	}
	return generator.NewStreaming(p.be, dec, false, p.submit), nil
}
