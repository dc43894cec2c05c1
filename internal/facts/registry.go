package facts

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/sysfacts/internal/logging"
)

// ErrUnknownFact is returned when a requested fact has no registered
// resolver.
var ErrUnknownFact = errors.New("unknown fact")

// Resolver produces a single fact value. Resolution is the expensive part
// of the system (probing hardware and OS state); the cache exists so it
// runs as rarely as the resolver's TTL allows.
type Resolver interface {
	// Name is the fact's unique name.
	Name() string

	// TTL is how long (in seconds) a resolved value may be served from
	// cache: -1 forever, 0 never cached.
	TTL() int64

	// Resolve probes the system for the current value.
	Resolve(ctx context.Context) (Value, error)
}

// Registry holds resolvers by fact name.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

// Register adds a resolver; registering the same name twice is an error.
func (r *Registry) Register(res Resolver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.resolvers[res.Name()]; dup {
		return fmt.Errorf("fact %q already registered", res.Name())
	}
	r.resolvers[res.Name()] = res
	return nil
}

// Lookup returns the resolver for name.
func (r *Registry) Lookup(name string) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[name]
	return res, ok
}

// Names returns all registered fact names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Store is the cache surface the collector needs. *cache.Cache satisfies
// it; tests substitute their own.
type Store interface {
	GetWithTTL(key string, ttl int64) (Value, bool, error)
	Set(key string, value any, ttl int64) error
}

// Collector resolves facts through the cache: a fresh cached value short-
// circuits resolution, and freshly resolved values are stored for the next
// run. A nil store disables caching.
type Collector struct {
	registry *Registry
	store    Store

	// ttlOverride, when non-nil, replaces every resolver's TTL (the
	// --cache-ttl flag).
	ttlOverride *int64
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithTTLOverride makes the collector use ttl for every fact instead of
// each resolver's own TTL.
func WithTTLOverride(ttl int64) CollectorOption {
	return func(c *Collector) { c.ttlOverride = &ttl }
}

// NewCollector creates a collector over the given registry and cache.
func NewCollector(registry *Registry, store Store, opts ...CollectorOption) *Collector {
	c := &Collector{registry: registry, store: store}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect resolves the named facts (all registered facts when names is
// empty) concurrently and returns them by name. Resolution failures and
// unknown names fail the whole call; cache failures never do.
func (c *Collector) Collect(ctx context.Context, names ...string) (map[string]Value, error) {
	if len(names) == 0 {
		names = c.registry.Names()
	}

	var mu sync.Mutex
	values := make(map[string]Value, len(names))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, name := range names {
		g.Go(func() error {
			value, err := c.collectOne(gCtx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			values[name] = value
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *Collector) collectOne(ctx context.Context, name string) (Value, error) {
	log := logging.FromContext(ctx)

	res, ok := c.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFact, name)
	}

	ttl := res.TTL()
	if c.ttlOverride != nil {
		ttl = *c.ttlOverride
	}

	if c.store != nil && ttl != 0 {
		value, hit, err := c.store.GetWithTTL(name, ttl)
		if err == nil && hit {
			log.Debug().Str("component", "facts").Str("fact", name).Msg("served from cache")
			return value, nil
		}
	}

	value, err := res.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fact %s: %w", name, err)
	}

	if c.store != nil && ttl != 0 {
		if err := c.store.Set(name, value, ttl); err != nil {
			log.Warn().Str("component", "facts").Str("fact", name).Err(err).Msg("cannot cache fact")
		}
	}
	return value, nil
}
