package provider

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/mangashelf/mangashelf/internal/errors"
	"github.com/mangashelf/mangashelf/internal/validation"
)

// Factory builds a provider.
type Factory func(Deps) Provider

type registration struct {
	info    Info
	factory Factory
}

var (
	globalMu  sync.RWMutex
	global    = map[string]registration{}
	validator = validation.New()
)

// Register makes a provider available to every Registry created afterwards.
// It is called from provider package init functions and panics on invalid
// metadata or a duplicate id.
func Register(info Info, factory Factory) {
	info = info.normalized()
	if err := validator.Validate(info); err != nil {
		panic(fmt.Sprintf("provider: invalid metadata for %q: %v", info.ID, err))
	}
	if factory == nil {
		panic("provider: nil factory for " + info.ID)
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if _, dup := global[info.ID]; dup {
		panic("provider: Register called twice for " + info.ID)
	}
	global[info.ID] = registration{info: info, factory: factory}
}

// Preferences is the subset of settings that decides which providers are
// offered.
type Preferences interface {
	NSFWContent() bool
	// Languages is the set of enabled languages; empty allows all.
	Languages() []string
	ProviderEnabled(mainID string) bool
	ProviderLangEnabled(mainID, lang string) bool
}

// Registry instantiates providers on first use and caches them.
type Registry struct {
	deps Deps

	mu        sync.Mutex
	regs      map[string]registration
	instances map[string]Provider
}

// NewRegistry snapshots the registered providers.
func NewRegistry(deps Deps) *Registry {
	globalMu.RLock()
	regs := maps.Clone(global)
	globalMu.RUnlock()

	return &Registry{
		deps:      deps,
		regs:      regs,
		instances: make(map[string]Provider),
	}
}

// Add registers a provider on this registry only.
func (r *Registry) Add(info Info, factory Factory) error {
	info = info.normalized()
	if err := validator.Validate(info); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.regs[info.ID]; dup {
		return errors.Conflictf("provider %q already registered", info.ID)
	}
	r.regs[info.ID] = registration{info: info, factory: factory}
	return nil
}

// List returns the metadata of every provider sorted by language then name.
func (r *Registry) List() []Info {
	r.mu.Lock()
	infos := make([]Info, 0, len(r.regs))
	for _, reg := range r.regs {
		infos = append(infos, reg.info)
	}
	r.mu.Unlock()

	slices.SortFunc(infos, func(a, b Info) int {
		return cmp.Or(
			cmp.Compare(a.Lang, b.Lang),
			cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return infos
}

// Info returns the metadata of one provider without instantiating it.
func (r *Registry) Info(id string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	return reg.info, ok
}

// Get returns the provider with the given id.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[id]; ok {
		return p, nil
	}
	reg, ok := r.regs[id]
	if !ok {
		return nil, errors.NotFoundf("provider %q is not installed", id)
	}
	p := reg.factory(r.deps)
	r.instances[id] = p
	return p, nil
}

// Allowed returns the providers offered for search under prefs, in List order.
func (r *Registry) Allowed(prefs Preferences) []Info {
	langs := prefs.Languages()
	var out []Info
	for _, info := range r.List() {
		if info.Status == StatusDisabled {
			continue
		}
		if !prefs.ProviderEnabled(info.MainID) {
			continue
		}
		if info.Lang != "" {
			if len(langs) > 0 && !slices.Contains(langs, info.Lang) {
				continue
			}
			if !prefs.ProviderLangEnabled(info.MainID, info.Lang) {
				continue
			}
		}
		if info.IsNSFW && !prefs.NSFWContent() {
			continue
		}
		out = append(out, info)
	}
	return out
}
