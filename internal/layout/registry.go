package layout

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps site keys to layouts.
type Registry struct {
	mu      sync.RWMutex
	layouts map[string]*SiteLayout
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{layouts: make(map[string]*SiteLayout)}
}

// DefaultRegistry returns a registry with the built-in layouts.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, l := range builtin() {
		l.Name = name
		r.layouts[name] = l
	}
	return r
}

func builtin() map[string]*SiteLayout {
	return map[string]*SiteLayout{
		"Myntra": {
			Fields: []Field{
				{Column: "Html 1", Selector: "h3.product-brand"},
				{Column: "Html2", Selector: "h4.product-product"},
			},
			Container:      "div.product-productMetaInfo",
			TotalPagesInfo: "li.pagination-paginationMeta",
			NextPage:       "li.pagination-next",
			PageMarker:     DefaultPageMarker,
		},
	}
}

// Register validates and adds l under name, replacing any existing entry.
func (r *Registry) Register(name string, l *SiteLayout) error {
	l = l.clone()
	l.Name = name
	if err := l.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts[name] = l
	return nil
}

// Get returns a copy of the layout for key.
func (r *Registry) Get(key string) (*SiteLayout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layouts[key]
	if !ok {
		return nil, fmt.Errorf("unknown site key %q (known: %v)", key, r.namesLocked())
	}
	return l.clone(), nil
}

// Names returns the registered site keys, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.layouts))
	for name := range r.layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
