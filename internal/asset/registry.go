package asset

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is a thread-safe registry of bridgeable assets.
type Registry struct {
	byID    map[AssetID]*Asset
	byChain map[string]map[string]*Asset // chain name -> symbol -> asset
	mu      sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[AssetID]*Asset),
		byChain: make(map[string]map[string]*Asset),
	}
}

// DefaultRegistry returns a registry with the mainnet TORUS assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TorusBase)
	r.Register(TorusEVM)
	r.Register(TorusNative)
	return r
}

// Register adds an asset to the registry.
// Panics if an asset with the same ID is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, exists := r.byID[id]; exists {
		panic(fmt.Sprintf("asset: %s already registered", id))
	}

	r.byID[id] = a
	chain := strings.ToLower(a.ChainName())
	if r.byChain[chain] == nil {
		r.byChain[chain] = make(map[string]*Asset)
	}
	r.byChain[chain][strings.ToUpper(a.Symbol())] = a
}

// Get retrieves an asset by its ID.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	return a, ok
}

// Find looks an asset up by chain name and symbol, case-insensitively.
func (r *Registry) Find(chainName, symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bySymbol, ok := r.byChain[strings.ToLower(chainName)]
	if !ok {
		return nil, false
	}
	a, ok := bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

// All returns all registered assets.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Asset, 0, len(r.byID))
	for _, a := range r.byID {
		result = append(result, a)
	}
	return result
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
