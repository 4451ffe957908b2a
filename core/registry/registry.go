// Package registry stores the set of installed modules, keyed by category
// and address. It is the single shared mutable state of the account kernel;
// every write is funneled through the module lifecycle router, never through
// the execution or authorization engines.
package registry

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"arbor/core/types"
)

var (
	// ErrAlreadyInstalled is returned when an address is added twice under
	// the same category. Categories are independent.
	ErrAlreadyInstalled = errors.New("registry: module already installed for category")
	// ErrNotInstalled is returned when removing an address that is not
	// present under the category.
	ErrNotInstalled = errors.New("registry: module not installed for category")
	// ErrHookInstalled is returned when a second hook is installed while one
	// exists. The hook slot holds at most one module; replacing requires an
	// explicit uninstall first.
	ErrHookInstalled = errors.New("registry: hook slot occupied")
)

// Entry is one installed module: its address and the live instance the
// kernel invokes.
type Entry struct {
	Address  common.Address
	Instance any
}

// Registry is the module store consumed by the account kernel.
type Registry interface {
	// Add installs an instance under a category. The hook category is a
	// single slot; all others are ordered sets unique per address.
	Add(mt types.ModuleType, addr common.Address, instance any) error
	// Remove uninstalls an address from a category and returns the removed
	// instance.
	Remove(mt types.ModuleType, addr common.Address) (any, error)
	// Exists reports whether an address is installed under a category.
	Exists(mt types.ModuleType, addr common.Address) bool
	// Get returns the installed instance for an address, if present.
	Get(mt types.ModuleType, addr common.Address) (any, bool)
	// List returns the category's entries in installation order.
	List(mt types.ModuleType) []Entry
	// Count returns the number of entries installed under a category.
	Count(mt types.ModuleType) int
	// Reset drops all entries and the hook slot, leaving the registry in an
	// empty-but-valid state.
	Reset()
}

// New returns an empty in-memory registry.
func New() Registry {
	return &memRegistry{sets: make(map[types.ModuleType][]Entry)}
}

type memRegistry struct {
	mu   sync.RWMutex
	sets map[types.ModuleType][]Entry
}

func (r *memRegistry) Add(mt types.ModuleType, addr common.Address, instance any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.sets[mt]
	if mt == types.ModuleTypeHook && len(set) > 0 {
		return ErrHookInstalled
	}
	for _, e := range set {
		if e.Address == addr {
			return ErrAlreadyInstalled
		}
	}
	r.sets[mt] = append(set, Entry{Address: addr, Instance: instance})
	return nil
}

func (r *memRegistry) Remove(mt types.ModuleType, addr common.Address) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.sets[mt]
	for i, e := range set {
		if e.Address == addr {
			r.sets[mt] = append(set[:i:i], set[i+1:]...)
			return e.Instance, nil
		}
	}
	return nil, ErrNotInstalled
}

func (r *memRegistry) Exists(mt types.ModuleType, addr common.Address) bool {
	_, ok := r.Get(mt, addr)
	return ok
}

func (r *memRegistry) Get(mt types.ModuleType, addr common.Address) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sets[mt] {
		if e.Address == addr {
			return e.Instance, true
		}
	}
	return nil, false
}

func (r *memRegistry) List(mt types.ModuleType) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.sets[mt]
	out := make([]Entry, len(set))
	copy(out, set)
	return out
}

func (r *memRegistry) Count(mt types.ModuleType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets[mt])
}

func (r *memRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets = make(map[types.ModuleType][]Entry)
}
