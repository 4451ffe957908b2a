// Package audithook is a hook module enforcing a per-operation value
// ceiling and keeping an audit trail of every privileged operation it
// bracketed.
package audithook

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"arbor/core/types"
)

// Config holds the hook's policy settings, decoded from the module section
// of the application config.
type Config struct {
	// MaxValue is the per-operation value ceiling in wei, as a decimal
	// string. Empty means no ceiling.
	MaxValue string `mapstructure:"max_value"`
	// TrailDepth bounds the audit trail; older records are dropped.
	TrailDepth int `mapstructure:"trail_depth"`
}

// Record is one audited operation.
type Record struct {
	ID        string
	Caller    common.Address
	Value     *big.Int
	DataLen   int
	StartedAt time.Time
	Completed bool
	Clean     bool
}

// Hook is the module instance.
type Hook struct {
	addr common.Address

	mu       sync.Mutex
	ceiling  *big.Int
	depth    int
	trail    []Record
	pending  map[string]int
}

// New returns an audit hook living at addr with no ceiling.
func New(addr common.Address) *Hook {
	return &Hook{addr: addr, depth: 128, pending: make(map[string]int)}
}

// NewFromConfig builds a hook from a raw config section.
func NewFromConfig(addr common.Address, raw map[string]any) (*Hook, error) {
	var cfg Config
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return nil, fmt.Errorf("audithook: decode config: %w", err)
	}
	h := New(addr)
	if cfg.MaxValue != "" {
		ceiling, ok := new(big.Int).SetString(cfg.MaxValue, 10)
		if !ok {
			return nil, fmt.Errorf("audithook: bad max_value %q", cfg.MaxValue)
		}
		h.ceiling = ceiling
	}
	if cfg.TrailDepth > 0 {
		h.depth = cfg.TrailDepth
	}
	return h, nil
}

// Address returns the module's identity.
func (h *Hook) Address() common.Address { return h.addr }

// Version returns the module's semantic version.
func (h *Hook) Version() string { return "0.3.1" }

// IsModuleType reports support for the hook category only.
func (h *Hook) IsModuleType(mt types.ModuleType) bool {
	return mt == types.ModuleTypeHook
}

// OnInstall resets the trail.
func (h *Hook) OnInstall(context.Context, []byte) error {
	h.mu.Lock()
	h.trail = nil
	h.pending = make(map[string]int)
	h.mu.Unlock()
	return nil
}

// OnUninstall keeps the trail for post-mortem inspection.
func (h *Hook) OnUninstall(context.Context, []byte) error { return nil }

// SetCeiling replaces the value ceiling. Nil removes it.
func (h *Hook) SetCeiling(ceiling *big.Int) {
	h.mu.Lock()
	h.ceiling = ceiling
	h.mu.Unlock()
}

// PreCheck rejects operations over the value ceiling and opens an audit
// record, returning its id as the continuation token.
func (h *Hook) PreCheck(_ context.Context, caller common.Address, value *big.Int, data []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ceiling != nil && value != nil && value.Cmp(h.ceiling) > 0 {
		return nil, fmt.Errorf("audithook: value %s exceeds ceiling %s", value, h.ceiling)
	}
	id := uuid.NewString()
	h.trail = append(h.trail, Record{
		ID:        id,
		Caller:    caller,
		Value:     cloneBig(value),
		DataLen:   len(data),
		StartedAt: time.Now(),
	})
	if len(h.trail) > h.depth {
		drop := len(h.trail) - h.depth
		h.trail = h.trail[drop:]
		h.reindex()
	}
	h.pending[id] = len(h.trail) - 1
	return []byte(id), nil
}

// PostCheck closes the audit record identified by the token.
func (h *Hook) PostCheck(_ context.Context, token []byte, success bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx, ok := h.pending[string(token)]
	if !ok {
		return fmt.Errorf("audithook: unknown continuation token")
	}
	delete(h.pending, string(token))
	h.trail[idx].Completed = true
	h.trail[idx].Clean = success
	return nil
}

// Trail returns a copy of the audit trail, oldest first.
func (h *Hook) Trail() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.trail))
	copy(out, h.trail)
	return out
}

// reindex rebuilds pending indexes after the trail was trimmed. Assumes
// h.mu is held.
func (h *Hook) reindex() {
	for id := range h.pending {
		delete(h.pending, id)
	}
	for i, r := range h.trail {
		if !r.Completed {
			h.pending[r.ID] = i
		}
	}
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
