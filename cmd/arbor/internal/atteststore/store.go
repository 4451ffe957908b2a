// Package atteststore persists the module attestation approval list as a
// YAML file managed by the CLI and loaded into the in-memory gate at
// startup.
package atteststore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"arbor/core/attest"
	"arbor/core/types"
)

// Entry is one approved (module, category) pair.
type Entry struct {
	Address    string `yaml:"address"`
	ModuleType int    `yaml:"module_type"`
	Note       string `yaml:"note,omitempty"`
}

// Store holds the persistent approval list.
type Store struct {
	Approvals []Entry `yaml:"approvals"`
}

// DefaultPath returns the default path to the approval YAML file.
// Priority:
// 1) ARBOR_CONFIG_DIR env var
// 2) os.UserConfigDir()/arbor
func DefaultPath() (string, error) {
	if dir := os.Getenv("ARBOR_CONFIG_DIR"); strings.TrimSpace(dir) != "" {
		return filepath.Join(dir, "attestations.yaml"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "arbor", "attestations.yaml"), nil
}

// Load reads the store from the given path. A missing file yields an empty
// store.
func Load(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Store{}, nil
		}
		return nil, fmt.Errorf("read attestation store: %w", err)
	}
	var s Store
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal attestation store: %w", err)
	}
	s.dedupeAndSort()
	return &s, nil
}

// Save writes the store to the given path, creating parent directories if
// needed.
func Save(s *Store, path string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	s.dedupeAndSort()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal attestation store: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write attestation store: %w", err)
	}
	return nil
}

// Approve adds a pair; returns false if it was already present.
func (s *Store) Approve(addr common.Address, mt types.ModuleType, note string) bool {
	hex := addr.Hex()
	for _, e := range s.Approvals {
		if strings.EqualFold(e.Address, hex) && e.ModuleType == int(mt) {
			return false
		}
	}
	s.Approvals = append(s.Approvals, Entry{Address: hex, ModuleType: int(mt), Note: note})
	s.dedupeAndSort()
	return true
}

// Revoke removes a pair; returns false if it was absent.
func (s *Store) Revoke(addr common.Address, mt types.ModuleType) bool {
	hex := addr.Hex()
	var out []Entry
	removed := false
	for _, e := range s.Approvals {
		if strings.EqualFold(e.Address, hex) && e.ModuleType == int(mt) {
			removed = true
			continue
		}
		out = append(out, e)
	}
	s.Approvals = out
	return removed
}

// Registry builds the in-memory attestation gate from the store, skipping
// malformed entries.
func (s *Store) Registry() *attest.Registry {
	reg := attest.NewRegistry()
	for _, e := range s.Approvals {
		if !common.IsHexAddress(e.Address) {
			continue
		}
		mt := types.ModuleType(e.ModuleType)
		if !types.KnownModuleType(mt) {
			continue
		}
		reg.Approve(common.HexToAddress(e.Address), mt)
	}
	return reg
}

func (s *Store) dedupeAndSort() {
	if s.Approvals == nil {
		s.Approvals = []Entry{}
	}
	m := map[string]Entry{}
	for _, e := range s.Approvals {
		e.Address = strings.TrimSpace(e.Address)
		if e.Address == "" {
			continue
		}
		key := fmt.Sprintf("%s/%d", strings.ToLower(e.Address), e.ModuleType)
		m[key] = e
	}
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := strings.ToLower(out[i].Address), strings.ToLower(out[j].Address)
		if ai != aj {
			return ai < aj
		}
		return out[i].ModuleType < out[j].ModuleType
	})
	s.Approvals = out
}
