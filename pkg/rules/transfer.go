package rules

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ongoing/pkg/fileutil"
)

// Legacy file names written by the original tool into its data directory.
const (
	LegacyBotsFile    = "bots.json"
	LegacyFiltersFile = "filters.json"
)

type legacyFilters struct {
	Filters []string `json:"filters"`
}

// Export returns the current rule set for writing out.
func Export(ctx context.Context, store *Store) (*Snapshot, error) {
	return store.Snapshot(ctx)
}

// WriteYAML encodes snap as YAML.
func WriteYAML(w io.Writer, snap *Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}

// ReadYAML decodes a rule set written by WriteYAML.
func ReadYAML(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		if err == io.EOF {
			return &Snapshot{Bots: map[string]string{}, Filters: []string{}}, nil
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if snap.Bots == nil {
		snap.Bots = map[string]string{}
	}
	if snap.Filters == nil {
		snap.Filters = []string{}
	}
	return &snap, nil
}

// ReadLegacyDir reads bots.json and filters.json from dir. Either file may
// be missing. The channel is left empty since the old tool kept it in the
// host client's settings.
func ReadLegacyDir(dir string) (*Snapshot, error) {
	snap := &Snapshot{Bots: map[string]string{}, Filters: []string{}}

	if _, err := fileutil.ReadJSON(filepath.Join(dir, LegacyBotsFile), &snap.Bots); err != nil {
		return nil, err
	}
	var filters legacyFilters
	if _, err := fileutil.ReadJSON(filepath.Join(dir, LegacyFiltersFile), &filters); err != nil {
		return nil, err
	}
	if filters.Filters != nil {
		snap.Filters = filters.Filters
	}
	if snap.Bots == nil {
		snap.Bots = map[string]string{}
	}
	return snap, nil
}

// Validate checks every pattern in snap.
func Validate(snap *Snapshot) error {
	for _, name := range snap.BotNames() {
		if err := ValidateBotPattern(snap.Bots[name]); err != nil {
			return fmt.Errorf("bot %s: %w", name, err)
		}
	}
	for i, f := range snap.Filters {
		if err := ValidateFilterPattern(f); err != nil {
			return fmt.Errorf("filter %d: %w", i+1, err)
		}
	}
	return nil
}

// Import validates snap and replaces the stored rule set with it.
func Import(ctx context.Context, store *Store, snap *Snapshot) error {
	if err := Validate(snap); err != nil {
		return err
	}
	return store.Replace(ctx, snap)
}

// WriteBackup exports the rule set as YAML to path atomically.
func WriteBackup(ctx context.Context, store *Store, path string) error {
	snap, err := Export(ctx, store)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteYAML(&buf, snap); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}
