package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ytget/ytlinks/types"
)

// SaveFile writes the catalog's streams to path as a JSON array. The file
// is replaced atomically.
func SaveFile(path string, c *Catalog) error {
	b, err := json.MarshalIndent(c.Formats(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("save catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	return nil
}

// LoadFile reads a catalog written by SaveFile. Numeric fields may be
// numbers or decimal strings.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	formats := make([]types.StreamFormat, 0, len(raw))
	for i, m := range raw {
		var f types.StreamFormat
		if err := types.DecodeMap(m, &f); err != nil {
			return nil, fmt.Errorf("load catalog %s: entry %d: %w", path, i, err)
		}
		formats = append(formats, f)
	}
	return New(formats, nil), nil
}
