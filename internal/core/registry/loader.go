package registry

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDir parses every *.yaml / *.yml file in dir into the builder. Files are
// read in name order and fingerprinted for change detection. A missing
// directory means no custom types.
func (b *Builder) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("types dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("types path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading types dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := b.LoadFile(path); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile parses a single type file into the builder.
func (b *Builder) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading type file %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing type file %s: %w", path, err)
	}
	fingerprint := fmt.Sprintf("%x", sha256.Sum256(data))
	if err := b.AddFile(f, fingerprint); err != nil {
		return fmt.Errorf("type file %s: %w", path, err)
	}
	return nil
}

// Load builds a registry from the built-in types plus every file in dir.
func Load(instance, dir string) (*Registry, error) {
	b := NewBuilder(instance).WithDefaults()
	if err := b.LoadDir(dir); err != nil {
		return nil, err
	}
	return b.Build()
}
