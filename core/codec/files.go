package codec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/artpar/paramkit/core/schema"
)

// ParseFile reads a schema from a .json, .yaml or .yml file.
func ParseFile(path string, opts ...Option) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var s *schema.Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		s, err = DecodeSchema(data, opts...)
	case ".yaml", ".yml":
		s, err = ParseYAML(data, opts...)
	default:
		return nil, fmt.Errorf("unsupported schema file extension: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// SchemaName derives a registry name from a schema file path.
func SchemaName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsSchemaFile reports whether path has a schema file extension.
func IsSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// ParseDir reads every schema file directly inside dir, keyed by
// SchemaName. Files that fail to parse are reported together; the ones that
// parse are still returned.
func ParseDir(dir string, opts ...Option) (map[string]*schema.Schema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := make(map[string]*schema.Schema)
	var errs *multierror.Error
	for _, e := range entries {
		if e.IsDir() || !IsSchemaFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		name := SchemaName(path)
		if _, dup := out[name]; dup {
			errs = multierror.Append(errs, fmt.Errorf("%s: duplicate schema name %q", path, name))
			continue
		}
		s, err := ParseFile(path, opts...)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		out[name] = s
	}
	return out, errs.ErrorOrNil()
}
