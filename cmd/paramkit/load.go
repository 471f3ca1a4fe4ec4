package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/paramkit/core/codec"
	"github.com/artpar/paramkit/core/formatter"
	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/terminology"
	"github.com/artpar/paramkit/core/value"
)

// loadSchema parses and builds one schema file.
func loadSchema(path string) (*schema.Schema, error) {
	return codec.ParseFile(path)
}

// readValues reads a values-only document from path, or stdin for "-".
func readValues(cmd *cobra.Command, path string) (map[string]value.Value, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	return codec.DecodeValues(data)
}

// loadContext builds a context over s holding the values at path.
func loadContext(cmd *cobra.Command, s *schema.Schema, path string) (*state.Context, error) {
	values, err := readValues(cmd, path)
	if err != nil {
		return nil, err
	}
	c := state.New(s)
	if err := c.Load(values); err != nil {
		return nil, err
	}
	return c, nil
}

// redactor hides values of SENSITIVE and WRITE_ONLY paths.
func redactor(s *schema.Schema) func(string) bool {
	return func(path string) bool {
		se, ok := s.Lookup(path)
		if !ok {
			return false
		}
		return !state.Transmittable(se.Node.Flags)
	}
}

// labeler resolves path labels through the message catalog, falling back
// to the node's own label.
func labeler(s *schema.Schema, cat *terminology.Catalog) func(string) string {
	return func(path string) string {
		se, ok := s.Lookup(path)
		if !ok {
			return ""
		}
		return cat.Label(path, se.Node.Metadata.Label)
	}
}

func formatOptions(s *schema.Schema) formatter.FormatOptions {
	return formatter.FormatOptions{
		Redact: redactor(s),
		Label:  labeler(s, terminology.NewCatalog(nil)),
	}
}
