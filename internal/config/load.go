package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Validate checks v against the embedded schema.
func Validate(v Values) error {
	ctx := cuecontext.New()
	doc := ctx.Encode(v.Nested())
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return validateValue(ctx, doc)
}

func validateValue(ctx *cue.Context, doc cue.Value) error {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if !def.Exists() {
		return fmt.Errorf("schema has no #Config definition")
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseYAML parses and validates a YAML (or JSON) config document.
func ParseYAML(data []byte) (Values, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	v := NewValues(doc)
	if err := Validate(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ParseCUE compiles and validates a CUE config document. filename is used
// in error positions only.
func ParseCUE(data []byte, filename string) (Values, error) {
	ctx := cuecontext.New()
	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", filename, err)
	}
	if err := validateValue(ctx, doc); err != nil {
		return nil, err
	}

	var m map[string]any
	if err := doc.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filename, err)
	}
	return NewValues(m), nil
}

// LoadFile reads a config document, choosing the parser by extension:
// .cue for CUE, anything else as YAML (which includes JSON).
func LoadFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return ParseCUE(data, path)
	}
	v, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
