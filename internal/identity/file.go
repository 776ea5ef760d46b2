package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pulse/internal/event"
)

// ErrNotFound is returned by FileDirectory for unknown user references.
var ErrNotFound = errors.New("entity not found")

// FileDirectory is a Directory backed by a YAML document mapping user
// references to arbitrary entities:
//
//	user:default/alice:
//	  kind: Group
//	  metadata:
//	    name: team-a
//
// Entities are converted to JSON once, at load time.
type FileDirectory struct {
	entities map[string]event.Metadata
}

// LoadFileDirectory reads a directory document from path.
func LoadFileDirectory(path string) (*FileDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}
	d, err := ParseDirectory(data)
	if err != nil {
		return nil, fmt.Errorf("parse directory %s: %w", path, err)
	}
	return d, nil
}

// ParseDirectory parses a YAML directory document.
func ParseDirectory(data []byte) (*FileDirectory, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	d := &FileDirectory{entities: make(map[string]event.Metadata, len(raw))}
	for ref, entity := range raw {
		b, err := json.Marshal(entity)
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", ref, err)
		}
		d.entities[ref] = b
	}
	return d, nil
}

// Lookup implements Directory.
func (d *FileDirectory) Lookup(_ context.Context, userRef string) (event.Metadata, error) {
	md, ok := d.entities[userRef]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userRef)
	}
	return md, nil
}

// Len returns the number of entities in the directory.
func (d *FileDirectory) Len() int {
	return len(d.entities)
}
