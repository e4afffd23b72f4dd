// Package uuid implements analysis.IDGenerator with random UUIDs.
package uuid

import (
	"fmt"

	guuid "github.com/google/uuid"
)

// Generator produces UUIDv4 identifiers.
type Generator struct{}

// New constructs a Generator.
func New() *Generator { return &Generator{} }

// NewID returns a fresh UUID string.
func (Generator) NewID() (string, error) {
	id, err := guuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}
