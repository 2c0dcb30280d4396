// Package storagekey derives blob storage keys from uploaded file names.
package storagekey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Strategy names accepted by New.
const (
	StrategyUnique   = "unique"
	StrategyFilename = "filename"
)

// Generator defines the interface for storage key generation strategies
type Generator interface {
	// GenerateKey creates a storage key for an uploaded file
	GenerateKey(filename string) string

	// Unique reports whether two calls never return the same key
	Unique() bool
}

// New returns the generator for a strategy name. An empty name selects
// the unique strategy.
func New(strategy string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyUnique:
		return NewUniqueGenerator(), nil
	case StrategyFilename:
		return NewFilenameGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported storage key strategy: %s", strategy)
	}
}

// FilenameGenerator uses the uploaded file name as the key. Two uploads with
// the same name share a key, so the later upload overwrites the earlier bytes
// while both metadata records remain.
type FilenameGenerator struct{}

func NewFilenameGenerator() *FilenameGenerator {
	return &FilenameGenerator{}
}

func (g *FilenameGenerator) GenerateKey(filename string) string {
	return filename
}

func (g *FilenameGenerator) Unique() bool { return false }

// UniqueGenerator provides Git-style sharded keys built from a random UUID
// Example: 3f/a9c2...e1_report.pdf
type UniqueGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
	newID       func() uuid.UUID
}

func NewUniqueGenerator() *UniqueGenerator {
	return &UniqueGenerator{
		ShardLength: 2,
		newID:       uuid.New,
	}
}

func (g *UniqueGenerator) GenerateKey(filename string) string {
	id := strings.ReplaceAll(g.newID().String(), "-", "")

	shard := g.ShardLength
	if shard <= 0 || shard > len(id) {
		shard = 2
	}

	name := id[shard:]
	if filename != "" {
		name = fmt.Sprintf("%s_%s", name, sanitizeFilename(filename))
	}
	return fmt.Sprintf("%s/%s", id[:shard], name)
}

func (g *UniqueGenerator) Unique() bool { return true }

func sanitizeFilename(filename string) string {
	// Replace problematic characters for filesystem compatibility
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}
