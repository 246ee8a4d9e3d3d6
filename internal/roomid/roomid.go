package roomid

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultSize     = 8
	DefaultAlphabet = "0123456789abcdef"
)

// Generator produces short room identifiers.
type Generator struct {
	size     int
	alphabet string
}

// NewGenerator creates a Generator.
// size must be between 1 and 64. alphabet must have at least 2 characters.
func NewGenerator(size int, alphabet string) (*Generator, error) {
	if size < 1 || size > 64 {
		return nil, fmt.Errorf("room id size must be between 1 and 64, got %d", size)
	}
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("room id alphabet must have at least 2 characters, got %d", len(alphabet))
	}
	return &Generator{size: size, alphabet: alphabet}, nil
}

// NewHexGenerator returns the default generator: 8 lowercase hex characters.
func NewHexGenerator() *Generator {
	return &Generator{size: DefaultSize, alphabet: DefaultAlphabet}
}

func (g *Generator) Generate() (string, error) {
	id, err := gonanoid.Generate(g.alphabet, g.size)
	if err != nil {
		return "", fmt.Errorf("failed to generate room id: %w", err)
	}
	return id, nil
}
