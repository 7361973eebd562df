package codegen

import (
	"context"
	"log/slog"

	"github.com/mcoot/tablebank/internal/dependencies/random"
	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/storage"
)

const (
	// DefaultLength is the length of generated session codes
	DefaultLength = 5
	// Alphabet is the characters used in session codes (avoid confusing chars)
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// MaxAttempts bounds the retries spent looking for an unused code
	MaxAttempts = 64
)

// Generator draws session codes that are unique among live lobbies and sessions
type Generator struct {
	storage storage.Storage
	random  random.Random
	length  int
	logger  *slog.Logger
}

// New creates a new Generator. A non-positive length selects DefaultLength.
func New(storage storage.Storage, random random.Random, length int, logger *slog.Logger) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{
		storage: storage,
		random:  random,
		length:  length,
		logger:  logger.With(slog.String("component", "codegen")),
	}
}

// Length returns the configured code length
func (g *Generator) Length() int {
	return g.length
}

// NewSessionCode returns a code not currently used by any lobby or session
func (g *Generator) NewSessionCode(ctx context.Context) (model.SessionCode, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		code := model.SessionCode(g.random.String(g.length, Alphabet))
		if !Valid(code) {
			continue
		}
		inUse, err := storage.CodeInUse(ctx, g.storage, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	g.logger.Error("session code space exhausted", slog.Int("attempts", MaxAttempts))
	return "", model.ErrCodeExhausted
}

// Valid reports whether the code is non-empty and uses only the code alphabet
func Valid(code model.SessionCode) bool {
	if code == "" {
		return false
	}
	for _, r := range string(code) {
		if !containsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

// CodeGenerator is the interface consumed by the lobby controller and the API
type CodeGenerator interface {
	NewSessionCode(ctx context.Context) (model.SessionCode, error)
}

var _ CodeGenerator = (*Generator)(nil)
