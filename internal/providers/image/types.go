package image

import (
	"context"
	"strings"
)

// Source describes where the image to edit comes from. Exactly one of Base64
// or URL is expected; Base64 wins when both are set.
type Source struct {
	Base64 string
	URL    string
}

// IsZero reports whether neither field is populated.
func (s Source) IsZero() bool {
	return strings.TrimSpace(s.Base64) == "" && strings.TrimSpace(s.URL) == ""
}

// Refiner is the contract the HTTP layer depends on.
type Refiner interface {
	Refine(ctx context.Context, src Source, prompt string) (string, error)
}
