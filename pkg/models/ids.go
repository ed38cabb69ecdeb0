package models

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultTempIDPrefix marks client-generated ids that the server has not confirmed yet.
const DefaultTempIDPrefix = "tmp-"

// TempIDs generates and recognizes temporary block ids.
type TempIDs struct {
	Prefix string
}

// New returns a fresh temporary id.
func (t TempIDs) New() string {
	return t.prefix() + uuid.NewString()
}

// Is reports whether id was produced by New.
func (t TempIDs) Is(id string) bool {
	return strings.HasPrefix(id, t.prefix())
}

func (t TempIDs) prefix() string {
	if t.Prefix == "" {
		return DefaultTempIDPrefix
	}
	return t.Prefix
}
