package registry

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUniqueName returns prefix followed by a random suffix, suitable as
// a unique name for objects created in bulk.
func GenerateUniqueName(prefix string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")
	if prefix == "" {
		return suffix
	}
	return prefix + "_" + suffix
}
