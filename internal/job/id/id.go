// Package id provides identifier generation for submissions.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Generate creates a new unique submission ID.
// Format: sub-<first 12 hex digits of a random UUID>
// Example: sub-1f0c2a9be3d4
func Generate() string {
	return "sub-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
