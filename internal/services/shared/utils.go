package shared

import (
	"fmt"

	"github.com/ideomind/unreal-dashboard/internal/domain/entity"
)

// LockKey generates the in-flight lock key for a transaction reference.
// Format: {prefix}:verify:{normalized reference}
func LockKey(prefix, reference string) string {
	return fmt.Sprintf("%s:verify:%s", prefix, entity.NormalizeReference(reference))
}
