package mapstore

import (
	"fmt"
	"strings"
)

// ValidateMapName checks that name can safely be used as a file name component
func ValidateMapName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidMapName)
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidMapName, name)
	}
	if name == "." || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidMapName, name)
	}
	return nil
}
