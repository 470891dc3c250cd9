package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// Locate finds the executable called name inside dir, trying the bare name
// first and then name with an ".exe" suffix. The returned path is absolute so
// it is never resolved against PATH.
func Locate(dir, name string) (string, error) {
	if dir == "" {
		dir = "."
	}
	candidates := []string{
		filepath.Join(dir, name),
		filepath.Join(dir, name+".exe"),
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", candidate, err)
		}
		return abs, nil
	}
	return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
}
