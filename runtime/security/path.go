// Package security keeps file references made by flow definitions inside the
// project directory.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePathWithinBoundary ensures that targetPath is within or equal to boundaryPath.
//
//	boundary := "/home/me/api-tests"
//	target := "/home/me/api-tests/flows/payloads/user.json"  // ok
//	target := "/home/me/api-tests/../../etc/passwd"           // rejected
func ValidatePathWithinBoundary(boundaryPath, targetPath string) error {
	absBoundary, err := filepath.Abs(boundaryPath)
	if err != nil {
		return fmt.Errorf("failed to resolve boundary path %q: %w", boundaryPath, err)
	}

	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return fmt.Errorf("failed to resolve target path %q: %w", targetPath, err)
	}

	rel, err := filepath.Rel(absBoundary, absTarget)
	if err != nil {
		return fmt.Errorf("invalid path relationship between %q and %q: %w", absBoundary, absTarget, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return fmt.Errorf("path traversal detected: %q escapes boundary %q", targetPath, boundaryPath)
	}

	return nil
}

// ResolveWithin joins ref onto baseDir (unless ref is absolute) and checks the
// result against boundary. An empty boundary disables the check.
func ResolveWithin(boundary, baseDir, ref string) (string, error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, ref)
	}
	path = filepath.Clean(path)

	if boundary == "" {
		return path, nil
	}
	if err := ValidatePathWithinBoundary(boundary, path); err != nil {
		return "", err
	}
	return path, nil
}
