package security

import (
	"path/filepath"
	"testing"
)

func TestValidatePathWithinBoundary_Valid(t *testing.T) {
	boundary := "/srv/api-tests"
	validPaths := []string{
		"/srv/api-tests/flows",
		"/srv/api-tests/flows/login.yaml",
		"/srv/api-tests",
		"/srv/api-tests/flows/payloads/..user.json",
	}

	for _, path := range validPaths {
		if err := ValidatePathWithinBoundary(boundary, path); err != nil {
			t.Errorf("Expected path %q to be valid within boundary %q, but got error: %v", path, boundary, err)
		}
	}
}

func TestValidatePathWithinBoundary_PathTraversal(t *testing.T) {
	boundary := "/srv/api-tests"
	maliciousPaths := []string{
		"/srv/api-tests/../../../etc/passwd",
		"/srv/api-tests/../other-project",
		"/srv",
		"/etc/passwd",
	}

	for _, path := range maliciousPaths {
		if err := ValidatePathWithinBoundary(boundary, path); err == nil {
			t.Errorf("Expected path %q to be rejected, but it was allowed", path)
		}
	}
}

func TestValidatePathWithinBoundary_RelativePaths(t *testing.T) {
	absBoundary, _ := filepath.Abs(".")

	tests := []struct {
		name        string
		targetPath  string
		shouldError bool
	}{
		{"current directory", ".", false},
		{"subdirectory", "./flows", false},
		{"parent directory escape", "../", true},
		{"double parent escape", "../../etc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinBoundary(absBoundary, tt.targetPath)
			if tt.shouldError && err == nil {
				t.Errorf("Expected error for %q but got none", tt.targetPath)
			}
			if !tt.shouldError && err != nil {
				t.Errorf("Expected no error for %q but got: %v", tt.targetPath, err)
			}
		})
	}
}

func TestResolveWithin(t *testing.T) {
	tests := []struct {
		name     string
		boundary string
		base     string
		ref      string
		want     string
		wantErr  bool
	}{
		{"relative to flow dir", "/p", "/p/flows", "payloads/a.json", "/p/flows/payloads/a.json", false},
		{"shared dir via parent", "/p", "/p/flows", "../shared/h.yaml", "/p/shared/h.yaml", false},
		{"escape", "/p", "/p/flows", "../../etc/passwd", "", true},
		{"absolute inside", "/p", "/p/flows", "/p/data/x.json", "/p/data/x.json", false},
		{"no boundary", "", "/p/flows", "../../x", "/x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWithin(tt.boundary, tt.base, tt.ref)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got path %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("ResolveWithin = %q, want %q", got, tt.want)
			}
		})
	}
}
