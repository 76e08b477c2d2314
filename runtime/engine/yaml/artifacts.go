package yaml

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/BDNK1/flowtest/runtime/security"
	"github.com/BDNK1/flowtest/runtime/template"
	"github.com/spf13/afero"
)

// ArtifactWriter persists response bodies for steps with save_response_body.
type ArtifactWriter struct {
	fs         afero.Fs
	root       string
	defaultDir string
	resolver   *template.Resolver
}

func NewArtifactWriter(fs afero.Fs, root, defaultDir string, resolver *template.Resolver) *ArtifactWriter {
	return &ArtifactWriter{fs: fs, root: root, defaultDir: defaultDir, resolver: resolver}
}

// Save writes body to <output_dir>/<filename>. The filename is a template
// resolved against the flow state plus the step's request and response.
// It returns the written path and any unresolved placeholders.
func (w *ArtifactWriter) Save(ctx map[string]any, cfg *runtime.SaveResponseBody, body any) (string, []string, error) {
	filename, misses := w.resolver.ResolveString(cfg.Filename, ctx)

	dir := cfg.OutputDir
	if dir == "" {
		dir = w.defaultDir
	}

	path, err := security.ResolveWithin(w.root, w.root, filepath.Join(dir, filename))
	if err != nil {
		return "", misses, err
	}

	var data []byte
	switch b := body.(type) {
	case string:
		data = []byte(b)
	case []byte:
		data = b
	default:
		data, err = json.MarshalIndent(b, "", "  ")
		if err != nil {
			return "", misses, fmt.Errorf("error encoding response body: %w", err)
		}
	}

	if err := w.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", misses, fmt.Errorf("error creating %s: %w", filepath.Dir(path), err)
	}
	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return "", misses, fmt.Errorf("error writing %s: %w", path, err)
	}
	return path, misses, nil
}
