package memory

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stratsim/engine/internal/parser"
)

// ExportTimeline writes a stored timeline out as a document file in
// outputDir (falling back to the configured directory) and returns the
// written path. Output is gzip-compressed when the backend is configured
// for it.
func (m *Memory) ExportTimeline(name, outputDir string) (string, error) {
	tl, err := m.LoadTimeline(name)
	if err != nil {
		return "", err
	}

	if outputDir == "" {
		outputDir = m.cfg.OutputDir
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	data, err := parser.New(nil).EncodeTimeline(tl)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s.timeline.json", sanitizeFilename(name))
	if m.cfg.CompressOutput {
		filename += ".gz"
	}
	path := filepath.Join(outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if m.cfg.CompressOutput {
		gz := gzip.NewWriter(f)
		if _, err := gz.Write(data); err != nil {
			return "", fmt.Errorf("write export: %w", err)
		}
		if err := gz.Close(); err != nil {
			return "", fmt.Errorf("finish export: %w", err)
		}
	} else {
		if _, err := f.Write(data); err != nil {
			return "", fmt.Errorf("write export: %w", err)
		}
	}
	return path, nil
}

func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "timeline"
	}
	return string(out)
}
