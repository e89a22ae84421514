package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/stasazaryarozet/sitemirror/internal/pipeline"
)

// SiteWriter lays the mirror out on disk: rendered pages at the output root,
// assets under their manifest paths.
type SiteWriter struct {
	dir    string
	logger *slog.Logger
}

// NewSiteWriter builds a filesystem publisher rooted at dir.
func NewSiteWriter(dir string, logger *slog.Logger) (*SiteWriter, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SiteWriter{dir: dir, logger: logger}, nil
}

// Publish writes every page and every fetched asset. Assets that failed to
// download are skipped; their references in the pages still point at the
// local paths, so a later run can fill the gaps in place.
func (w *SiteWriter) Publish(ctx context.Context, result *pipeline.Result) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, page := range result.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.writeFile(page.FileName, []byte(page.HTML)); err != nil {
			return fmt.Errorf("write page %s: %w", page.FileName, err)
		}
	}

	skipped := 0
	for _, asset := range result.Assets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !asset.Fetched {
			skipped++
			continue
		}
		if err := w.writeFile(asset.LocalPath, asset.Content); err != nil {
			return fmt.Errorf("write asset %s: %w", asset.LocalPath, err)
		}
	}

	w.logger.Info("site written",
		"dir", w.dir,
		"pages", len(result.Pages),
		"assets", len(result.Assets)-skipped,
		"assets_skipped", skipped,
	)
	return nil
}

// writeFile persists one relative path under the output root, refusing
// anything that would land outside it.
func (w *SiteWriter) writeFile(relPath string, content []byte) error {
	full := filepath.Join(w.dir, filepath.FromSlash(relPath))

	root, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes output directory", relPath)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, content, 0o644)
}
