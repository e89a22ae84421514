package publish

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stasazaryarozet/sitemirror/internal/rewrite"
)

// ValidationReport summarizes a completeness check of a written mirror.
type ValidationReport struct {
	Pages    int
	Refs     int
	Missing  []string
	External int
}

// OK reports whether every local reference resolved to a file.
func (r *ValidationReport) OK() bool {
	return len(r.Missing) == 0
}

// ValidateSite walks a published mirror and checks that every local
// reference in its pages and stylesheets points at a file that exists.
func ValidateSite(dir string, logger *slog.Logger) (*ValidationReport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	report := &ValidationReport{}
	missing := make(map[string]struct{})

	pages, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages found in %s", dir)
	}

	for _, pagePath := range pages {
		report.Pages++
		if err := validatePage(dir, pagePath, report, missing); err != nil {
			return nil, err
		}
	}

	if err := validateStylesheets(dir, report, missing); err != nil {
		return nil, err
	}

	for ref := range missing {
		report.Missing = append(report.Missing, ref)
	}
	sort.Strings(report.Missing)

	logger.Info("mirror validated",
		"dir", dir,
		"pages", report.Pages,
		"refs", report.Refs,
		"missing", len(report.Missing),
	)
	return report, nil
}

var refAttrs = []string{"src", "href", "poster"}

func validatePage(dir, pagePath string, report *ValidationReport, missing map[string]struct{}) error {
	f, err := os.Open(pagePath)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", pagePath, err)
	}

	// Page references are root-relative: pages sit flat at the mirror root.
	check := func(ref string) {
		local, ok := localRef(ref)
		if !ok {
			report.External++
			return
		}
		report.Refs++
		if !fileExists(dir, local) {
			missing[local] = struct{}{}
		}
	}

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range refAttrs {
			if ref, ok := s.Attr(attr); ok {
				check(ref)
			}
		}
		if srcset, ok := s.Attr("srcset"); ok {
			for _, candidate := range strings.Split(srcset, ",") {
				if fields := strings.Fields(strings.TrimSpace(candidate)); len(fields) > 0 {
					check(fields[0])
				}
			}
		}
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		for _, ref := range rewrite.CSSRefTokens(s.Text()) {
			check(ref)
		}
	})

	return nil
}

// validateStylesheets resolves url() tokens in stored CSS files relative to
// each file's own directory.
func validateStylesheets(dir string, report *ValidationReport, missing map[string]struct{}) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".css") {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		fromDir := path.Dir(filepath.ToSlash(rel))

		for _, ref := range rewrite.CSSRefTokens(string(content)) {
			local, ok := localRef(ref)
			if !ok {
				report.External++
				continue
			}
			report.Refs++
			target := path.Join(fromDir, local)
			if !fileExists(dir, target) {
				missing[target] = struct{}{}
			}
		}
		return nil
	})
}

// localRef extracts the relative file path from a rendered reference,
// dropping query and fragment. Absolute URLs and pseudo schemes are not
// local and are counted separately.
func localRef(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	p := u.Path
	if p == "" || strings.HasPrefix(p, "/") {
		return "", false
	}
	return path.Clean(p), true
}

func fileExists(dir, rel string) bool {
	info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
	return err == nil && !info.IsDir()
}
