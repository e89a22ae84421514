// Package optimize shrinks mirrored content on its way to storage. Every
// transformation is opt-in; with optimization disabled the mirror stores
// bytes exactly as fetched.
package optimize

import (
	"log/slog"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

// Minifier minifies stylesheet and script content. A nil *Minifier is valid
// and passes content through untouched.
type Minifier struct {
	m         *minify.M
	minifyCSS bool
	minifyJS  bool
	logger    *slog.Logger
}

// NewMinifier builds a minifier for the enabled content types. It returns
// nil when nothing is enabled, so callers can hold one without branching.
func NewMinifier(minifyCSS, minifyJS bool, logger *slog.Logger) *Minifier {
	if !minifyCSS && !minifyJS {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	return &Minifier{
		m:         m,
		minifyCSS: minifyCSS,
		minifyJS:  minifyJS,
		logger:    logger,
	}
}

// CSS returns the minified stylesheet. Content that fails to minify is
// stored as fetched; a broken stylesheet in the mirror beats a missing one.
func (o *Minifier) CSS(content []byte) []byte {
	if o == nil || !o.minifyCSS {
		return content
	}
	out, err := o.m.Bytes("text/css", content)
	if err != nil {
		o.logger.Warn("css minify failed, keeping original", "error", err)
		return content
	}
	return out
}

// JS returns the minified script, falling back to the original on error.
func (o *Minifier) JS(content []byte) []byte {
	if o == nil || !o.minifyJS {
		return content
	}
	out, err := o.m.Bytes("application/javascript", content)
	if err != nil {
		o.logger.Warn("js minify failed, keeping original", "error", err)
		return content
	}
	return out
}
