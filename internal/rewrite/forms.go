package rewrite

import (
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// FormRewriter retargets <form> elements at the configured submission
// handler. Without a handler URL forms are left untouched so the mirror
// degrades to a read-only copy instead of pointing forms at dead paths.
type FormRewriter struct {
	handlerURL string
	logger     *slog.Logger
	warnOnce   sync.Once
}

// NewFormRewriter builds a form rewriter. handlerURL may be empty.
func NewFormRewriter(handlerURL string, logger *slog.Logger) *FormRewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FormRewriter{handlerURL: handlerURL, logger: logger}
}

// Rewrite points every form in doc at the handler URL, forces the POST
// method and prepends a hidden form_type input so the handler can tell
// submissions apart. It returns the number of forms rewritten.
func (fr *FormRewriter) Rewrite(doc *goquery.Document, pageURL string) int {
	forms := doc.Find("form")
	if forms.Length() == 0 {
		return 0
	}

	if fr.handlerURL == "" {
		fr.warnOnce.Do(func() {
			fr.logger.Warn("forms present but no form handler configured, leaving them untouched",
				"page", pageURL,
			)
		})
		return 0
	}

	count := 0
	forms.Each(func(_ int, s *goquery.Selection) {
		s.SetAttr("action", fr.handlerURL)
		s.SetAttr("method", "post")
		if s.Find("input[name='form_type']").Length() == 0 {
			s.PrependHtml(fmt.Sprintf(
				`<input type="hidden" name="form_type" value="%s">`,
				html.EscapeString(formType(s)),
			))
		}
		count++
	})
	return count
}

// formType derives a submission label from the form's id, name or class,
// falling back to "generic".
func formType(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	if name, ok := s.Attr("name"); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if class, ok := s.Attr("class"); ok {
		if fields := strings.Fields(class); len(fields) > 0 {
			return fields[0]
		}
	}
	return "generic"
}
