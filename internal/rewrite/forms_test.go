package rewrite

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestFormRewriterTargetsHandler(t *testing.T) {
	fr := NewFormRewriter("https://forms.example.net/api/form-handler", nil)
	doc := docFrom(t, `
		<form id="contact" action="/send" method="get">
			<input name="email">
		</form>
		<form>
			<input name="q">
		</form>
	`)

	require.Equal(t, 2, fr.Rewrite(doc, "https://example.com/"))

	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		action, _ := s.Attr("action")
		require.Equal(t, "https://forms.example.net/api/form-handler", action)
		method, _ := s.Attr("method")
		require.Equal(t, "post", method)
	})

	first := doc.Find("form#contact input[name='form_type']")
	require.Equal(t, 1, first.Length())
	value, _ := first.Attr("value")
	require.Equal(t, "contact", value)

	// Forms without id or name get the generic label.
	second, _ := doc.Find("form").Last().Find("input[name='form_type']").Attr("value")
	require.Equal(t, "generic", second)

	// The hidden input comes before the user fields.
	firstInput := doc.Find("form#contact input").First()
	name, _ := firstInput.Attr("name")
	require.Equal(t, "form_type", name)
}

func TestFormRewriterWithoutHandlerLeavesForms(t *testing.T) {
	fr := NewFormRewriter("", nil)
	doc := docFrom(t, `<form action="/send" method="get"><input name="email"></form>`)

	require.Equal(t, 0, fr.Rewrite(doc, "https://example.com/"))

	action, _ := doc.Find("form").Attr("action")
	require.Equal(t, "/send", action)
	require.Equal(t, 0, doc.Find("input[name='form_type']").Length())
}

func TestFormRewriterKeepsExistingFormType(t *testing.T) {
	fr := NewFormRewriter("https://forms.example.net/h", nil)
	doc := docFrom(t, `<form id="contact">
		<input type="hidden" name="form_type" value="custom">
		<input name="x">
	</form>`)

	fr.Rewrite(doc, "https://example.com/")

	inputs := doc.Find("input[name='form_type']")
	require.Equal(t, 1, inputs.Length())
	value, _ := inputs.Attr("value")
	require.Equal(t, "custom", value)
}

func TestFormRewriterEscapesFormType(t *testing.T) {
	fr := NewFormRewriter("https://forms.example.net/h", nil)
	doc := docFrom(t, `<form id='a"b'><input name="x"></form>`)

	fr.Rewrite(doc, "https://example.com/")

	value, _ := doc.Find("input[name='form_type']").Attr("value")
	require.Equal(t, `a"b`, value)
}
