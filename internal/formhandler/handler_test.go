package formhandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	subject string
	body    string
	err     error
	calls   int
}

func (n *captureNotifier) Notify(ctx context.Context, subject, htmlBody string) error {
	n.calls++
	n.subject = subject
	n.body = htmlBody
	return n.err
}

func newTestRouter(notifier Notifier, redirectURL string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewSubmissionHandler(notifier, "example.com", redirectURL, logger)
	return NewRouter(handler, logger)
}

func postForm(router *gin.Engine, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/form-handler", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmissionDelivered(t *testing.T) {
	notifier := &captureNotifier{}
	router := newTestRouter(notifier, "")

	rec := postForm(router, url.Values{
		"form_type": {"contact"},
		"name":      {"Ada"},
		"email":     {"ada@example.com"},
		"message":   {"hello from the mirror"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, notifier.calls)
	require.Contains(t, notifier.subject, "contact")
	require.Contains(t, notifier.body, "ada@example.com")
	require.Contains(t, notifier.body, "hello from the mirror")
}

func TestSubmissionEscapesHTML(t *testing.T) {
	notifier := &captureNotifier{}
	router := newTestRouter(notifier, "")

	rec := postForm(router, url.Values{
		"form_type": {"contact"},
		"message":   {`<script>alert(1)</script>`},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, notifier.body, "<script>")
	require.Contains(t, notifier.body, "&lt;script&gt;")
}

func TestSubmissionRejectedWithoutFormType(t *testing.T) {
	notifier := &captureNotifier{}
	router := newTestRouter(notifier, "")

	rec := postForm(router, url.Values{"name": {"Ada"}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, notifier.calls)
}

func TestSubmissionRejectedWithoutContent(t *testing.T) {
	notifier := &captureNotifier{}
	router := newTestRouter(notifier, "")

	rec := postForm(router, url.Values{"form_type": {"contact"}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, notifier.calls)
}

func TestSubmissionRejectedWithBadEmail(t *testing.T) {
	notifier := &captureNotifier{}
	router := newTestRouter(notifier, "")

	rec := postForm(router, url.Values{
		"form_type": {"contact"},
		"email":     {"not-an-email"},
		"message":   {"hi"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, notifier.calls)
}

func TestSubmissionDeliveryFailure(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("smtp down")}
	router := newTestRouter(notifier, "")

	rec := postForm(router, url.Values{
		"form_type": {"contact"},
		"message":   {"hi there"},
	})

	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSubmissionRedirect(t *testing.T) {
	notifier := &captureNotifier{}
	router := newTestRouter(notifier, "/thanks.html")

	rec := postForm(router, url.Values{
		"form_type": {"contact"},
		"message":   {"hi there"},
	})

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/thanks.html", rec.Header().Get("Location"))
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&captureNotifier{}, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateSubmission(t *testing.T) {
	require.Empty(t, ValidateSubmission(Submission{
		FormType: "contact",
		Fields:   map[string]string{"name": "Ada"},
	}))

	problems := ValidateSubmission(Submission{
		Fields: map[string]string{"form_type": "x"},
	})
	require.Len(t, problems, 2)
}
