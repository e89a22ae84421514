package formhandler

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SubmissionHandler accepts form posts from mirrored pages and forwards
// them by email.
type SubmissionHandler struct {
	notifier    Notifier
	siteName    string
	redirectURL string
	logger      *slog.Logger
}

// NewSubmissionHandler builds the handler. redirectURL, when set, turns
// successful submissions into a browser redirect instead of a JSON reply.
func NewSubmissionHandler(notifier Notifier, siteName, redirectURL string, logger *slog.Logger) *SubmissionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionHandler{
		notifier:    notifier,
		siteName:    siteName,
		redirectURL: redirectURL,
		logger:      logger,
	}
}

// Handle processes one submission.
func (h *SubmissionHandler) Handle(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid form data"})
		return
	}

	sub := Submission{
		FormType: c.PostForm("form_type"),
		Fields:   make(map[string]string),
	}
	for name, values := range c.Request.PostForm {
		if len(values) > 0 {
			sub.Fields[name] = values[0]
		}
	}

	if problems := ValidateSubmission(sub); len(problems) > 0 {
		h.logger.Warn("rejected submission",
			"form_type", sub.FormType,
			"problems", strings.Join(problems, "; "),
			"ip", c.ClientIP(),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "submission failed validation",
			"details": problems,
		})
		return
	}

	subject := fmt.Sprintf("%s form submission: %s", h.siteName, sub.FormType)
	body := buildEmailHTML(sub, c.ClientIP())

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.notifier.Notify(ctx, subject, body); err != nil {
		h.logger.Error("submission delivery failed",
			"form_type", sub.FormType,
			"error", err,
		)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "delivery failed"})
		return
	}

	h.logger.Info("submission delivered", "form_type", sub.FormType)

	if h.redirectURL != "" {
		c.Redirect(http.StatusSeeOther, h.redirectURL)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// buildEmailHTML renders the submission as a simple field table, escaping
// every value.
func buildEmailHTML(sub Submission, remoteIP string) string {
	names := make([]string, 0, len(sub.Fields))
	for name := range sub.Fields {
		if _, ok := reservedFields[name]; ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<h2>Form submission: ")
	b.WriteString(html.EscapeString(sub.FormType))
	b.WriteString("</h2>\n<table>\n")
	for _, name := range names {
		b.WriteString("<tr><td><strong>")
		b.WriteString(html.EscapeString(name))
		b.WriteString("</strong></td><td>")
		b.WriteString(html.EscapeString(sub.Fields[name]))
		b.WriteString("</td></tr>\n")
	}
	b.WriteString("</table>\n<p>Sender IP: ")
	b.WriteString(html.EscapeString(remoteIP))
	b.WriteString("</p>\n")
	return b.String()
}
