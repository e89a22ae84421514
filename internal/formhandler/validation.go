package formhandler

import (
	"regexp"
	"strings"
)

// Submission is a parsed form post from a mirrored page.
type Submission struct {
	FormType string
	Fields   map[string]string
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// reserved fields never count as user content.
var reservedFields = map[string]struct{}{
	"form_type": {},
}

// ValidateSubmission checks a submission and returns human-readable
// problems. An empty slice means the submission is acceptable.
func ValidateSubmission(sub Submission) []string {
	var problems []string

	if strings.TrimSpace(sub.FormType) == "" {
		problems = append(problems, "form_type is required")
	}

	content := 0
	for name, value := range sub.Fields {
		if _, ok := reservedFields[name]; ok {
			continue
		}
		if strings.TrimSpace(value) != "" {
			content++
		}
	}
	if content == 0 {
		problems = append(problems, "submission has no content")
	}

	if email, ok := sub.Fields["email"]; ok && strings.TrimSpace(email) != "" {
		if !emailRegex.MatchString(strings.TrimSpace(email)) {
			problems = append(problems, "email address is not valid")
		}
	}

	return problems
}
