// Package mailparse holds the pure header heuristics used to correlate mailbox
// messages with cases and to build threaded replies.
package mailparse

import (
	"regexp"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"
)

// FallbackReplySubject is used when a thread carries no subject at all.
const FallbackReplySubject = "Re: case update"

var (
	caseTokenPattern = regexp.MustCompile(`(?i)CASE-([a-f0-9]{24})`)
	angleAddress     = regexp.MustCompile(`<([^>]+)>`)
	replyPrefix      = regexp.MustCompile(`(?i)^(re\s*:\s*)+`)
)

// Header is one raw name/value pair as returned by the mailbox API.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered header list with case-insensitive lookup.
type Headers []Header

// Get returns the first value for name, or "".
func (h Headers) Get(name string) string {
	for _, header := range h {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// CaseToken renders the subject token that identifies a case.
func CaseToken(caseID string) string {
	return "CASE-" + caseID
}

// FindCaseToken extracts a lowercased case id from a subject line.
func FindCaseToken(subject string) (string, bool) {
	m := caseTokenPattern.FindStringSubmatch(subject)
	if len(m) < 2 {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// EnsureCaseToken appends the case token to subject unless it already carries one.
func EnsureCaseToken(subject, caseID string) string {
	if id, ok := FindCaseToken(subject); ok && id == strings.ToLower(caseID) {
		return subject
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return CaseToken(caseID)
	}
	return subject + " [" + CaseToken(caseID) + "]"
}

// ExtractAddress returns the bare, lowercased address from a From/To value.
// It accepts "Name <addr>", "<addr>" and plain "addr"; for lists the first address wins.
func ExtractAddress(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	h := gomail.Header{}
	h.Set("From", value)
	if list, err := h.AddressList("From"); err == nil && len(list) > 0 {
		return strings.ToLower(strings.TrimSpace(list[0].Address))
	}
	if m := angleAddress.FindStringSubmatch(value); len(m) == 2 {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	// Group syntax and display-only values carry no mailbox.
	if !strings.Contains(value, "@") {
		return ""
	}
	return strings.ToLower(value)
}

// SameAddress compares two header values by their bare addresses.
func SameAddress(a, b string) bool {
	x, y := ExtractAddress(a), ExtractAddress(b)
	return x != "" && x == y
}

// NormalizeReplySubject strips any run of leading "Re:" prefixes and adds exactly one.
func NormalizeReplySubject(subject string) string {
	base := strings.TrimSpace(replyPrefix.ReplaceAllString(strings.TrimSpace(subject), ""))
	if base == "" {
		return FallbackReplySubject
	}
	return "Re: " + base
}

// NormalizeMessageID trims whitespace and surrounding angle brackets.
func NormalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "<")
	value = strings.TrimSuffix(value, ">")
	return strings.TrimSpace(value)
}

// ParseReferences splits a References header into bare message ids.
func ParseReferences(value string) []string {
	var out []string
	for _, field := range strings.Fields(value) {
		if id := NormalizeMessageID(field); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// MergeReferences appends ids to refs, dropping blanks and duplicates while keeping first-seen order.
func MergeReferences(refs []string, ids ...string) []string {
	seen := make(map[string]struct{}, len(refs)+len(ids))
	out := make([]string, 0, len(refs)+len(ids))
	for _, list := range [][]string{refs, ids} {
		for _, id := range list {
			id = NormalizeMessageID(id)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// FormatReferences renders ids as a References header value.
func FormatReferences(ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = NormalizeMessageID(id); id != "" {
			parts = append(parts, "<"+id+">")
		}
	}
	return strings.Join(parts, " ")
}

// ParseDate parses an RFC 5322 Date header, returning fallback when it cannot.
func ParseDate(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	h := gomail.Header{}
	h.Set("Date", value)
	if t, err := h.Date(); err == nil && !t.IsZero() {
		return t.UTC()
	}
	return fallback
}
