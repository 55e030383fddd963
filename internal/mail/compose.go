package mail

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jordan-wright/email"

	"github.com/spec-kit/case-service/internal/mailparse"
)

// Compose renders msg as an RFC 5322 message sent from the mailbox address.
func Compose(from string, msg OutgoingMessage) ([]byte, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, fmt.Errorf("compose: missing recipient")
	}

	e := email.NewEmail()
	e.From = from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	if id := mailparse.NormalizeMessageID(msg.InReplyTo); id != "" {
		e.Headers.Set("In-Reply-To", "<"+id+">")
	}
	if refs := mailparse.FormatReferences(msg.References); refs != "" {
		e.Headers.Set("References", refs)
	}

	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := e.Attach(bytes.NewReader(a.Data), a.Filename, contentType); err != nil {
			return nil, fmt.Errorf("compose: attach %s: %w", a.Filename, err)
		}
	}

	return e.Bytes()
}
