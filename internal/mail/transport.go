// Package mail sends case correspondence through the shared mailbox and reads
// threads and recent messages back from it.
package mail

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spec-kit/case-service/internal/mailparse"
)

// LabelSent marks messages the mailbox itself sent.
const LabelSent = "SENT"

// ErrNotConfigured is returned by DisabledTransport.
var ErrNotConfigured = errors.New("mail transport not configured")

// Attachment is a file added to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// OutgoingMessage is one message to send. ThreadID, InReplyTo and References are optional.
type OutgoingMessage struct {
	To          string
	Subject     string
	Body        string
	ThreadID    string
	InReplyTo   string
	References  []string
	Attachments []Attachment
}

// SendResult identifies the message the transport created.
type SendResult struct {
	MessageID string
	ThreadID  string
}

// RawMessage is a mailbox message reduced to metadata.
type RawMessage struct {
	ID           string            `json:"id"`
	ThreadID     string            `json:"threadId"`
	InternalDate time.Time         `json:"internalDate"`
	LabelIDs     []string          `json:"labelIds,omitempty"`
	Snippet      string            `json:"snippet,omitempty"`
	Headers      mailparse.Headers `json:"headers"`
	// FetchErr is set when Search listed the message but could not load it.
	FetchErr error `json:"-"`
}

// Header returns the first header value named name.
func (m RawMessage) Header(name string) string {
	return m.Headers.Get(name)
}

// HasLabel reports whether the message carries label.
func (m RawMessage) HasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// SentBy reports whether the message originated from mailbox, either by label or by From address.
func (m RawMessage) SentBy(mailbox string) bool {
	if m.HasLabel(LabelSent) {
		return true
	}
	return mailbox != "" && mailparse.ExtractAddress(m.Header("From")) == strings.ToLower(mailbox)
}

// Transport is the mailbox collaborator.
type Transport interface {
	Send(ctx context.Context, msg OutgoingMessage) (SendResult, error)
	FetchThread(ctx context.Context, threadID string) ([]RawMessage, error)
	Search(ctx context.Context, query string, limit int) ([]RawMessage, error)
}

// DisabledTransport rejects every call. It is used when no mailbox credentials are configured.
type DisabledTransport struct{}

func (DisabledTransport) Send(context.Context, OutgoingMessage) (SendResult, error) {
	return SendResult{}, ErrNotConfigured
}

func (DisabledTransport) FetchThread(context.Context, string) ([]RawMessage, error) {
	return nil, ErrNotConfigured
}

func (DisabledTransport) Search(context.Context, string, int) ([]RawMessage, error) {
	return nil, ErrNotConfigured
}
