package dto

import (
	"time"

	"github.com/spec-kit/case-service/internal/mail"
)

// SendEmailRequest composes an admin message. NewThread forces first contact.
type SendEmailRequest struct {
	To            string `json:"to"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
	AttachProduct bool   `json:"attachProduct"`
	AttachReceipt bool   `json:"attachReceipt"`
	NewThread     bool   `json:"newThread"`
}

// ThreadMessageResponse is one message of a mailbox thread.
type ThreadMessageResponse struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"threadId"`
	InternalDate time.Time `json:"internalDate"`
	LabelIDs     []string  `json:"labelIds"`
	Snippet      string    `json:"snippet,omitempty"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Subject      string    `json:"subject"`
	Date         string    `json:"date,omitempty"`
	MessageID    string    `json:"messageId,omitempty"`
	Outgoing     bool      `json:"outgoing"`
}

// NewThreadMessages maps raw mailbox messages.
func NewThreadMessages(msgs []mail.RawMessage, mailbox string) []ThreadMessageResponse {
	out := make([]ThreadMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		labels := m.LabelIDs
		if labels == nil {
			labels = []string{}
		}
		out = append(out, ThreadMessageResponse{
			ID:           m.ID,
			ThreadID:     m.ThreadID,
			InternalDate: m.InternalDate,
			LabelIDs:     labels,
			Snippet:      m.Snippet,
			From:         m.Header("From"),
			To:           m.Header("To"),
			Subject:      m.Header("Subject"),
			Date:         m.Header("Date"),
			MessageID:    m.Header("Message-ID"),
			Outgoing:     m.SentBy(mailbox),
		})
	}
	return out
}
