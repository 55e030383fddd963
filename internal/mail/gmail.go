package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/spec-kit/case-service/internal/config"
	"github.com/spec-kit/case-service/internal/mailparse"
)

const gmailUser = "me"

var metadataHeaders = []string{"From", "To", "Subject", "Date", "Message-ID", "References", "In-Reply-To"}

// GmailTransport talks to the shared mailbox through the Gmail API.
type GmailTransport struct {
	svc     *gmail.Service
	mailbox string
	logger  *zap.Logger
}

// NewGmailTransport authenticates with a stored refresh token.
func NewGmailTransport(ctx context.Context, cfg config.MailConfig, logger *zap.Logger) (*GmailTransport, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &GmailTransport{svc: svc, mailbox: cfg.MailboxAddress, logger: logger}, nil
}

func (g *GmailTransport) Send(ctx context.Context, msg OutgoingMessage) (SendResult, error) {
	raw, err := Compose(g.mailbox, msg)
	if err != nil {
		return SendResult{}, err
	}

	out := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if msg.ThreadID != "" {
		out.ThreadId = msg.ThreadID
	}

	sent, err := g.svc.Users.Messages.Send(gmailUser, out).Context(ctx).Do()
	if err != nil {
		return SendResult{}, fmt.Errorf("gmail send: %w", err)
	}
	return SendResult{MessageID: sent.Id, ThreadID: sent.ThreadId}, nil
}

func (g *GmailTransport) FetchThread(ctx context.Context, threadID string) ([]RawMessage, error) {
	thread, err := g.svc.Users.Threads.Get(gmailUser, threadID).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gmail thread %s: %w", threadID, err)
	}

	out := make([]RawMessage, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		out = append(out, convertMessage(m))
	}
	return out, nil
}

// Search lists up to limit messages matching query. Messages that fail to load are logged and skipped.
func (g *GmailTransport) Search(ctx context.Context, query string, limit int) ([]RawMessage, error) {
	var ids []string
	pageToken := ""
	for len(ids) < limit {
		call := g.svc.Users.Messages.List(gmailUser).Q(query).MaxResults(int64(limit - len(ids))).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("gmail list: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]RawMessage, 0, len(ids))
	for _, id := range ids {
		m, err := g.svc.Users.Messages.Get(gmailUser, id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		if err != nil {
			g.logger.Warn("gmail message fetch failed", zap.String("message_id", id), zap.Error(err))
			out = append(out, RawMessage{ID: id, FetchErr: err})
			continue
		}
		out = append(out, convertMessage(m))
	}
	return out, nil
}

func convertMessage(m *gmail.Message) RawMessage {
	raw := RawMessage{
		ID:           m.Id,
		ThreadID:     m.ThreadId,
		InternalDate: time.UnixMilli(m.InternalDate).UTC(),
		LabelIDs:     m.LabelIds,
		Snippet:      m.Snippet,
	}
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			raw.Headers = append(raw.Headers, mailparse.Header{Name: h.Name, Value: h.Value})
		}
	}
	return raw
}
