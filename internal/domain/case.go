package domain

import (
	"strings"
	"time"
)

// CaseStatus enumerates lifecycle states for complaint cases.
type CaseStatus string

const (
	CaseStatusPending  CaseStatus = "PENDING"
	CaseStatusInReview CaseStatus = "IN_REVIEW"
	CaseStatusNeedInfo CaseStatus = "NEED_INFO"
	CaseStatusApproved CaseStatus = "APPROVED"
	CaseStatusRejected CaseStatus = "REJECTED"
)

// CaseStatuses lists every recognized status.
var CaseStatuses = []CaseStatus{
	CaseStatusPending,
	CaseStatusInReview,
	CaseStatusNeedInfo,
	CaseStatusApproved,
	CaseStatusRejected,
}

// Valid reports whether s is one of the known statuses.
func (s CaseStatus) Valid() bool {
	for _, candidate := range CaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Label renders the status as Title Case words, e.g. IN_REVIEW -> "In Review".
func (s CaseStatus) Label() string {
	parts := strings.Split(strings.ToLower(string(s)), "_")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		words = append(words, strings.ToUpper(p[:1])+p[1:])
	}
	return strings.Join(words, " ")
}

// InfoRequestStatus tracks the lifecycle of a single information request.
type InfoRequestStatus string

const (
	InfoRequestPending    InfoRequestStatus = "PENDING"
	InfoRequestAnswered   InfoRequestStatus = "ANSWERED"
	InfoRequestSuperseded InfoRequestStatus = "SUPERSEDED"
)

// AppendLog is an ordered, append-only sequence. Entries are never removed or reordered.
type AppendLog[T any] []T

// Append adds an entry at the end of the log.
func (l *AppendLog[T]) Append(entry T) {
	*l = append(*l, entry)
}

// Len returns the number of entries.
func (l AppendLog[T]) Len() int {
	return len(l)
}

// Last returns the most recent entry.
func (l AppendLog[T]) Last() (T, bool) {
	var zero T
	if len(l) == 0 {
		return zero, false
	}
	return l[len(l)-1], true
}

// StatusEntry is one audit record in a case's status history.
type StatusEntry struct {
	Status CaseStatus `json:"status"`
	By     string     `json:"by"`
	At     time.Time  `json:"at"`
	Note   string     `json:"note,omitempty"`
}

// EmailEntry records a message sent or observed for a case.
type EmailEntry struct {
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	To        string    `json:"to"`
	From      string    `json:"from"`
	SentAt    time.Time `json:"sentAt"`
	ThreadID  string    `json:"threadId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
}

// InfoRequest asks the case owner for additional evidence.
type InfoRequest struct {
	ID            string            `json:"id"`
	Message       string            `json:"message"`
	RequiresFile  bool              `json:"requiresFile"`
	RequiresYesNo bool              `json:"requiresYesNo"`
	RequestedAt   time.Time         `json:"requestedAt"`
	RequestedBy   string            `json:"requestedBy"`
	Status        InfoRequestStatus `json:"status"`
}

// InfoResponse is the owner's answer to an InfoRequest.
type InfoResponse struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"requestId"`
	Answer      string    `json:"answer,omitempty"`
	FileURL     string    `json:"fileUrl,omitempty"`
	FileName    string    `json:"fileName,omitempty"`
	FileType    string    `json:"fileType,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	SubmittedBy string    `json:"submittedBy"`
}

// Resolution carries an optional resolution code. Used and ExpiryDate are metadata only.
type Resolution struct {
	Code       string     `json:"code,omitempty"`
	AddedAt    *time.Time `json:"addedAt,omitempty"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
	Used       bool       `json:"used"`
}

// ManualAnalysis is an operator note attached to a case.
type ManualAnalysis struct {
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Case is the aggregate for a consumer complaint.
type Case struct {
	ID              string
	OwnerID         string
	OwnerEmail      *string
	Store           string
	Product         string
	Description     string
	Images          []string
	ProductImageURL *string
	ReceiptImageURL *string
	Status          CaseStatus

	StatusHistory       AppendLog[StatusEntry]
	Emails              AppendLog[EmailEntry]
	InfoRequestHistory  AppendLog[InfoRequest]
	InfoResponseHistory AppendLog[InfoResponse]

	ThreadID           *string
	LastEmailReplyAt   *time.Time
	LastEmailMessageID *string

	Resolution     *Resolution
	ManualAnalysis *ManualAnalysis

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AdoptThread sets the thread id unless one is already recorded. It reports whether it changed.
func (c *Case) AdoptThread(threadID string) bool {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" || (c.ThreadID != nil && *c.ThreadID != "") {
		return false
	}
	c.ThreadID = &threadID
	return true
}

// HasThread reports whether a mailbox thread is linked.
func (c *Case) HasThread() bool {
	return c.ThreadID != nil && *c.ThreadID != ""
}

// HasEmailMessage reports whether a message id is already present in the email log.
func (c *Case) HasEmailMessage(messageID string) bool {
	if messageID == "" {
		return false
	}
	for _, e := range c.Emails {
		if e.MessageID == messageID {
			return true
		}
	}
	return false
}

// LatestPendingRequest returns the most recently requested PENDING entry.
func (c *Case) LatestPendingRequest() (*InfoRequest, bool) {
	var found *InfoRequest
	for i := range c.InfoRequestHistory {
		req := &c.InfoRequestHistory[i]
		if req.Status != InfoRequestPending {
			continue
		}
		if found == nil || !req.RequestedAt.Before(found.RequestedAt) {
			found = req
		}
	}
	return found, found != nil
}

// FindRequest looks up an info request by id.
func (c *Case) FindRequest(id string) (*InfoRequest, bool) {
	for i := range c.InfoRequestHistory {
		if c.InfoRequestHistory[i].ID == id {
			return &c.InfoRequestHistory[i], true
		}
	}
	return nil, false
}

// SupersedePending marks every PENDING request as SUPERSEDED and returns how many changed.
func (c *Case) SupersedePending() int {
	n := 0
	for i := range c.InfoRequestHistory {
		if c.InfoRequestHistory[i].Status == InfoRequestPending {
			c.InfoRequestHistory[i].Status = InfoRequestSuperseded
			n++
		}
	}
	return n
}

// HasResponseFor reports whether any response references the request.
func (c *Case) HasResponseFor(requestID string) bool {
	for _, r := range c.InfoResponseHistory {
		if r.RequestID == requestID {
			return true
		}
	}
	return false
}

// Summary is the denormalized view embedded in notifications.
func (c *Case) Summary() CaseSummary {
	return CaseSummary{
		ID:          c.ID,
		Product:     c.Product,
		Store:       c.Store,
		Description: c.Description,
		Status:      c.Status,
	}
}

// DisplayLabel picks a short human label for the case.
func (c *Case) DisplayLabel() string {
	for _, v := range []string{c.Product, c.Description, c.Store, c.ID} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return "Case"
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	out.Images = append([]string(nil), c.Images...)
	out.StatusHistory = append(AppendLog[StatusEntry](nil), c.StatusHistory...)
	out.Emails = append(AppendLog[EmailEntry](nil), c.Emails...)
	out.InfoRequestHistory = append(AppendLog[InfoRequest](nil), c.InfoRequestHistory...)
	out.InfoResponseHistory = append(AppendLog[InfoResponse](nil), c.InfoResponseHistory...)
	out.OwnerEmail = cloneString(c.OwnerEmail)
	out.ProductImageURL = cloneString(c.ProductImageURL)
	out.ReceiptImageURL = cloneString(c.ReceiptImageURL)
	out.ThreadID = cloneString(c.ThreadID)
	out.LastEmailMessageID = cloneString(c.LastEmailMessageID)
	if c.LastEmailReplyAt != nil {
		t := *c.LastEmailReplyAt
		out.LastEmailReplyAt = &t
	}
	if c.Resolution != nil {
		r := *c.Resolution
		out.Resolution = &r
	}
	if c.ManualAnalysis != nil {
		m := *c.ManualAnalysis
		out.ManualAnalysis = &m
	}
	return &out
}

// CaseSummary is a compact case description.
type CaseSummary struct {
	ID          string     `json:"id"`
	Product     string     `json:"product"`
	Store       string     `json:"store"`
	Description string     `json:"description"`
	Status      CaseStatus `json:"status"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// IsNewReply reports whether an incoming message at the given internal time advances the case.
// Both guards must hold so a re-scanned or duplicated message never triggers twice.
func (c *Case) IsNewReply(at time.Time, messageID string) bool {
	if messageID == "" {
		return false
	}
	if c.LastEmailMessageID != nil && *c.LastEmailMessageID == messageID {
		return false
	}
	return c.LastEmailReplyAt == nil || at.After(*c.LastEmailReplyAt)
}

// RecordReply updates the dedup guard fields.
func (c *Case) RecordReply(at time.Time, messageID string) {
	t := at.UTC()
	c.LastEmailReplyAt = &t
	c.LastEmailMessageID = &messageID
}
