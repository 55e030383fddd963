package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/mail"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository"
)

// MaxSyncBatch bounds one run of either sync pass.
const MaxSyncBatch = 500

// SyncDetail describes one matched or failed item.
type SyncDetail struct {
	CaseID    string `json:"caseId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	MatchedBy string `json:"matchedBy,omitempty"`
	Updated   bool   `json:"updated"`
	Error     string `json:"error,omitempty"`
}

// SyncResult aggregates one batch run. Per-item failures only increase Errors.
type SyncResult struct {
	Scanned int          `json:"scanned"`
	Matched int          `json:"matched"`
	Updated int          `json:"updated"`
	Errors  int          `json:"errors"`
	Details []SyncDetail `json:"details"`
}

// MailSyncBatchJob pulls a bounded batch from the mailbox and correlates each item.
type MailSyncBatchJob struct {
	cases      repository.CaseRepository
	transport  mail.Transport
	correlator *ThreadCorrelator
	metrics    *observability.Metrics
	logger     *zap.Logger
	batchLimit int
}

// MailSyncDependencies bundles collaborators.
type MailSyncDependencies struct {
	CaseRepo   repository.CaseRepository
	Transport  mail.Transport
	Correlator *ThreadCorrelator
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	BatchLimit int
}

// NewMailSyncBatchJob constructs the job.
func NewMailSyncBatchJob(deps MailSyncDependencies) *MailSyncBatchJob {
	j := &MailSyncBatchJob{
		cases:      deps.CaseRepo,
		transport:  deps.Transport,
		correlator: deps.Correlator,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		batchLimit: deps.BatchLimit,
	}
	if j.batchLimit <= 0 || j.batchLimit > MaxSyncBatch {
		j.batchLimit = MaxSyncBatch
	}
	if j.logger == nil {
		j.logger = zap.NewNop()
	}
	return j
}

// RecentQuery builds the mailbox search for messages newer than window, rounded up to whole days.
func RecentQuery(window time.Duration) string {
	days := int(math.Ceil(window.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return fmt.Sprintf("newer_than:%dd", days)
}

// SyncRecent scans recent mailbox messages and correlates each with a case.
func (j *MailSyncBatchJob) SyncRecent(ctx context.Context, window time.Duration) (SyncResult, error) {
	msgs, err := j.transport.Search(ctx, RecentQuery(window), j.batchLimit)
	if err != nil {
		return SyncResult{}, fmt.Errorf("mailbox search: %w", err)
	}
	if len(msgs) > j.batchLimit {
		msgs = msgs[:j.batchLimit]
	}

	result := SyncResult{Details: []SyncDetail{}}
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		result.Scanned++
		if msg.FetchErr != nil {
			result.Errors++
			result.Details = append(result.Details, SyncDetail{MessageID: msg.ID, Error: msg.FetchErr.Error()})
			continue
		}
		outcome, err := j.correlator.MatchInbound(ctx, msg)
		if err != nil {
			result.Errors++
			result.Details = append(result.Details, SyncDetail{CaseID: outcome.CaseID, MessageID: msg.ID, Error: err.Error()})
			if !errors.Is(err, ErrMalformedMessage) {
				j.logger.Warn("inbound correlation failed", zap.String("message_id", msg.ID), zap.Error(err))
			}
			continue
		}
		if !outcome.Matched {
			continue
		}
		result.Matched++
		if outcome.Advanced {
			result.Updated++
		}
		result.Details = append(result.Details, SyncDetail{
			CaseID:    outcome.CaseID,
			MessageID: msg.ID,
			MatchedBy: outcome.MatchedBy,
			Updated:   outcome.Advanced,
		})
	}

	j.record("sync_recent", result)
	return result, nil
}

// CheckReplies inspects the threads of cases that have one and advances those with a new incoming reply.
func (j *MailSyncBatchJob) CheckReplies(ctx context.Context) (SyncResult, error) {
	cases, err := j.cases.ListWithThread(ctx, j.batchLimit)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list threaded cases: %w", err)
	}

	result := SyncResult{Details: []SyncDetail{}}
	for i := range cases {
		if ctx.Err() != nil {
			break
		}
		c := &cases[i]
		result.Scanned++
		outcome, err := j.correlator.AdvanceFromThread(ctx, c)
		if err != nil {
			result.Errors++
			result.Details = append(result.Details, SyncDetail{CaseID: c.ID, Error: err.Error()})
			j.logger.Warn("reply check failed", zap.String("case_id", c.ID), zap.Error(err))
			continue
		}
		if outcome.Matched {
			result.Matched++
		}
		if outcome.Advanced {
			result.Updated++
			result.Details = append(result.Details, SyncDetail{
				CaseID:    c.ID,
				MessageID: domain.StringValue(c.LastEmailMessageID),
				MatchedBy: outcome.MatchedBy,
				Updated:   true,
			})
		}
	}

	j.record("check_replies", result)
	return result, nil
}

func (j *MailSyncBatchJob) record(job string, r SyncResult) {
	j.metrics.RecordSync(job, r.Scanned, r.Matched, r.Updated, r.Errors)
	j.logger.Info("mail sync finished",
		zap.String("job", job),
		zap.Int("scanned", r.Scanned),
		zap.Int("matched", r.Matched),
		zap.Int("updated", r.Updated),
		zap.Int("errors", r.Errors),
	)
}
