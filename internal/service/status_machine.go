package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// StatusNotifier reacts to a genuine status change.
type StatusNotifier interface {
	OnStatusChanged(ctx context.Context, c *domain.Case, oldStatus, newStatus domain.CaseStatus) error
}

// StatusChange describes the outcome of Apply.
type StatusChange struct {
	Old     domain.CaseStatus
	New     domain.CaseStatus
	Actor   string
	Note    string
	Changed bool
}

// StatusMachine validates and applies case status transitions. Any known status may follow any other.
type StatusMachine struct {
	cases      repository.CaseRepository
	notifier   StatusNotifier
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
}

// StatusMachineDependencies bundles collaborators for the machine.
type StatusMachineDependencies struct {
	CaseRepo   repository.CaseRepository
	Notifier   StatusNotifier
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
}

// NewStatusMachine constructs the machine.
func NewStatusMachine(deps StatusMachineDependencies) *StatusMachine {
	m := &StatusMachine{
		cases:      deps.CaseRepo,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = systemClock
	}
	return m
}

// Apply mutates c in memory only. A transition to the current status is a no-op.
func (m *StatusMachine) Apply(c *domain.Case, next domain.CaseStatus, actor, note string) (StatusChange, error) {
	if !next.Valid() {
		return StatusChange{}, apperrors.NewInvalidStatus(string(next))
	}
	change := StatusChange{Old: c.Status, New: next, Actor: actor, Note: note}
	if c.Status == next {
		return change, nil
	}

	at := m.now()
	if last, ok := c.StatusHistory.Last(); ok && last.At.After(at) {
		at = last.At
	}
	c.StatusHistory.Append(domain.StatusEntry{Status: next, By: actor, At: at, Note: note})
	c.Status = next
	change.Changed = true
	return change, nil
}

// Save persists c in one write and then announces change if it was genuine.
func (m *StatusMachine) Save(ctx context.Context, c *domain.Case, change StatusChange) error {
	if err := m.cases.Update(ctx, c); err != nil {
		return err
	}
	if change.Changed {
		m.announce(ctx, c, change)
	}
	return nil
}

// Transition applies and persists next.
func (m *StatusMachine) Transition(ctx context.Context, c *domain.Case, next domain.CaseStatus, actor, note string) (*domain.Case, error) {
	change, err := m.Apply(c, next, actor, note)
	if err != nil {
		return nil, err
	}
	if !change.Changed {
		return c, nil
	}
	if err := m.Save(ctx, c, change); err != nil {
		return nil, err
	}
	return c, nil
}

// TransitionByID loads the case, enforcing ownership unless identity is an admin.
func (m *StatusMachine) TransitionByID(ctx context.Context, identity domain.Identity, caseID string, next domain.CaseStatus, note string) (*domain.Case, error) {
	if !next.Valid() {
		return nil, apperrors.NewInvalidStatus(string(next))
	}
	c, err := loadCaseFor(ctx, m.cases, identity, caseID)
	if err != nil {
		return nil, err
	}
	return m.Transition(ctx, c, next, identity.Actor(), note)
}

func (m *StatusMachine) announce(ctx context.Context, c *domain.Case, change StatusChange) {
	m.metrics.RecordTransition(string(change.New))
	if m.notifier != nil {
		if err := m.notifier.OnStatusChanged(ctx, c, change.Old, change.New); err != nil {
			m.logger.Error("status notification failed",
				zap.String("case_id", c.ID),
				zap.String("new_status", string(change.New)),
				zap.Error(err),
			)
		}
	}
	if m.dispatcher != nil {
		_ = m.dispatcher.Publish(ctx, events.NewEvent(events.EventCaseStatusChanged, c.ID, change.Actor, events.CaseStatusChangedPayload{
			OldStatus: change.Old,
			NewStatus: change.New,
			Note:      change.Note,
		}))
	}
}
