package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/case-service/internal/broadcast"
	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/events"
	"github.com/spec-kit/case-service/internal/mail"
	"github.com/spec-kit/case-service/internal/mailparse"
	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/push"
	"github.com/spec-kit/case-service/internal/repository"
	"github.com/spec-kit/case-service/internal/storage"
)

const testMailbox = "box@claimy.test"

var (
	adminIdentity = domain.Identity{SubjectID: "admin", Email: "admin@claimy.test", Admin: true}
	ownerIdentity = domain.Identity{SubjectID: "u1", Email: "owner@example.com"}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fakeTransport struct {
	mu        sync.Mutex
	sent      []mail.OutgoingMessage
	sendErr   error
	threads   map[string][]mail.RawMessage
	threadErr error
	search    []mail.RawMessage
	searchErr error
	counter   int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{threads: make(map[string][]mail.RawMessage)}
}

func (f *fakeTransport) Send(_ context.Context, msg mail.OutgoingMessage) (mail.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return mail.SendResult{}, f.sendErr
	}
	f.counter++
	f.sent = append(f.sent, msg)
	threadID := msg.ThreadID
	if threadID == "" {
		threadID = fmt.Sprintf("thread-%d", f.counter)
	}
	return mail.SendResult{MessageID: fmt.Sprintf("sent-%d", f.counter), ThreadID: threadID}, nil
}

func (f *fakeTransport) FetchThread(_ context.Context, threadID string) ([]mail.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.threadErr != nil {
		return nil, f.threadErr
	}
	return append([]mail.RawMessage(nil), f.threads[threadID]...), nil
}

func (f *fakeTransport) Search(_ context.Context, _ string, limit int) ([]mail.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.search
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]mail.RawMessage(nil), out...), nil
}

func (f *fakeTransport) Sent() []mail.OutgoingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.OutgoingMessage(nil), f.sent...)
}

type fakePush struct {
	mu   sync.Mutex
	sent []push.Message
	err  error
}

func (p *fakePush) Send(_ context.Context, msg push.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

type harness struct {
	cases         *repository.MemoryCaseRepository
	notifications *repository.MemoryNotificationRepository
	users         *repository.MemoryUserRepository
	stores        *repository.MemoryStoreRepository
	transport     *fakeTransport
	push          *fakePush
	broadcaster   *broadcast.Memory
	storage       *storage.Bucket
	metrics       *observability.Metrics
	clock         *fakeClock

	machine         *StatusMachine
	fanout          *NotificationFanout
	caseService     *CaseService
	correlator      *ThreadCorrelator
	info            *InfoExchangeTracker
	sync            *MailSyncBatchJob
	notificationSvc *NotificationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.NewFileBucket(t.TempDir(), "http://files.test/uploads", storage.NewFetcher(5*time.Second, 1<<20))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	h := &harness{
		cases:         repository.NewMemoryCaseRepository(),
		notifications: repository.NewMemoryNotificationRepository(),
		users:         repository.NewMemoryUserRepository(),
		stores:        repository.NewMemoryStoreRepository(),
		transport:     newFakeTransport(),
		push:          &fakePush{},
		broadcaster:   broadcast.NewMemory(),
		storage:       store,
		metrics:       observability.NewMetrics(),
		clock:         &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	dispatcher := events.NewInMemoryDispatcher(nil)

	h.fanout = NewNotificationFanout(FanoutDependencies{
		NotificationRepo: h.notifications,
		UserRepo:         h.users,
		Broadcaster:      h.broadcaster,
		Push:             h.push,
		Metrics:          h.metrics,
		Clock:            h.clock.Now,
	})
	h.machine = NewStatusMachine(StatusMachineDependencies{
		CaseRepo:   h.cases,
		Notifier:   h.fanout,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		Clock:      h.clock.Now,
	})
	h.caseService = NewCaseService(CaseDependencies{
		CaseRepo:   h.cases,
		Storage:    h.storage,
		Machine:    h.machine,
		Dispatcher: dispatcher,
		Clock:      h.clock.Now,
	})
	h.correlator = NewThreadCorrelator(CorrelatorDependencies{
		CaseRepo:   h.cases,
		StoreRepo:  h.stores,
		Transport:  h.transport,
		Storage:    h.storage,
		Machine:    h.machine,
		Dispatcher: dispatcher,
		Mailbox:    testMailbox,
		Clock:      h.clock.Now,
	})
	h.info = NewInfoExchangeTracker(InfoExchangeDependencies{
		CaseRepo:   h.cases,
		Transport:  h.transport,
		Storage:    h.storage,
		Machine:    h.machine,
		Dispatcher: dispatcher,
		Mailbox:    testMailbox,
		Clock:      h.clock.Now,
	})
	h.sync = NewMailSyncBatchJob(MailSyncDependencies{
		CaseRepo:   h.cases,
		Transport:  h.transport,
		Correlator: h.correlator,
		Metrics:    h.metrics,
	})
	h.notificationSvc = NewNotificationService(h.notifications, h.broadcaster, dispatcher, nil)
	return h
}

// seedCase files a case for ownerIdentity through the public service.
func (h *harness) seedCase(t *testing.T) *domain.Case {
	t.Helper()
	c, err := h.caseService.CreateCase(context.Background(), ownerIdentity, CaseCreateInput{
		Store:       "Acme",
		Product:     "Kettle",
		Description: "Stopped heating after a week",
	})
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	return c
}

func (h *harness) reload(t *testing.T, id string) *domain.Case {
	t.Helper()
	c, err := h.cases.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return c
}

func rawMessage(id, threadID string, at time.Time, headers map[string]string, labels ...string) mail.RawMessage {
	msg := mail.RawMessage{ID: id, ThreadID: threadID, InternalDate: at, LabelIDs: labels}
	for _, name := range []string{"From", "To", "Subject", "Date", "Message-ID", "References"} {
		if v, ok := headers[name]; ok {
			msg.Headers = append(msg.Headers, mailparse.Header{Name: name, Value: v})
		}
	}
	return msg
}
