package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/case-service/internal/service"
)

type countingJob struct {
	mu      sync.Mutex
	recent  int
	replies int
	windows []time.Duration
	err     error
}

func (j *countingJob) SyncRecent(_ context.Context, window time.Duration) (service.SyncResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recent++
	j.windows = append(j.windows, window)
	return service.SyncResult{}, j.err
}

func (j *countingJob) CheckReplies(context.Context) (service.SyncResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.replies++
	return service.SyncResult{}, nil
}

func (j *countingJob) counts() (int, int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.recent, j.replies
}

func TestMailSyncWorkerRunsBothPassesUntilCancelled(t *testing.T) {
	job := &countingJob{err: errors.New("mailbox unavailable")}
	w := NewMailSyncWorker(job, 5*time.Millisecond, 48*time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		recent, replies := job.counts()
		if recent >= 2 && replies >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker did not tick: recent=%d replies=%d", recent, replies)
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	if job.windows[0] != 48*time.Hour {
		t.Fatalf("window %s", job.windows[0])
	}
}

func TestNewMailSyncWorkerDefaults(t *testing.T) {
	w := NewMailSyncWorker(&countingJob{}, 0, 0, nil)
	if w.interval != 10*time.Minute || w.window != 7*24*time.Hour {
		t.Fatalf("defaults %s %s", w.interval, w.window)
	}
}
