package observability

import (
	"testing"
	"time"
)

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/cases", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/cases", "GET", 200, 5*time.Millisecond)
	m.RecordSync("sync_recent", 10, 3, 2, 1)
	m.RecordTransition("IN_REVIEW")
	m.RecordPushFailure()

	snap := m.Snapshot()
	if snap.Requests["/cases|GET|200"] != 2 || snap.RequestMs["/cases|GET|200"] != 20 {
		t.Fatalf("request counters: %+v", snap)
	}
	if snap.Sync["sync_recent|scanned"] != 10 || snap.Sync["sync_recent|errors"] != 1 || snap.Sync["sync_recent|runs"] != 1 {
		t.Fatalf("sync counters: %+v", snap.Sync)
	}
	if snap.Transitions["IN_REVIEW"] != 1 || snap.PushFailures != 1 {
		t.Fatalf("transition/push counters: %+v", snap)
	}

	snap.Requests["/cases|GET|200"] = 99
	if m.Snapshot().Requests["/cases|GET|200"] != 2 {
		t.Fatal("snapshot aliases live counters")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	m.RecordSync("x", 1, 1, 1, 1)
	m.RecordTransition("APPROVED")
	m.RecordPushFailure()
}
