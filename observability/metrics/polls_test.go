package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPollMetricsCounters(t *testing.T) {
	m := Polls()
	if Polls() != m {
		t.Fatalf("expected singleton registry")
	}

	before := testutil.ToFloat64(m.votes.WithLabelValues("asset"))
	m.ObserveEvent("polls.voted", map[string]string{"currency": "asset:4"})
	if got := testutil.ToFloat64(m.votes.WithLabelValues("asset")); got != before+1 {
		t.Fatalf("expected asset vote counted, got %v", got)
	}

	failures := testutil.ToFloat64(m.closureFailures.WithLabelValues("polls"))
	m.ObserveClosure("polls", errors.New("boom"))
	m.ObserveClosure("polls", nil)
	if got := testutil.ToFloat64(m.closureFailures.WithLabelValues("polls")); got != failures+1 {
		t.Fatalf("expected one failure, got %v", got-failures)
	}

	m.SetHeight(42)
	if got := testutil.ToFloat64(m.height); got != 42 {
		t.Fatalf("unexpected height %v", got)
	}

	m.ObserveRPC("polls_vote", nil, time.Millisecond)
	if got := testutil.ToFloat64(m.rpcRequests.WithLabelValues("polls_vote", "success")); got < 1 {
		t.Fatalf("rpc request not counted")
	}

	var nilMetrics *PollMetrics
	nilMetrics.ObserveEvent("polls.created", nil)
	nilMetrics.RecordThrottle()
}
