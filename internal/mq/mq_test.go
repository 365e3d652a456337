package mq

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/ynab-portal/internal/domain"
)

func TestTopology_Consistent(t *testing.T) {
	declared := map[Queue]bool{}
	for _, q := range queues {
		declared[q.name] = true
	}
	exchangeSet := map[Exchange]bool{}
	for _, ex := range exchanges {
		exchangeSet[ex.name] = true
	}

	for _, b := range bindings {
		if !declared[b.queue] {
			t.Errorf("binding references undeclared queue %s", b.queue)
		}
		if !exchangeSet[b.exchange] {
			t.Errorf("binding references undeclared exchange %s", b.exchange)
		}
	}

	// DLQ очереди запросов ведёт в объявленный обменник
	for _, q := range queues {
		if dlx, ok := q.args["x-dead-letter-exchange"]; ok && !exchangeSet[Exchange(dlx.(string))] {
			t.Errorf("queue %s dead-letters to unknown exchange %v", q.name, dlx)
		}
	}
}

func TestTopologyInfo(t *testing.T) {
	info := TopologyInfo()
	for _, want := range []string{"ynab.sync (direct)", "sync.requested [routing: requested]", "dlq.sync [routing: sync]"} {
		if !strings.Contains(info, want) {
			t.Errorf("topology info missing %q:\n%s", want, info)
		}
	}
}

func TestMessage_RoundTrip(t *testing.T) {
	run := domain.NewSyncRun(domain.JobTransactions, domain.TriggerScheduler)
	run.Force = true

	msg, err := NewMessage(MessageTypeSyncRequested, SyncRequestedPayload{RunID: run.ID, Job: run.Job, Force: run.Force})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Error("message id and timestamp should be set")
	}

	body := []byte(`{"id":"` + msg.ID + `","type":"sync.requested","payload":` + string(msg.Payload) + `,"timestamp":"` + msg.Timestamp.Format(time.RFC3339Nano) + `"}`)
	decoded, err := DecodeMessage(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	payload, err := ParsePayload[SyncRequestedPayload](decoded)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.RunID != run.ID || payload.Job != domain.JobTransactions || !payload.Force {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestDecodeMessage_Invalid(t *testing.T) {
	if _, err := DecodeMessage([]byte("not json")); err == nil {
		t.Error("expected error for invalid json")
	}
	if _, err := DecodeMessage([]byte(`{"id":"1","payload":{}}`)); err == nil {
		t.Error("expected error for message without type")
	}
}

func TestParsePayload_Mismatch(t *testing.T) {
	msg := &Message{Type: MessageTypeSyncCompleted, Payload: []byte(`{"run_id":"not-a-uuid"}`)}
	if _, err := ParsePayload[SyncCompletedPayload](msg); err == nil {
		t.Error("expected error for invalid run_id")
	}

	msg.Payload = []byte(`{"run_id":"` + uuid.NewString() + `","status":"FAILED","error":"boom"}`)
	p, err := ParsePayload[SyncCompletedPayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != domain.RunStatusFailed || p.Error != "boom" {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestDecide(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		err         error
		redelivered bool
		want        action
	}{
		{nil, false, actionAck},
		{nil, true, actionAck},
		{boom, false, actionRequeue},
		{boom, true, actionDeadLetter},
	}
	for _, tt := range tests {
		if got := decide(tt.err, tt.redelivered); got != tt.want {
			t.Errorf("decide(%v, %v) = %d, want %d", tt.err, tt.redelivered, got, tt.want)
		}
	}
}

func TestNextDelay(t *testing.T) {
	d := time.Duration(0)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		d = nextDelay(d)
		if d != w {
			t.Fatalf("step %d: got %v, want %v", i, d, w)
		}
	}
}
