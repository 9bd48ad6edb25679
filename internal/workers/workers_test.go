package workers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"relaydesk/internal/engine/filters"
	"relaydesk/internal/engine/webhooks"
	"relaydesk/internal/platform/models"
	"relaydesk/internal/platform/repositories"
)

type scriptedReader struct {
	msgs      []kafka.Message
	committed []int64
	fetchErr  error
	onDrain   func()
	closed    bool
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		if r.fetchErr != nil {
			return kafka.Message{}, r.fetchErr
		}
		if r.onDrain != nil {
			r.onDrain()
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []string
}

func (d *fakeDispatcher) Dispatch(_ context.Context, tenantID, entityType, event, entityID string, _ interface{}) ([]webhooks.DeliveryOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, tenantID+"/"+entityType+"/"+event+"/"+entityID)
	return nil, nil
}

// tenantGatedDispatcher holds acme's dispatch until globex's dispatch has
// started, or gives up after wait.
type tenantGatedDispatcher struct {
	globexStarted chan struct{}
	wait          time.Duration

	mu          sync.Mutex
	acmeBlocked bool
	deadlines   int
	cancelled   int
}

func (d *tenantGatedDispatcher) Dispatch(ctx context.Context, tenantID, _, _, _ string, _ interface{}) ([]webhooks.DeliveryOutcome, error) {
	d.mu.Lock()
	if _, ok := ctx.Deadline(); ok {
		d.deadlines++
	}
	d.mu.Unlock()

	switch tenantID {
	case "globex":
		close(d.globexStarted)
	case "acme":
		select {
		case <-d.globexStarted:
		case <-time.After(d.wait):
			d.mu.Lock()
			d.acmeBlocked = true
			d.mu.Unlock()
		}
	}

	d.mu.Lock()
	if ctx.Err() != nil {
		d.cancelled++
	}
	d.mu.Unlock()
	return nil, nil
}

func mutationMessage(t *testing.T, offset int64, tenantID string) kafka.Message {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"tenant_id": tenantID, "entity_type": "contact", "event": "update", "entity_id": "c1",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Offset: offset, Value: body}
}

type fakeEvaluator struct {
	tenants []string
	texts   []string
}

func (e *fakeEvaluator) Evaluate(_ context.Context, tenantID string, msg *filters.Message) (*filters.MatchResult, error) {
	e.tenants = append(e.tenants, tenantID)
	e.texts = append(e.texts, msg.Text)
	return &filters.MatchResult{Matched: true, Rule: &models.Rule{ID: "flt_1"}, DeliveryLogID: "log_1"}, nil
}

func TestConsumer_CommitsEveryMessage(t *testing.T) {
	good, _ := json.Marshal(map[string]interface{}{
		"tenant_id": "acme", "entity_type": "contact", "event": "create", "entity_id": "c1", "payload": map[string]string{"name": "Ada"},
	})
	reader := &scriptedReader{msgs: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("not json")},
		{Offset: 3, Value: []byte(`{"entity_type":"contact"}`)},
	}}
	c := newConsumer(reader, "entity.mutations", ConsumerOptions{})
	d := &fakeDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader.onDrain = cancel

	if err := c.Run(ctx, MutationHandler(d)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(reader.committed) != 3 {
		t.Errorf("committed %v, want 3 offsets", reader.committed)
	}
	if len(d.calls) != 1 || d.calls[0] != "acme/contact/create/c1" {
		t.Errorf("dispatch calls = %v", d.calls)
	}
	if err := c.Close(); err != nil || !reader.closed {
		t.Errorf("Close() = %v", err)
	}
}

func TestConsumer_SlowTenantDoesNotDelayOthers(t *testing.T) {
	reader := &scriptedReader{msgs: []kafka.Message{
		mutationMessage(t, 1, "acme"),
		mutationMessage(t, 2, "globex"),
	}}
	c := newConsumer(reader, "entity.mutations", ConsumerOptions{Concurrency: 2, HandleTimeout: time.Minute})
	d := &tenantGatedDispatcher{globexStarted: make(chan struct{}), wait: 2 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader.onDrain = cancel

	if err := c.Run(ctx, MutationHandler(d)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if d.acmeBlocked {
		t.Error("globex dispatch waited behind acme")
	}
	if len(reader.committed) != 2 {
		t.Errorf("committed %v, want 2 offsets", reader.committed)
	}
	if d.deadlines != 2 {
		t.Errorf("dispatches with deadline = %d, want 2", d.deadlines)
	}
	if d.cancelled != 0 {
		t.Errorf("dispatches cancelled by shutdown = %d, want 0", d.cancelled)
	}
}

func TestConsumer_HandleTimeout(t *testing.T) {
	reader := &scriptedReader{msgs: []kafka.Message{{Offset: 7}}}
	c := newConsumer(reader, "entity.mutations", ConsumerOptions{HandleTimeout: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader.onDrain = cancel

	var handlerErr error
	err := c.Run(ctx, func(hctx context.Context, _ kafka.Message) error {
		<-hctx.Done()
		handlerErr = hctx.Err()
		return handlerErr
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !errors.Is(handlerErr, context.DeadlineExceeded) {
		t.Errorf("handler ctx err = %v, want deadline exceeded", handlerErr)
	}
}

func TestConsumer_FetchError(t *testing.T) {
	reader := &scriptedReader{fetchErr: errors.New("broker gone")}
	c := newConsumer(reader, "messages.inbound", ConsumerOptions{})

	if err := c.Run(context.Background(), func(context.Context, kafka.Message) error { return nil }); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestNewConsumer_Validation(t *testing.T) {
	tests := []struct {
		name                    string
		brokers, topic, groupID string
	}{
		{"no brokers", "", "t", "g"},
		{"no topic", "localhost:9092", "", "g"},
		{"no group", "localhost:9092", "t", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewConsumer(tt.brokers, tt.topic, tt.groupID, ConsumerOptions{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMessageHandler(t *testing.T) {
	e := &fakeEvaluator{}
	h := MessageHandler(e)

	body := []byte(`{"tenant_id":"acme","message":{"text":"server down","type":"text","sender_role":"member","group_id":"g1"}}`)
	if err := h(context.Background(), kafka.Message{Value: body}); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if len(e.tenants) != 1 || e.tenants[0] != "acme" || e.texts[0] != "server down" {
		t.Errorf("evaluations = %v %v", e.tenants, e.texts)
	}

	if err := h(context.Background(), kafka.Message{Value: []byte(`{"message":{}}`)}); err == nil {
		t.Error("expected error for missing tenant")
	}
	if len(e.tenants) != 1 {
		t.Errorf("evaluator called for invalid message")
	}
}

type fakeOrgs struct {
	orgs []*models.Organization
	err  error
}

func (f *fakeOrgs) List(context.Context) ([]*models.Organization, error) {
	return f.orgs, f.err
}

type fakeStaleLogs struct {
	stale    map[string][]*models.DeliveryLog
	listErr  map[string]error
	finalize map[string]bool
	before   int64
	advanced []string
}

func (f *fakeStaleLogs) ListStale(_ context.Context, tenantID string, before int64) ([]*models.DeliveryLog, error) {
	f.before = before
	if err := f.listErr[tenantID]; err != nil {
		return nil, err
	}
	return f.stale[tenantID], nil
}

func (f *fakeStaleLogs) AdvanceStatus(_ context.Context, tenantID, id, status string, retries int, errMsg string) error {
	if f.finalize[id] {
		return repositories.ErrLogFinalized
	}
	if status != models.StatusError || errMsg != abandonedMessage {
		return errors.New("unexpected advance")
	}
	f.advanced = append(f.advanced, tenantID+"/"+id)
	return nil
}

func TestSweeper_SweepOnce(t *testing.T) {
	orgs := &fakeOrgs{orgs: []*models.Organization{{ID: "acme"}, {ID: "broken"}, {ID: "globex"}}}
	logs := &fakeStaleLogs{
		stale: map[string][]*models.DeliveryLog{
			"acme":   {{ID: "log_1", Status: models.StatusRetrying, RetriesCount: 1}, {ID: "log_2", Status: models.StatusPending}},
			"globex": {{ID: "log_3", Status: models.StatusPending}},
		},
		listErr:  map[string]error{"broken": errors.New("db locked")},
		finalize: map[string]bool{"log_2": true},
	}

	s := NewSweeper(orgs, logs, time.Hour, time.Minute)
	fixed := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return fixed }

	n, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce() error = %v", err)
	}
	if n != 2 {
		t.Errorf("closed = %d, want 2", n)
	}
	if want := fixed.Add(-time.Hour).Unix(); logs.before != want {
		t.Errorf("before = %d, want %d", logs.before, want)
	}
	if len(logs.advanced) != 2 || logs.advanced[0] != "acme/log_1" || logs.advanced[1] != "globex/log_3" {
		t.Errorf("advanced = %v", logs.advanced)
	}
}

func TestSweeper_OrgListError(t *testing.T) {
	s := NewSweeper(&fakeOrgs{err: errors.New("down")}, &fakeStaleLogs{}, 0, 0)
	if _, err := s.SweepOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
