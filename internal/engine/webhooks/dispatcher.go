package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"relaydesk/internal/pkg/validator"
	"relaydesk/internal/platform/metrics"
	"relaydesk/internal/platform/models"
)

// EndpointStore reads endpoint registrations. GetEndpoint returns nil, nil
// for deleted registrations.
type EndpointStore interface {
	ListEnabledEndpoints(ctx context.Context, tenantID, entityType, event string) ([]*models.Webhook, error)
	GetEndpoint(ctx context.Context, tenantID, id string) (*models.Webhook, error)
}

type DeliveryLog interface {
	Append(ctx context.Context, entry *models.DeliveryLog) error
	AdvanceStatus(ctx context.Context, tenantID, id, status string, retries int, errMsg string) error
}

type Options struct {
	// MaxAttempts bounds the attempts per delivery, the first one included.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// DeliveryOutcome is the terminal state of one delivery.
type DeliveryOutcome struct {
	EndpointID    string `json:"endpoint_id"`
	DeliveryLogID string `json:"delivery_log_id,omitempty"`
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	RetriesCount  int    `json:"retries_count"`
	StatusCode    int    `json:"status_code,omitempty"`
	Error         string `json:"error,omitempty"`

	Err error `json:"-"`
}

// TestOutcome is the raw result of a single test attempt.
type TestOutcome struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type Dispatcher struct {
	endpoints EndpointStore
	logs      DeliveryLog
	transport Transport
	opts      Options
	inflight  *inflight
}

func NewDispatcher(endpoints EndpointStore, logs DeliveryLog, transport Transport, opts Options) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 10 * time.Second
	}
	return &Dispatcher{
		endpoints: endpoints,
		logs:      logs,
		transport: transport,
		opts:      opts,
		inflight:  newInflight(),
	}
}

// Dispatch delivers one entity mutation to every matching registration in
// parallel and returns once each delivery is terminal. One delivery's
// failure never affects another.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, entityType, event, entityID string, payload interface{}) ([]DeliveryOutcome, error) {
	if !models.IsEvent(event) {
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidEvent, event)
	}
	if !models.IsEntityType(entityType) {
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidEvent, entityType)
	}

	endpoints, err := d.endpoints.ListEnabledEndpoints(ctx, tenantID, entityType, event)
	if err != nil {
		return nil, fmt.Errorf("load endpoints: %w", err)
	}

	var selected []*models.Webhook
	for _, ep := range endpoints {
		if ep != nil && ep.Selects(entityType, event, entityID) {
			selected = append(selected, ep)
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}
	metrics.Inc(metrics.Dispatches)

	evt := &models.WebhookEvent{
		ID:         "evt_" + uuid.New().String(),
		TenantID:   tenantID,
		EntityType: entityType,
		Event:      event,
		EntityID:   entityID,
		Timestamp:  time.Now().Unix(),
		Data:       payload,
	}

	outcomes := make([]DeliveryOutcome, len(selected))
	done := make(chan struct{}, len(selected))
	for i, ep := range selected {
		go func(i int, ep *models.Webhook) {
			defer func() { done <- struct{}{} }()
			outcomes[i] = d.deliver(ctx, ep, evt)
		}(i, ep)
	}
	for range selected {
		<-done
	}

	return outcomes, nil
}

// CancelEndpoint stops every in-flight delivery to endpointID. Each one is
// recorded as a terminal error carrying reason. Returns how many were
// cancelled.
func (d *Dispatcher) CancelEndpoint(endpointID, reason string) int {
	n := d.inflight.cancel(endpointID, fmt.Errorf("%w: %s", ErrDeliveryCancelled, reason))
	if n > 0 {
		log.Info().Str("endpoint_id", endpointID).Int("deliveries", n).Str("reason", reason).Msg("cancelled in-flight deliveries")
	}
	return n
}

// Test fires a single attempt with the registration's current settings.
// Nothing is retried and no delivery log is written.
func (d *Dispatcher) Test(ctx context.Context, endpoint *models.Webhook) TestOutcome {
	payload := map[string]interface{}{
		"test":        true,
		"endpoint_id": endpoint.ID,
		"entity_type": endpoint.EntityType,
		"timestamp":   time.Now().Unix(),
	}

	start := time.Now()
	req, err := buildRequest(endpoint, payload, "test.ping", "test_"+uuid.New().String())
	if err != nil {
		return TestOutcome{Error: err.Error()}
	}

	resp, err := d.attempt(ctx, req)
	out := TestOutcome{Success: err == nil, DurationMS: time.Since(start).Milliseconds()}
	if resp != nil {
		out.StatusCode = resp.StatusCode
		out.Body = truncate(string(resp.Body), 1024)
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, ep *models.Webhook, evt *models.WebhookEvent) DeliveryOutcome {
	out := DeliveryOutcome{EndpointID: ep.ID}
	logger := log.With().Str("tenant_id", evt.TenantID).Str("endpoint_id", ep.ID).Str("event_id", evt.ID).Logger()

	input, _ := json.Marshal(evt)
	entry := &models.DeliveryLog{
		TenantID:    evt.TenantID,
		WorkflowID:  ep.ID,
		ExecutionID: evt.ID,
		NodeName:    fmt.Sprintf("webhook %s %s.%s", ep.Method, evt.EntityType, evt.Event),
		InputData:   input,
		Status:      models.StatusPending,
	}

	// Bookkeeping survives the caller's cancellation.
	bg := context.WithoutCancel(ctx)
	if err := d.logs.Append(bg, entry); err != nil {
		logger.Error().Err(err).Msg("failed to append delivery log, skipping delivery")
		out.Status, out.Err, out.Error = models.StatusError, err, err.Error()
		return out
	}
	out.DeliveryLogID = entry.ID
	logger = logger.With().Str("delivery_id", entry.ID).Logger()

	dctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	d.inflight.add(ep.ID, entry.ID, cancel)
	defer d.inflight.remove(ep.ID, entry.ID)

	finish := func(status string, failures int, err error) DeliveryOutcome {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		actx, acancel := context.WithTimeout(bg, 5*time.Second)
		defer acancel()
		if aerr := d.logs.AdvanceStatus(actx, evt.TenantID, entry.ID, status, failures, msg); aerr != nil {
			logger.Error().Err(aerr).Str("status", status).Msg("failed to record delivery outcome")
		}

		metrics.IncStatus(metrics.Deliveries, status)
		out.Status, out.RetriesCount, out.Err, out.Error = status, failures, err, msg
		if status == models.StatusSuccess {
			logger.Info().Int("attempts", out.Attempts).Msg("webhook delivered")
		} else {
			logger.Warn().Err(err).Int("attempts", out.Attempts).Msg("webhook delivery failed")
		}
		return out
	}

	req, err := buildRequest(ep, evt.Data, evt.EntityType+"."+evt.Event, entry.ID)
	if err != nil {
		return finish(models.StatusError, 0, err)
	}

	failures := 0
	for {
		if failures > 0 {
			if err := d.wait(dctx, d.backoff(failures)); err != nil {
				return finish(models.StatusError, failures, err)
			}
			if err := d.stillEnabled(dctx, evt.TenantID, ep.ID); err != nil {
				return finish(models.StatusError, failures, err)
			}
		}

		out.Attempts++
		metrics.Inc(metrics.DeliveryAttempts)
		resp, err := d.attempt(dctx, req)
		if resp != nil {
			out.StatusCode = resp.StatusCode
		}
		if err == nil {
			return finish(models.StatusSuccess, failures, nil)
		}

		failures++
		if dctx.Err() != nil {
			return finish(models.StatusError, failures, cancelCause(dctx))
		}
		if !retryable(err) || failures >= d.opts.MaxAttempts {
			return finish(models.StatusError, failures, err)
		}

		logger.Debug().Err(err).Int("failures", failures).Msg("delivery attempt failed, retrying")
		if aerr := d.logs.AdvanceStatus(bg, evt.TenantID, entry.ID, models.StatusRetrying, failures, err.Error()); aerr != nil {
			logger.Warn().Err(aerr).Msg("failed to record retry")
		}
	}
}

func (d *Dispatcher) attempt(ctx context.Context, req *Request) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
	defer cancel()

	resp, err := d.transport.Do(actx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, &NonSuccessStatusError{Code: resp.StatusCode, Body: truncate(string(resp.Body), 256)}
	}
	return resp, nil
}

// backoff returns the wait before the attempt following the given number of
// failures: InitialBackoff doubled per failure, capped at MaxBackoff.
func (d *Dispatcher) backoff(failures int) time.Duration {
	delay := d.opts.InitialBackoff
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= d.opts.MaxBackoff {
			return d.opts.MaxBackoff
		}
	}
	return delay
}

func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return cancelCause(ctx)
	}
}

// stillEnabled re-reads the registration before a retry. A read error keeps
// the delivery going; a deleted or disabled registration cancels it.
func (d *Dispatcher) stillEnabled(ctx context.Context, tenantID, endpointID string) error {
	ep, err := d.endpoints.GetEndpoint(ctx, tenantID, endpointID)
	if err != nil {
		if ctx.Err() != nil {
			return cancelCause(ctx)
		}
		log.Warn().Err(err).Str("endpoint_id", endpointID).Msg("could not re-read endpoint before retry")
		return nil
	}
	if ep == nil {
		return fmt.Errorf("%w: endpoint deleted", ErrDeliveryCancelled)
	}
	if !ep.Enabled {
		return fmt.Errorf("%w: endpoint disabled", ErrDeliveryCancelled)
	}
	return nil
}

func cancelCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrDeliveryCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrDeliveryCancelled, cause)
}

func buildRequest(ep *models.Webhook, payload interface{}, eventName, deliveryID string) (*Request, error) {
	method, err := validator.Method(ep.Method)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if err := validator.EndpointURL(ep.URL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	body, err := Render(ep.Template, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: render: %v", ErrInvalidConfiguration, err)
	}

	headers := make(map[string]string, len(ep.Headers)+4)
	for k, v := range ep.Headers {
		if strings.EqualFold(k, "Content-Type") {
			continue
		}
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"
	headers["X-Relaydesk-Event"] = eventName
	headers["X-Relaydesk-Delivery"] = deliveryID
	if ep.Secret != "" {
		headers["X-Relaydesk-Signature"] = signaturePrefix + Sign(ep.Secret, body)
	}

	return &Request{Method: method, URL: ep.URL, Headers: headers, Body: body}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
