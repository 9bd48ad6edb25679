package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-resty/resty/v2"
)

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs one outbound HTTP request. Connection failures are
// reported as ErrEndpointUnreachable and deadline failures as
// ErrEndpointTimeout; any received response is returned as is.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

type RestyTransport struct {
	client *resty.Client
}

func NewRestyTransport(timeout time.Duration) *RestyTransport {
	client := resty.New().
		SetTimeout(timeout).
		SetAllowGetMethodPayload(true).
		SetHeader("User-Agent", "relaydesk-webhooks/1.0")
	return &RestyTransport{client: client}
}

func (t *RestyTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetBody(req.Body).
		Execute(req.Method, req.URL)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", ErrEndpointTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrEndpointUnreachable, err)
	}

	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
