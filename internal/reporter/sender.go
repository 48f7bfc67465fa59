package reporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Outcome classifies a send.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTimeout
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Result describes one send. StatusCode is 0 when no response arrived.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Latency    time.Duration
	Err        error
}

// OK reports whether the controller answered with a 2xx status.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess && r.StatusCode >= 200 && r.StatusCode < 300
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sender issues report requests against a fixed controller URL.
type Sender struct {
	endpoint *url.URL
	client   Doer
	timeout  time.Duration
}

// NewSender returns a Sender for controllerURL. Every send is bounded by
// timeout. A nil client gets a dedicated http.Client without keep-alives.
func NewSender(controllerURL string, timeout time.Duration, client Doer) (*Sender, error) {
	u, err := url.Parse(controllerURL)
	if err != nil {
		return nil, fmt.Errorf("reporter: parse controller url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("reporter: unsupported scheme %q", u.Scheme)
	}
	if timeout <= 0 {
		return nil, errors.New("reporter: timeout must be positive")
	}

	if client == nil {
		client = NewHTTPClient(timeout)
	}

	return &Sender{
		endpoint: u,
		client:   client,
		timeout:  timeout,
	}, nil
}

// NewHTTPClient builds the client used for reports. Connections are not
// reused since every request asks the controller to close.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
			DisableKeepAlives:   true,
			TLSHandshakeTimeout: timeout,
		},
	}
}

// Endpoint returns the controller URL reports are sent to.
func (s *Sender) Endpoint() string {
	return s.endpoint.String()
}

// Send makes exactly one GET attempt for report.
func (s *Sender) Send(ctx context.Context, report Report) Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := *s.endpoint
	query := target.Query()
	for key, values := range report.Values() {
		query[key] = values
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Result{Outcome: OutcomeError, Err: fmt.Errorf("reporter: build request: %w", err)}
	}
	req.Header.Set("Connection", "close")
	req.Close = true

	start := time.Now()
	res, err := s.client.Do(req)
	if err != nil {
		return Result{
			Outcome: classify(ctx, err),
			Latency: time.Since(start),
			Err:     err,
		}
	}
	defer res.Body.Close()

	// The body is not used; draining it keeps the read inside the deadline.
	_, err = io.Copy(io.Discard, res.Body)
	result := Result{
		Outcome:    OutcomeSuccess,
		StatusCode: res.StatusCode,
		Latency:    time.Since(start),
	}
	if err != nil {
		result.Outcome = classify(ctx, err)
		result.Err = err
	}

	return result
}

func classify(ctx context.Context, err error) Outcome {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
