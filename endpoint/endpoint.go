// Package endpoint executes serialized SPARQL against a SPARQL 1.1
// endpoint (query and update forms), enforcing a per-call timeout,
// validating the response shape, and classifying failures into the
// taxonomy the rest of the system surfaces to callers.
//
// Two concrete drivers are provided. HTTPDriver is the production driver,
// speaking SPARQL 1.1 Protocol over net/http. LocalDriver is an
// in-process driver backed by package factstore, so the compiler
// pipeline and demo CLI can run end to end without a network SPARQL
// endpoint, and tests can assert on stored triples directly.
package endpoint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Binding is a single SPARQL JSON Results value: {type, value, datatype?,
// xml:lang?}, matching the SPARQL 1.1 JSON Results Format.
type Binding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// Result is a parsed and shape-validated SPARQL JSON Results document.
type Result struct {
	Vars     []string
	Bindings []map[string]Binding
}

// UpdateResult is the outcome of an UPDATE request.
type UpdateResult struct {
	Success bool
	Message string
}

// Failure is the endpoint error taxonomy: Timeout, Http(status), Shape,
// Transport. Code() feeds the top-level error envelope's `code` field.
type Failure struct {
	Kind    FailureKind
	Status  int
	Detail  string
	Cause   error
}

type FailureKind int

const (
	FailureTransport FailureKind = iota
	FailureTimeout
	FailureHTTP
	FailureShape
)

func (f *Failure) Error() string {
	switch f.Kind {
	case FailureTimeout:
		return "endpoint: timed out: " + f.Detail
	case FailureHTTP:
		return fmt.Sprintf("endpoint: HTTP %d: %s", f.Status, f.Detail)
	case FailureShape:
		return "endpoint: invalid response format: " + f.Detail
	default:
		return "endpoint: execution error: " + f.Detail
	}
}

func (f *Failure) Unwrap() error { return f.Cause }

// Code returns the stable error code for this failure.
func (f *Failure) Code() string {
	switch f.Kind {
	case FailureTimeout:
		return "TIMEOUT"
	case FailureHTTP:
		return fmt.Sprintf("HTTP_%d", f.Status)
	case FailureShape:
		return "INVALID_RESPONSE_FORMAT"
	default:
		return "EXECUTION_ERROR"
	}
}

// Options configures a single Query/Update call.
type Options struct {
	Timeout    time.Duration
	MaxResults int
}

// Driver is the contract the rest of the system depends on; both HTTPDriver
// and LocalDriver satisfy it.
type Driver interface {
	Query(ctx context.Context, sparql string, opts Options) (*Result, error)
	Update(ctx context.Context, sparql string, opts Options) (*UpdateResult, error)
}

const (
	contentTypeQuery  = "application/sparql-query"
	contentTypeUpdate = "application/sparql-update"
	acceptResultsJSON = "application/sparql-results+json"
)

// HTTPDriver POSTs query/update text to a SPARQL 1.1 endpoint over HTTP(S).
// It is stateless: concurrent calls share nothing but the *http.Client.
type HTTPDriver struct {
	QueryURL  string
	UpdateURL string // defaults to QueryURL when empty
	Client    *http.Client

	// RetryAttempts/RetryDelay govern retries of transient failures
	// (TIMEOUT, HTTP 5xx) only — validation, shape, and 4xx errors are
	// never retried. RetryAttempts <= 1 disables retrying.
	RetryAttempts int
	RetryDelay    time.Duration
}

func (d *HTTPDriver) updateURL() string {
	if d.UpdateURL != "" {
		return d.UpdateURL
	}
	return d.QueryURL
}

func (d *HTTPDriver) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

// Query executes a SPARQL SELECT query, retrying transient
// failures per RetryAttempts/RetryDelay.
func (d *HTTPDriver) Query(ctx context.Context, sparql string, opts Options) (*Result, error) {
	var result *Result
	err := retry(ctx, d.retryAttempts(), d.RetryDelay, func() error {
		r, err := d.queryOnce(ctx, sparql, opts)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *HTTPDriver) queryOnce(ctx context.Context, sparql string, opts Options) (*Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.QueryURL, bytes.NewReader([]byte(sparql)))
	if err != nil {
		return nil, &Failure{Kind: FailureTransport, Detail: err.Error(), Cause: err}
	}
	req.Header.Set("Content-Type", contentTypeQuery)
	req.Header.Set("Accept", acceptResultsJSON)

	resp, err := d.client().Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Failure{Kind: FailureTimeout, Detail: err.Error(), Cause: err}
		}
		return nil, &Failure{Kind: FailureTransport, Detail: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Failure{Kind: FailureTransport, Detail: err.Error(), Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Failure{Kind: FailureHTTP, Status: resp.StatusCode, Detail: excerpt(body)}
	}

	result, err := ParseSPARQLJSON(body)
	if err != nil {
		return nil, &Failure{Kind: FailureShape, Detail: err.Error(), Cause: err}
	}
	if opts.MaxResults > 0 && len(result.Bindings) > opts.MaxResults {
		result.Bindings = result.Bindings[:opts.MaxResults]
	}
	return result, nil
}

// Update executes a SPARQL UPDATE request, retrying transient
// failures per RetryAttempts/RetryDelay.
func (d *HTTPDriver) Update(ctx context.Context, sparql string, opts Options) (*UpdateResult, error) {
	var result *UpdateResult
	err := retry(ctx, d.retryAttempts(), d.RetryDelay, func() error {
		r, err := d.updateOnce(ctx, sparql, opts)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (d *HTTPDriver) updateOnce(ctx context.Context, sparql string, opts Options) (*UpdateResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.updateURL(), bytes.NewReader([]byte(sparql)))
	if err != nil {
		return nil, &Failure{Kind: FailureTransport, Detail: err.Error(), Cause: err}
	}
	req.Header.Set("Content-Type", contentTypeUpdate)

	resp, err := d.client().Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Failure{Kind: FailureTimeout, Detail: err.Error(), Cause: err}
		}
		return nil, &Failure{Kind: FailureTransport, Detail: err.Error(), Cause: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Failure{Kind: FailureHTTP, Status: resp.StatusCode, Detail: excerpt(body)}
	}
	return &UpdateResult{Success: true, Message: excerpt(body)}, nil
}

func (d *HTTPDriver) retryAttempts() int {
	if d.RetryAttempts < 1 {
		return 1
	}
	return d.RetryAttempts
}

func excerpt(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "...(truncated)"
	}
	return string(body)
}

// retry runs fn up to attempts times, sleeping delay between attempts, but
// only for the transient failure classes (timeout, 5xx): a validation,
// shape, or 4xx error is never retried.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if i < attempts-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return lastErr
			}
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	f, ok := err.(*Failure)
	if !ok {
		return false
	}
	if f.Kind == FailureTimeout {
		return true
	}
	return f.Kind == FailureHTTP && f.Status >= 500
}
