// Package callback implements the event-log callback engine: one durable,
// retrying log-stream job per configured callback, rendering each matching
// log through a shared templater and dispatching the rendered string to an
// HTTP endpoint or to stdout.
package callback

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/ethgate/gateway/abi"
	"github.com/ethgate/gateway/log"
	"github.com/ethgate/gateway/node"
	"github.com/ethgate/gateway/rpc"
	"github.com/ethgate/gateway/templating"
)

// EndpointKind discriminates a callback's dispatch target.
type EndpointKind int

const (
	// EndpointURI dispatches the rendered body as an HTTP POST.
	EndpointURI EndpointKind = iota
	// EndpointStdout pushes the rendered body as a line on the shared
	// stdout writer.
	EndpointStdout
)

// Endpoint is a callback's dispatch target.
type Endpoint struct {
	Kind EndpointKind
	URI  string // only set when Kind == EndpointURI
}

// Job describes one durable callback: the events it watches for (scoped by
// origin address), where to start the log stream, and where rendered
// matches are delivered. ID correlates this job's log lines and dispatch
// requests across reconnects; callers constructing a Job from configuration
// should set it once with uuid.New() and keep it stable for the job's
// lifetime.
type Job struct {
	ID       uuid.UUID
	Endpoint Endpoint
	Origin   []common.Address
	Events   []abi.Event
	Start    *big.Int
	Poll     time.Duration
	Lag      uint8
}

const (
	reconnectBackoffUnit = 128 * time.Millisecond
	reconnectMaxFailures = 3
	reconnectWindow      = 127 * time.Second
)

// Engine runs one or more callback Jobs concurrently, each as a durable
// log-stream loop with its own reconnect/backoff state.
type Engine struct {
	client     *node.Client
	templater  *templating.Templater
	httpClient *http.Client
	stdout     *Stdout
}

// New builds an Engine. httpClient may be nil, in which case
// http.DefaultClient is used.
func New(client *node.Client, templater *templating.Templater, httpClient *http.Client, stdout *Stdout) *Engine {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Engine{client: client, templater: templater, httpClient: httpClient, stdout: stdout}
}

// Run drives job's durable log-stream loop until ctx is canceled or the
// stream's reconnect budget is exhausted, in which case the last stream
// error is returned to the caller's job supervisor.
func (e *Engine) Run(ctx context.Context, job Job) error {
	filter := rpc.Filter{
		Topics: []abi.Topic{{Hashes: signaturesOf(job.Events)}},
		Origin: job.Origin,
	}

	lastSeen := (*big.Int)(nil)
	var failCount int
	var windowStart time.Time

	for {
		start := job.Start
		if lastSeen != nil {
			start = new(big.Int).Add(lastSeen, big.NewInt(1))
		}

		logsCh, errCh := e.client.LogStream(ctx, start, job.Poll, filter, job.Lag)
		streamErr := e.drain(ctx, logsCh, errCh, job, &lastSeen)
		if streamErr == nil {
			return nil // ctx canceled cleanly
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := time.Now()
		if windowStart.IsZero() || now.Sub(windowStart) > reconnectWindow {
			windowStart = now
			failCount = 0
		}
		failCount++
		if failCount > reconnectMaxFailures {
			return fmt.Errorf("callback: log stream exhausted reconnect budget: %w", streamErr)
		}
		log.Warnw("callback log stream failed, reconnecting", "job", job.ID.String(), "error", streamErr.Error(), "attempt", failCount)

		delay := reconnectBackoffUnit * time.Duration(failCount)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// drain consumes logsCh until it closes (ctx canceled) or errCh fires,
// dispatching every log concurrently and tracking the last block fully
// received so a reconnect resumes from lastSeen+1.
func (e *Engine) drain(ctx context.Context, logsCh <-chan node.LogBatch, errCh <-chan error, job Job, lastSeen **big.Int) error {
	for {
		select {
		case batch, ok := <-logsCh:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
					return nil
				}
			}
			*lastSeen = batch.Block
			for i := range batch.Logs {
				l := batch.Logs[i]
				go e.handleLog(job.ID, job.Endpoint, l)
			}
		case err := <-errCh:
			return err
		}
	}
}

// handleLog renders one log through the templater and dispatches the
// result. It runs as its own goroutine per log, so a slow or failing
// callback never blocks the log stream from advancing.
func (e *Engine) handleLog(jobID uuid.UUID, endpoint Endpoint, l rpc.Log) {
	rendered, err := e.templater.TemplateLog(l)
	if err != nil {
		log.Warnw("callback: failed to render log", "job", jobID.String(), "error", err.Error())
		return
	}
	if err := e.dispatch(jobID, endpoint, rendered); err != nil {
		log.Warnw("callback: dispatch failed", "job", jobID.String(), "error", err.Error())
	}
}

func (e *Engine) dispatch(jobID uuid.UUID, endpoint Endpoint, body string) error {
	switch endpoint.Kind {
	case EndpointStdout:
		e.stdout.PushLine(body)
		return nil
	default:
		return e.dispatchHTTP(jobID, endpoint.URI, body)
	}
}

func (e *Engine) dispatchHTTP(jobID uuid.UUID, uri, body string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader([]byte(body)))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Callback-Job", jobID.String())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send callback request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-success status code %d from %s", resp.StatusCode, uri)
	}
	return nil
}

func signaturesOf(events []abi.Event) []common.Hash {
	out := make([]common.Hash, len(events))
	for i, e := range events {
		out[i] = e.Signature()
	}
	return out
}
