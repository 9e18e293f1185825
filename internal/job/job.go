// Package job wraps pipeline operations in the handler response contract.
package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"blsdata/internal/config"
	"blsdata/internal/ledger"
	"blsdata/internal/logger"
	"blsdata/internal/metrics"
	"blsdata/internal/retry"
)

// Handler status codes.
const (
	StatusOK    = 200
	StatusError = 500
)

// Event phases.
const (
	PhaseStarted  = "started"
	PhaseRetrying = "retrying"
	PhaseFinished = "finished"
)

// Func is one pipeline operation. It returns the success message.
type Func func(ctx context.Context) (string, error)

// Response is the JSON object every handler returns.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// OK reports whether the invocation succeeded.
func (r Response) OK() bool {
	return r.StatusCode == StatusOK
}

// Encode renders the response as JSON.
func (r Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Event describes the progress of an invocation.
type Event struct {
	Time         time.Time `json:"time"`
	InvocationID string    `json:"invocation_id"`
	Job          string    `json:"job"`
	Phase        string    `json:"phase"`
	Body         string    `json:"body,omitempty"`
	StatusCode   int       `json:"status_code,omitempty"`
	Attempt      int       `json:"attempt,omitempty"`
}

// Observer receives invocation events.
type Observer interface {
	Publish(event Event)
}

// Recorder persists finished invocations.
type Recorder interface {
	RecordRun(ctx context.Context, run *ledger.Run) error
}

type invocationKey struct{}

// WithInvocationID returns a context carrying id.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey{}, id)
}

// InvocationID returns the ID of the invocation running under ctx, or "".
func InvocationID(ctx context.Context) string {
	id, _ := ctx.Value(invocationKey{}).(string)

	return id
}

// Runner invokes jobs under the retry policy and the invocation deadline.
type Runner struct {
	logger    *logger.Logger
	recorder  Recorder
	now       func() time.Time
	newID     func() string
	observers []Observer
	policy    config.RetryPolicy
	mu        sync.RWMutex
}

// NewRunner creates a runner.
func NewRunner(policy config.RetryPolicy, log *logger.Logger) *Runner {
	return &Runner{
		logger: log,
		policy: policy,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SetRecorder stores finished runs in rec. Nil disables recording.
func (r *Runner) SetRecorder(rec Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recorder = rec
}

// Subscribe adds an observer.
func (r *Runner) Subscribe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers = append(r.observers, o)
}

// Invoke runs fn and maps its outcome to a Response. It never returns an
// error: failures become a 500 whose body is the error text.
func (r *Runner) Invoke(ctx context.Context, name string, fn Func) Response {
	id := r.newID()
	log := r.logger.With("job", name, "invocation_id", id)
	start := r.now()
	ctx = WithInvocationID(ctx, id)

	if timeout := r.policy.GetTimeout(); timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Info(fmt.Sprintf("Starting %s job", name))
	r.publish(Event{Time: start, InvocationID: id, Job: name, Phase: PhaseStarted})

	policy := retry.New(r.policy)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn(fmt.Sprintf("Attempt %d/%d failed, retrying in %v: %v", attempt, policy.MaxAttempts(), delay, err))
		r.publish(Event{Time: r.now(), InvocationID: id, Job: name, Phase: PhaseRetrying, Attempt: attempt, Body: err.Error()})
	}

	var message string

	err := policy.Attempt(ctx, func(ctx context.Context) error {
		msg, err := fn(ctx)
		if err != nil {
			return err
		}

		message = msg

		return nil
	})

	resp := Response{StatusCode: StatusOK, Body: message}
	if err != nil {
		log.Error(fmt.Sprintf("Job %s failed: %v", name, err))
		resp = Response{StatusCode: StatusError, Body: err.Error()}
	} else {
		log.Info(fmt.Sprintf("Job %s finished in %v: %s", name, r.now().Sub(start).Round(time.Millisecond), message))
	}

	metrics.ObserveJob(name, start, err)
	r.record(context.WithoutCancel(ctx), log, &ledger.Run{
		InvocationID: id,
		Job:          name,
		StartedAt:    start,
		FinishedAt:   r.now(),
		StatusCode:   resp.StatusCode,
		Message:      resp.Body,
	})
	r.publish(Event{Time: r.now(), InvocationID: id, Job: name, Phase: PhaseFinished, StatusCode: resp.StatusCode, Body: resp.Body})

	return resp
}

func (r *Runner) record(ctx context.Context, log *logger.Logger, run *ledger.Run) {
	r.mu.RLock()
	rec := r.recorder
	r.mu.RUnlock()

	if rec == nil {
		return
	}

	if err := rec.RecordRun(ctx, run); err != nil {
		log.Warn(fmt.Sprintf("Failed to record run: %v", err))
	}
}

func (r *Runner) publish(event Event) {
	r.mu.RLock()
	observers := append([]Observer(nil), r.observers...)
	r.mu.RUnlock()

	for _, o := range observers {
		o.Publish(event)
	}
}
