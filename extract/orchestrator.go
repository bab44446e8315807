package extract

import (
	"context"
	"errors"
	"time"

	"github.com/warp/exit-engine/logger"
)

// DefaultTimeout bounds one extraction call, retries included.
const DefaultTimeout = 30 * time.Second

// Orchestrator turns raw request text into a Candidate using a Service.
// All recovery of the service output (fences, brace scanning, comma
// repair, placeholder detection) happens here, so any Service
// implementation only has to move text.
type Orchestrator struct {
	Service  Service
	Timeout  time.Duration
	Location *time.Location
}

// NewOrchestrator creates an Orchestrator. A zero timeout means DefaultTimeout.
func NewOrchestrator(svc Service, timeout time.Duration, loc *time.Location) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Orchestrator{Service: svc, Timeout: timeout, Location: loc}
}

// Extract builds the instruction for text anchored at now, invokes the
// service under the timeout and recovers the candidate object.
//
// Errors:
//   - *ExtractionUnavailableError: the service failed or timed out
//   - *ExtractionFormatError: no usable JSON object in the response
//   - *PlaceholderValueError: a date field came back as "..."
func (o *Orchestrator) Extract(ctx context.Context, text string, now time.Time) (*Candidate, error) {
	instruction := BuildInstruction(text, now, o.Location)

	callCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	raw, err := o.Service.Extract(callCtx, instruction)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return nil, &ExtractionUnavailableError{Service: o.Service.Name(), TimedOut: timedOut, Cause: err}
	}

	c, err := ParseResponse(raw)
	if err != nil {
		var fe *ExtractionFormatError
		if errors.As(err, &fe) {
			logger.Debug("unrecoverable extraction response", "service", o.Service.Name(), "reason", fe.Reason, "raw", fe.Raw)
		}
		return nil, err
	}

	if c.LeaveDatetime == Placeholder {
		return c, &PlaceholderValueError{Field: "leave_datetime"}
	}
	if c.ReturnDatetime == Placeholder {
		return c, &PlaceholderValueError{Field: "return_datetime"}
	}

	return c, nil
}
