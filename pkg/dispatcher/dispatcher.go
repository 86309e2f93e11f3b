package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/morezero/channel-gateway/pkg/envelope"
	"github.com/morezero/channel-gateway/pkg/events"
	"github.com/morezero/channel-gateway/pkg/provider"
	"github.com/morezero/channel-gateway/pkg/registry"
	"github.com/morezero/channel-gateway/pkg/request"
	"github.com/morezero/channel-gateway/pkg/types"
)

const logPrefix = "dispatcher:dispatch"

// Recorder receives per-request measurements.
type Recorder interface {
	ObserveRequest(op, outcome string, d time.Duration)
	ObserveLockWait(d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRequest(string, string, time.Duration) {}
func (noopRecorder) ObserveLockWait(time.Duration)                {}

// Dispatcher runs the resolve, negotiate, validate, canonicalize and native
// call sequence. A single process-wide lock covers the whole sequence
// because the native layer is not safe for concurrent use, across channels
// as well as within one.
type Dispatcher struct {
	registry  *registry.Registry
	provider  provider.Provider
	publisher events.EventPublisher
	recorder  Recorder

	mu sync.Mutex
}

// NewDispatcherParams holds parameters for NewDispatcher.
type NewDispatcherParams struct {
	Registry  *registry.Registry
	Provider  provider.Provider
	Publisher events.EventPublisher
	Recorder  Recorder
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	var rec Recorder = noopRecorder{}
	if params.Recorder != nil {
		rec = params.Recorder
	}
	return &Dispatcher{
		registry:  params.Registry,
		provider:  params.Provider,
		publisher: pub,
		recorder:  rec,
	}
}

// DispatchBytes decodes a JSON envelope and dispatches it.
func (d *Dispatcher) DispatchBytes(ctx context.Context, data []byte) *Response {
	var env request.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.recorder.ObserveRequest("unknown", outcome(KindMalformedRequest), 0)
		return ErrorResponse("", newError(KindMalformedRequest, nil, "invalid request envelope: %v", err))
	}
	return d.Dispatch(ctx, &env)
}

// Dispatch parses an envelope, executes it and wraps the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, env *request.Envelope) *Response {
	start := time.Now()

	req, err := request.Parse(env)
	if err != nil {
		id := ""
		if env != nil {
			id = env.ID
		}
		e := AsError(err, KindMalformedRequest)
		d.recorder.ObserveRequest("unknown", outcome(e.Kind), time.Since(start))
		slog.Warn(fmt.Sprintf("%s - id=%s %v", logPrefix, id, e))
		return ErrorResponse(id, e)
	}

	op := "get"
	if IsSetRequest(req.Arguments) {
		op = "set"
	}

	resp, eff, err := d.Execute(ctx, req)
	if err != nil {
		e := AsError(err, KindInternal)
		d.recorder.ObserveRequest(op, outcome(e.Kind), time.Since(start))
		if e.Kind.IsClientError() {
			slog.Warn(fmt.Sprintf("%s - id=%s channel=%s %v", logPrefix, req.ID, req.Channel, e))
		} else {
			slog.Error(fmt.Sprintf("%s - id=%s channel=%s %v", logPrefix, req.ID, req.Channel, e))
		}
		return ErrorResponse(req.ID, e)
	}
	d.recorder.ObserveRequest(op, "ok", time.Since(start))

	if eff.IsSet {
		d.publishSet(ctx, eff)
	}
	return &Response{ID: req.ID, Ok: true, Result: resp}
}

// Execute runs one parsed request under the global lock. The lock is not
// context-aware: a waiting caller blocks until it is acquired.
func (d *Dispatcher) Execute(ctx context.Context, req *request.Request) (*envelope.Response, *EffectiveRequest, error) {
	waitStart := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recorder.ObserveLockWait(time.Since(waitStart))

	getter, setter := d.registry.Resolve(req.Channel)

	eff, err := Negotiate(req, getter, setter)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateArguments(req.Arguments, eff.Config); err != nil {
		return nil, nil, err
	}
	eff.Channel = CanonicalName(req.Channel)

	verb := "GetValue"
	if eff.IsSet {
		verb = "SetValue"
	}
	slog.Info(fmt.Sprintf("%s - %s: %s%s => %s", logPrefix, verb, eff.Channel, formatArguments(eff.Arguments), eff.Type))

	resp, err := d.route(ctx, eff)
	if err != nil {
		return nil, eff, err
	}
	return resp, eff, nil
}

// route calls exactly one native entry point and shapes its result.
func (d *Dispatcher) route(ctx context.Context, eff *EffectiveRequest) (resp *envelope.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = newError(KindInternal, nil, "native %s on %s panicked: %v", eff.Op(), eff.Channel, r)
		}
	}()

	switch {
	case !eff.IsSet && eff.Type.IsScalar():
		raw, err := d.provider.GetScalar(ctx, eff.Channel, eff.Arguments, eff.Type)
		if err != nil {
			return nil, nativeFailure(eff, err)
		}
		return shaped(envelope.Scalar(eff.Type, raw))

	case !eff.IsSet && eff.Type.IsArray():
		raw, err := d.provider.GetArray(ctx, eff.Channel, eff.Arguments, eff.Type)
		if err != nil {
			return nil, nativeFailure(eff, err)
		}
		return shaped(envelope.Array(eff.Type, raw))

	case !eff.IsSet && eff.Type == types.Table:
		tbl, err := d.provider.GetTable(ctx, eff.Channel, eff.Arguments)
		if err != nil {
			return nil, nativeFailure(eff, err)
		}
		return shapeTable(eff, tbl)

	case eff.IsSet && eff.Type == types.Void:
		if err := d.provider.SetVoid(ctx, eff.Channel, eff.Arguments); err != nil {
			return nil, nativeFailure(eff, err)
		}
		return envelope.Void(), nil

	case eff.IsSet && eff.Type == types.Table:
		tbl, err := d.provider.SetTable(ctx, eff.Channel, eff.Arguments)
		if err != nil {
			return nil, nativeFailure(eff, err)
		}
		return shapeTable(eff, tbl)
	}

	// Negotiation should make this unreachable; a set with a scalar TYPE
	// against an ANY setter is one combination that still lands here.
	slog.Warn(fmt.Sprintf("%s - no operation for %s %s on %s, returning empty result", logPrefix, eff.Op(), eff.Type, eff.Channel))
	return envelope.Empty(), nil
}

func shapeTable(eff *EffectiveRequest, tbl *provider.Table) (*envelope.Response, error) {
	if tbl == nil {
		return nil, newError(KindInternal, nil, "native %s on %s returned no table", eff.Op(), eff.Channel)
	}
	return shaped(envelope.NewTable(eff.Config.Fields, tbl.Columns))
}

func shaped(resp *envelope.Response, err error) (*envelope.Response, error) {
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: err.Error(), cause: err}
	}
	return resp, nil
}

func nativeFailure(eff *EffectiveRequest, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Kind:    KindNativeOperationFailure,
		Message: fmt.Sprintf("%s %s failed: %v", eff.Op(), eff.Channel, err),
		cause:   err,
	}
}

func (d *Dispatcher) publishSet(ctx context.Context, eff *EffectiveRequest) {
	args := make(map[string]string, len(eff.Arguments))
	for _, a := range eff.Arguments {
		args[strings.ToUpper(a.Name)] = a.Value
	}
	event := &events.ChannelSetEvent{
		Channel:   eff.Channel,
		Type:      eff.Type,
		Arguments: args,
		RequestID: eff.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := d.publisher.PublishChannelSet(ctx, event); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish set event for %s: %v", logPrefix, eff.Channel, err))
	}
}

func formatArguments(args []request.Argument) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Name + "=" + a.Value
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func outcome(k Kind) string {
	return strings.ToLower(string(k))
}
