package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrInvalidInput indicates controller misuse, such as staging a payload for
// an action that takes none.
var ErrInvalidInput = errors.New("lifecycle: invalid input")

// TransitionRequest is the single staged action a controller holds. There is
// never more than one, and "no pending action" is the absence of the value,
// not a row of independent flags.
type TransitionRequest struct {
	Receipt   ReceiptRef
	Kind      Kind
	Confirmed bool
	InFlight  bool
	Payload   *ReceivePayload
	Attempts  int
	LastError string
}

// Controller serializes confirmed transitions for one purchase receipt.
//
// The flow is Request, then Confirm. Request validates legality against the
// transition table and stages the action; Confirm issues the remote call
// through a Gate. While the call is outstanding every other entry point
// answers ErrTransitionInFlight and performs nothing. On success the staged
// request is cleared and the refresh token increments exactly once; on
// failure only the in-flight mark is cleared so the operator can retry or
// abandon, and the receipt snapshot is never updated optimistically.
type Controller struct {
	client    TransitionClient
	gate      Gate
	onRefresh func(uint64)

	mu      sync.Mutex
	pending *TransitionRequest
	token   atomic.Uint64
}

// Option customises controller construction.
type Option func(*Controller)

// WithRefreshListener registers a callback invoked with the new refresh token
// after every applied transition. The callback runs outside the controller
// lock.
func WithRefreshListener(fn func(token uint64)) Option {
	return func(c *Controller) {
		c.onRefresh = fn
	}
}

// NewController builds a controller bound to the given ordering backend.
func NewController(client TransitionClient, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, fmt.Errorf("lifecycle: transition client is required")
	}
	return newController(client, opts...), nil
}

func newController(client TransitionClient, opts ...Option) *Controller {
	c := &Controller{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Request stages kind for the given receipt. It fails with
// ErrIllegalTransition when kind is not reachable from the receipt's status
// and with ErrTransitionInFlight while a remote call is outstanding; in both
// cases nothing changes and no remote call is made. A previously staged
// request that is not in flight is replaced wholesale.
func (c *Controller) Request(receipt ReceiptRef, kind Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil && c.pending.InFlight {
		return ErrTransitionInFlight
	}
	if !LegalKind(receipt.Status, kind) {
		return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, kind, receipt.Status)
	}
	c.pending = &TransitionRequest{Receipt: receipt, Kind: kind}
	return nil
}

// SetPayload stages the receive payload on the pending request. Only a
// receive action accepts one.
func (c *Controller) SetPayload(payload ReceivePayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return ErrNoPendingTransition
	}
	if c.pending.InFlight {
		return ErrTransitionInFlight
	}
	if c.pending.Kind != KindReceive {
		return fmt.Errorf("%w: payload applies to receive only", ErrInvalidInput)
	}
	staged := clonePayload(payload)
	c.pending.Payload = &staged
	return nil
}

// Confirm issues the staged transition's remote call exactly once. A second
// Confirm arriving while the call is outstanding observes
// ErrTransitionInFlight and triggers nothing. A receive without its payload
// fails with ErrMissingPayload before any call. After a failed call the
// request stays staged with Confirmed set, so Confirm may be called again to
// retry.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return ErrNoPendingTransition
	}
	if c.pending.InFlight {
		c.mu.Unlock()
		return ErrTransitionInFlight
	}
	if c.pending.Kind == KindReceive && (c.pending.Payload == nil || !c.pending.Payload.Valid()) {
		c.mu.Unlock()
		return fmt.Errorf("%w: received date and quality check", ErrMissingPayload)
	}
	c.pending.Confirmed = true
	c.pending.InFlight = true
	req := snapshotRequest(c.pending)
	c.mu.Unlock()

	err := c.gate.Do(ctx, func(ctx context.Context) error {
		return c.dispatch(ctx, req)
	})
	if err != nil {
		failure := classifyRemote(err, req)
		c.mu.Lock()
		if c.pending != nil {
			c.pending.InFlight = false
			c.pending.Attempts++
			c.pending.LastError = failure.Error()
		}
		c.mu.Unlock()
		return failure
	}

	c.mu.Lock()
	c.pending = nil
	token := c.token.Add(1)
	c.mu.Unlock()
	if c.onRefresh != nil {
		c.onRefresh(token)
	}
	return nil
}

// Abandon clears the staged request without a remote call. It is legal while
// the request is unconfirmed, or after a confirmed attempt has settled with
// failure; never while the call is outstanding.
func (c *Controller) Abandon() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return ErrNoPendingTransition
	}
	if c.pending.InFlight {
		return ErrTransitionInFlight
	}
	c.pending = nil
	return nil
}

// Pending returns a snapshot of the staged request, if any.
func (c *Controller) Pending() (TransitionRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return TransitionRequest{}, false
	}
	return snapshotRequest(c.pending), true
}

// Token returns the current refresh token. It increments exactly once per
// applied transition and never decreases.
func (c *Controller) Token() uint64 {
	return c.token.Load()
}

func (c *Controller) dispatch(ctx context.Context, req TransitionRequest) error {
	id := req.Receipt.ID
	switch req.Kind {
	case KindApprove:
		return c.client.Approve(ctx, id)
	case KindSend:
		return c.client.Send(ctx, id)
	case KindReceive:
		return c.client.Receive(ctx, id, *req.Payload)
	case KindComplete:
		return c.client.Complete(ctx, id)
	case KindCancel:
		return c.client.Cancel(ctx, id)
	case KindDelete:
		return c.client.Delete(ctx, id)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, req.Kind)
	}
}

func classifyRemote(err error, req TransitionRequest) error {
	if errors.Is(err, ErrRemoteFailure) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %v", ErrRemoteFailure, req.Kind, req.Receipt.ID, err)
}

func snapshotRequest(req *TransitionRequest) TransitionRequest {
	out := *req
	if req.Payload != nil {
		payload := clonePayload(*req.Payload)
		out.Payload = &payload
	}
	return out
}

func clonePayload(payload ReceivePayload) ReceivePayload {
	out := payload
	if payload.QualityCheck != nil {
		check := *payload.QualityCheck
		out.QualityCheck = &check
	}
	if len(payload.Lines) > 0 {
		out.Lines = make([]ReceivedLine, len(payload.Lines))
		copy(out.Lines, payload.Lines)
	}
	return out
}
