// Package lifecycle drives confirmed purchase-receipt transitions against the
// ordering backend. A Controller stages exactly one transition per receipt,
// requires an explicit confirmation before any remote call, serializes
// execution so duplicate confirmations cannot double-submit, and signals the
// list surface to re-fetch after every applied transition. Backend state is
// never patched locally; the authoritative status always comes from a
// re-fetch.
package lifecycle

import (
	"context"
	"errors"
	"slices"
	"time"

	domain "github.com/partsdesk/api/internal/domain"
)

var (
	// ErrIllegalTransition indicates the requested action is not reachable from
	// the receipt's current status. Rejected before any remote call.
	ErrIllegalTransition = errors.New("lifecycle: transition not legal from current status")
	// ErrTransitionInFlight indicates a remote call is outstanding for the
	// pending transition. Callers treat it as duplicate-click suppression.
	ErrTransitionInFlight = errors.New("lifecycle: transition already in flight")
	// ErrNoPendingTransition indicates confirm or abandon was called with
	// nothing staged.
	ErrNoPendingTransition = errors.New("lifecycle: no pending transition")
	// ErrMissingPayload indicates a receive confirmation lacked the required
	// received date or quality check flag.
	ErrMissingPayload = errors.New("lifecycle: receive payload required")
	// ErrRemoteFailure wraps any backend error or fault raised by the remote
	// call. The receipt snapshot is left untouched when it is returned.
	ErrRemoteFailure = errors.New("lifecycle: remote call failed")
	// ErrBusy is returned by Gate.Do when a mutation is already running.
	ErrBusy = errors.New("lifecycle: operation already running")
)

// Kind enumerates the operator actions that move a receipt through its
// lifecycle.
type Kind string

const (
	// KindApprove signs off a draft for ordering.
	KindApprove Kind = "approve"
	// KindSend dispatches an approved order to the supplier.
	KindSend Kind = "send"
	// KindReceive checks goods in against a sent order.
	KindReceive Kind = "receive"
	// KindComplete closes a received order after reconciliation.
	KindComplete Kind = "complete"
	// KindCancel abandons a receipt from any non-terminal status.
	KindCancel Kind = "cancel"
	// KindDelete discards a draft outright.
	KindDelete Kind = "delete"
)

// kindTargets maps each action to the status a successful call lands on.
var kindTargets = map[Kind]domain.ReceiptStatus{
	KindApprove:  domain.ReceiptStatusApproved,
	KindSend:     domain.ReceiptStatusSent,
	KindReceive:  domain.ReceiptStatusReceived,
	KindComplete: domain.ReceiptStatusCompleted,
	KindCancel:   domain.ReceiptStatusCanceled,
	KindDelete:   domain.ReceiptStatusDeleted,
}

// legalKinds lists the actions available from each lifecycle status. Statuses
// absent from the table are terminal.
var legalKinds = map[domain.ReceiptStatus][]Kind{
	domain.ReceiptStatusDraft:    {KindApprove, KindCancel, KindDelete},
	domain.ReceiptStatusApproved: {KindSend, KindCancel},
	domain.ReceiptStatusSent:     {KindReceive, KindCancel},
	domain.ReceiptStatusReceived: {KindComplete, KindCancel},
}

// LegalKind reports whether kind may be requested from the given status.
func LegalKind(status domain.ReceiptStatus, kind Kind) bool {
	kinds, ok := legalKinds[status]
	if !ok {
		return false
	}
	return slices.Contains(kinds, kind)
}

// LegalKinds returns the actions available from status, in table order.
func LegalKinds(status domain.ReceiptStatus) []Kind {
	kinds, ok := legalKinds[status]
	if !ok {
		return nil
	}
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Target returns the status a successful call for kind lands on.
func Target(kind Kind) (domain.ReceiptStatus, bool) {
	target, ok := kindTargets[kind]
	return target, ok
}

// ParseKind validates a wire-format action name.
func ParseKind(raw string) (Kind, bool) {
	kind := Kind(raw)
	_, ok := kindTargets[kind]
	return kind, ok
}

// ReceiptRef is the controller's advisory snapshot of the receipt being acted
// on. The backend copy is authoritative at all times.
type ReceiptRef struct {
	ID            string
	ReceiptNumber string
	Status        domain.ReceiptStatus
}

// ReceivedLine reconciles the quantity checked in for one receipt line.
type ReceivedLine struct {
	LineID      string
	ReceivedQty int64
}

// ReceivePayload carries the data a receive confirmation must include.
type ReceivePayload struct {
	ReceivedDate time.Time
	QualityCheck *bool
	Lines        []ReceivedLine
}

// Valid reports whether the minimum receive fields are present.
func (p ReceivePayload) Valid() bool {
	return !p.ReceivedDate.IsZero() && p.QualityCheck != nil
}

// TransitionClient is the ordering backend consumed by controllers. Every
// operation applies one transition and returns only after the backend has
// acknowledged or rejected it.
type TransitionClient interface {
	Approve(ctx context.Context, receiptID string) error
	Send(ctx context.Context, receiptID string) error
	Receive(ctx context.Context, receiptID string, payload ReceivePayload) error
	Complete(ctx context.Context, receiptID string) error
	Cancel(ctx context.Context, receiptID string) error
	Delete(ctx context.Context, receiptID string) error
}
