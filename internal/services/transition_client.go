package services

import (
	"context"
	"errors"
	"strings"

	"github.com/partsdesk/api/internal/lifecycle"
)

// receiptTransitionClient adapts the authoritative receipt service to the
// lifecycle package's TransitionClient so desk controllers stay decoupled
// from command shapes.
type receiptTransitionClient struct {
	receipts ReceiptService
	actorID  func(ctx context.Context) string
}

// TransitionClientOption customises the adapter.
type TransitionClientOption func(*receiptTransitionClient)

// WithTransitionActorResolver supplies the actor id recorded on transitions
// issued through the desk, typically read from the request identity.
func WithTransitionActorResolver(resolve func(ctx context.Context) string) TransitionClientOption {
	return func(c *receiptTransitionClient) {
		if resolve != nil {
			c.actorID = resolve
		}
	}
}

// NewReceiptTransitionClient builds a lifecycle.TransitionClient backed by
// the receipt service.
func NewReceiptTransitionClient(receipts ReceiptService, opts ...TransitionClientOption) (lifecycle.TransitionClient, error) {
	if receipts == nil {
		return nil, errors.New("transition client: receipt service is required")
	}
	client := &receiptTransitionClient{
		receipts: receipts,
		actorID:  func(context.Context) string { return "" },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func (c *receiptTransitionClient) Approve(ctx context.Context, receiptID string) error {
	_, err := c.receipts.Approve(ctx, c.command(ctx, receiptID))
	return err
}

func (c *receiptTransitionClient) Send(ctx context.Context, receiptID string) error {
	_, err := c.receipts.Send(ctx, c.command(ctx, receiptID))
	return err
}

func (c *receiptTransitionClient) Receive(ctx context.Context, receiptID string, payload lifecycle.ReceivePayload) error {
	cmd := ReceiveReceiptCommand{
		ReceiptID:    strings.TrimSpace(receiptID),
		ReceivedDate: payload.ReceivedDate,
		QualityCheck: payload.QualityCheck,
		ActorID:      c.actorID(ctx),
	}
	for _, line := range payload.Lines {
		cmd.Lines = append(cmd.Lines, ReceivedLineInput{
			LineID:      line.LineID,
			ReceivedQty: line.ReceivedQty,
		})
	}
	_, err := c.receipts.Receive(ctx, cmd)
	return err
}

func (c *receiptTransitionClient) Complete(ctx context.Context, receiptID string) error {
	_, err := c.receipts.Complete(ctx, c.command(ctx, receiptID))
	return err
}

func (c *receiptTransitionClient) Cancel(ctx context.Context, receiptID string) error {
	_, err := c.receipts.Cancel(ctx, c.command(ctx, receiptID))
	return err
}

func (c *receiptTransitionClient) Delete(ctx context.Context, receiptID string) error {
	return c.receipts.Delete(ctx, c.command(ctx, receiptID))
}

func (c *receiptTransitionClient) command(ctx context.Context, receiptID string) TransitionReceiptCommand {
	return TransitionReceiptCommand{
		ReceiptID: strings.TrimSpace(receiptID),
		ActorID:   c.actorID(ctx),
	}
}
