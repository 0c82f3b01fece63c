package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/services"
)

func newPubSubTopicForTest(t *testing.T, topicID string) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() {
		_ = srv.Close()
	})

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	topic, err := client.CreateTopic(ctx, topicID)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return topic, srv
}

func TestPubSubReceiptEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	topic, srv := newPubSubTopicForTest(t, "receipt-events")

	publisher, err := NewPubSubReceiptEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubReceiptEventPublisher: %v", err)
	}

	event := services.ReceiptEvent{
		Type:           "receipt.approved",
		ReceiptID:      "rcpt_1",
		ReceiptNumber:  "PR-2025-000007",
		PreviousStatus: domain.ReceiptStatusDraft,
		CurrentStatus:  domain.ReceiptStatusApproved,
		ActorID:        "usr_1",
		OccurredAt:     time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	if err := publisher.PublishReceiptEvent(ctx, event); err != nil {
		t.Fatalf("PublishReceiptEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.ReceiptEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ReceiptID != event.ReceiptID || payload.Type != event.Type {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["receiptNumber"]; attr != "PR-2025-000007" {
		t.Fatalf("expected receipt number attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["status"]; attr != string(domain.ReceiptStatusApproved) {
		t.Fatalf("expected status attribute, got %q", attr)
	}
}

func TestPubSubStockEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	topic, srv := newPubSubTopicForTest(t, "stock-events")

	publisher, err := NewPubSubStockEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubStockEventPublisher: %v", err)
	}

	event := services.StockEvent{
		ID:         "stk_1",
		Type:       domain.StockEventSold,
		PartRef:    "/parts/prt_brake_pad",
		SKU:        "BRK-001",
		Delta:      -2,
		OnHand:     3,
		SourceRef:  "sal_1",
		Actor:      "usr_1",
		OccurredAt: time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	if err := publisher.PublishStockEvent(ctx, event); err != nil {
		t.Fatalf("PublishStockEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.StockEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ID != event.ID || payload.Delta != event.Delta {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["eventType"]; attr != "sold" {
		t.Fatalf("expected event type attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["partRef"]; attr != "/parts/prt_brake_pad" {
		t.Fatalf("expected part ref attribute, got %q", attr)
	}
}
