package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/services"
)

func newWebhookRouter(receipts services.ReceiptService) chi.Router {
	handler := NewWebhookHandlers(receipts)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)
	return router
}

func TestWebhookHandlersShipNoticeSuccess(t *testing.T) {
	shipped := time.Date(2025, 5, 12, 8, 30, 0, 0, time.UTC)
	reported := time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
	var captured services.ShipNoticeCommand

	receipts := &stubReceiptService{
		shipNoticeFn: func(ctx context.Context, cmd services.ShipNoticeCommand) (services.PurchaseReceipt, error) {
			captured = cmd
			return services.PurchaseReceipt{
				ID:     cmd.ReceiptID,
				Status: domain.ReceiptStatusSent,
				ShipNotice: &domain.ShipNotice{
					Carrier:    cmd.Carrier,
					TrackingNo: cmd.TrackingNo,
					ShippedAt:  shipped,
					ReportedAt: reported,
				},
			}, nil
		},
	}

	body := `{"receipt_id":"rcpt_001","carrier":"DHL","tracking_no":"JD014600003","shipped_at":"2025-05-12T08:30:00Z"}`
	router := newWebhookRouter(receipts)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/suppliers/ship-notice", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.ReceiptID != "rcpt_001" || captured.Carrier != "DHL" || captured.TrackingNo != "JD014600003" {
		t.Fatalf("unexpected command %#v", captured)
	}
	if !captured.ShippedAt.Equal(shipped) {
		t.Fatalf("expected shipped at %v, got %v", shipped, captured.ShippedAt)
	}

	var resp shipNoticeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ReceiptID != "rcpt_001" || resp.Status != "sent" {
		t.Fatalf("unexpected response %#v", resp)
	}
	if resp.ShipNotice == nil || resp.ShipNotice.Carrier != "DHL" {
		t.Fatalf("expected ship notice payload, got %#v", resp.ShipNotice)
	}
}

func TestWebhookHandlersShipNoticeOmitsShippedAt(t *testing.T) {
	receipts := &stubReceiptService{
		shipNoticeFn: func(ctx context.Context, cmd services.ShipNoticeCommand) (services.PurchaseReceipt, error) {
			if !cmd.ShippedAt.IsZero() {
				t.Fatalf("expected zero shipped at, got %v", cmd.ShippedAt)
			}
			return services.PurchaseReceipt{ID: cmd.ReceiptID, Status: domain.ReceiptStatusSent}, nil
		},
	}

	router := newWebhookRouter(receipts)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/suppliers/ship-notice", strings.NewReader(`{"receipt_id":"rcpt_001","carrier":"UPS"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestWebhookHandlersShipNoticeMissingReceiptID(t *testing.T) {
	called := false
	receipts := &stubReceiptService{
		shipNoticeFn: func(ctx context.Context, cmd services.ShipNoticeCommand) (services.PurchaseReceipt, error) {
			called = true
			return services.PurchaseReceipt{}, nil
		},
	}

	router := newWebhookRouter(receipts)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/suppliers/ship-notice", strings.NewReader(`{"carrier":"DHL"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if called {
		t.Fatalf("expected service not to be called")
	}
}

func TestWebhookHandlersShipNoticeInvalidTimestamp(t *testing.T) {
	router := newWebhookRouter(&stubReceiptService{})
	req := httptest.NewRequest(http.MethodPost, "/webhooks/suppliers/ship-notice", strings.NewReader(`{"receipt_id":"rcpt_001","shipped_at":"yesterday"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestWebhookHandlersShipNoticeInvalidState(t *testing.T) {
	receipts := &stubReceiptService{
		shipNoticeFn: func(ctx context.Context, cmd services.ShipNoticeCommand) (services.PurchaseReceipt, error) {
			return services.PurchaseReceipt{}, services.ErrReceiptInvalidState
		},
	}

	router := newWebhookRouter(receipts)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/suppliers/ship-notice", strings.NewReader(`{"receipt_id":"rcpt_001","carrier":"DHL"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestWebhookHandlersShipNoticeServiceUnavailable(t *testing.T) {
	router := newWebhookRouter(nil)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/suppliers/ship-notice", strings.NewReader(`{"receipt_id":"rcpt_001"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
