package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/partsdesk/api/internal/domain"
	pstorage "github.com/partsdesk/api/internal/platform/storage"
)

type stubReceiptService struct {
	getFn    func(ctx context.Context, receiptID string) (PurchaseReceipt, error)
	attachFn func(ctx context.Context, cmd AttachDocumentCommand) (PurchaseReceipt, error)
}

func (s *stubReceiptService) CreateDraft(context.Context, CreateReceiptCommand) (PurchaseReceipt, error) {
	return PurchaseReceipt{}, errors.New("not implemented")
}

func (s *stubReceiptService) GetReceipt(ctx context.Context, receiptID string) (PurchaseReceipt, error) {
	if s.getFn != nil {
		return s.getFn(ctx, receiptID)
	}
	return PurchaseReceipt{ID: receiptID}, nil
}

func (s *stubReceiptService) ListReceipts(context.Context, ReceiptListFilter) (domain.CursorPage[PurchaseReceipt], error) {
	return domain.CursorPage[PurchaseReceipt]{}, errors.New("not implemented")
}

func (s *stubReceiptService) UpdateDraft(context.Context, UpdateDraftReceiptCommand) (PurchaseReceipt, error) {
	return PurchaseReceipt{}, errors.New("not implemented")
}

func (s *stubReceiptService) Approve(context.Context, TransitionReceiptCommand) (PurchaseReceipt, error) {
	return PurchaseReceipt{}, errors.New("not implemented")
}

func (s *stubReceiptService) Send(context.Context, TransitionReceiptCommand) (PurchaseReceipt, error) {
	return PurchaseReceipt{}, errors.New("not implemented")
}

func (s *stubReceiptService) Receive(context.Context, ReceiveReceiptCommand) (PurchaseReceipt, error) {
	return PurchaseReceipt{}, errors.New("not implemented")
}

func (s *stubReceiptService) Complete(context.Context, TransitionReceiptCommand) (PurchaseReceipt, error) {
	return PurchaseReceipt{}, errors.New("not implemented")
}

func (s *stubReceiptService) Cancel(context.Context, TransitionReceiptCommand) (PurchaseReceipt, error) {
	return PurchaseReceipt{}, errors.New("not implemented")
}

func (s *stubReceiptService) Delete(context.Context, TransitionReceiptCommand) error {
	return errors.New("not implemented")
}

func (s *stubReceiptService) RecordShipNotice(context.Context, ShipNoticeCommand) (PurchaseReceipt, error) {
	return PurchaseReceipt{}, errors.New("not implemented")
}

func (s *stubReceiptService) AttachDocument(ctx context.Context, cmd AttachDocumentCommand) (PurchaseReceipt, error) {
	if s.attachFn != nil {
		return s.attachFn(ctx, cmd)
	}
	return PurchaseReceipt{ID: cmd.ReceiptID}, nil
}

type attachmentTestSigner struct{}

func (attachmentTestSigner) Email() string { return "signer@example.com" }

func (attachmentTestSigner) SignBytes(context.Context, []byte) ([]byte, error) {
	return []byte("signature"), nil
}

func newAttachmentServiceForTest(t *testing.T, receipts ReceiptService) AttachmentService {
	t.Helper()

	client, err := pstorage.NewClient(attachmentTestSigner{})
	if err != nil {
		t.Fatalf("new storage client: %v", err)
	}

	svc, err := NewAttachmentService(AttachmentServiceDeps{
		Receipts: receipts,
		Storage:  client,
		Bucket:   "partsdesk-docs",
		Clock: func() time.Time {
			return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
		},
		IDGenerator: func() string { return "01ATTACH" },
	})
	if err != nil {
		t.Fatalf("new attachment service: %v", err)
	}
	return svc
}

func TestAttachmentServiceIssueSignedUploadSignsPut(t *testing.T) {
	var requested string
	receipts := &stubReceiptService{
		getFn: func(_ context.Context, receiptID string) (PurchaseReceipt, error) {
			requested = receiptID
			return PurchaseReceipt{ID: receiptID}, nil
		},
	}
	svc := newAttachmentServiceForTest(t, receipts)

	asset, err := svc.IssueSignedUpload(context.Background(), SignAttachmentUploadCommand{
		ReceiptID:   "rcpt_1",
		Kind:        "invoice",
		FileName:    "invoice.pdf",
		ContentType: "application/pdf",
		SizeBytes:   1024,
		ActorID:     "usr_1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requested != "rcpt_1" {
		t.Fatalf("expected receipt lookup for rcpt_1, got %q", requested)
	}
	if asset.Method != "PUT" {
		t.Fatalf("expected PUT method, got %q", asset.Method)
	}
	if asset.StoragePath != "receipts/rcpt_1/docs/up_01ATTACH/invoice.pdf" {
		t.Fatalf("unexpected storage path %q", asset.StoragePath)
	}
	if asset.URL == "" {
		t.Fatalf("expected signed URL to be populated")
	}
	if asset.ExpiresAt.IsZero() {
		t.Fatalf("expected expiry to be populated")
	}
}

func TestAttachmentServiceIssueSignedUploadValidation(t *testing.T) {
	svc := newAttachmentServiceForTest(t, &stubReceiptService{})

	cases := map[string]SignAttachmentUploadCommand{
		"missing actor": {
			ReceiptID: "rcpt_1", Kind: "invoice", ContentType: "application/pdf", SizeBytes: 10,
		},
		"missing receipt": {
			Kind: "invoice", ContentType: "application/pdf", SizeBytes: 10, ActorID: "usr_1",
		},
		"unknown kind": {
			ReceiptID: "rcpt_1", Kind: "spreadsheet", ContentType: "application/pdf", SizeBytes: 10, ActorID: "usr_1",
		},
		"wrong content type": {
			ReceiptID: "rcpt_1", Kind: "invoice", ContentType: "image/png", SizeBytes: 10, ActorID: "usr_1",
		},
		"oversized": {
			ReceiptID: "rcpt_1", Kind: "photo", ContentType: "image/png", SizeBytes: maxPhotoAttachmentSize + 1, ActorID: "usr_1",
		},
	}

	for name, cmd := range cases {
		if _, err := svc.IssueSignedUpload(context.Background(), cmd); !errors.Is(err, ErrAttachmentInvalidInput) {
			t.Fatalf("%s: expected invalid input error, got %v", name, err)
		}
	}
}

func TestAttachmentServiceIssueSignedUploadReceiptNotFound(t *testing.T) {
	receipts := &stubReceiptService{
		getFn: func(context.Context, string) (PurchaseReceipt, error) {
			return PurchaseReceipt{}, ErrReceiptNotFound
		},
	}
	svc := newAttachmentServiceForTest(t, receipts)

	_, err := svc.IssueSignedUpload(context.Background(), SignAttachmentUploadCommand{
		ReceiptID:   "rcpt_missing",
		Kind:        "invoice",
		ContentType: "application/pdf",
		SizeBytes:   10,
		ActorID:     "usr_1",
	})
	if !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("expected receipt not found, got %v", err)
	}
}

func TestAttachmentServiceIssueSignedDownload(t *testing.T) {
	receipts := &stubReceiptService{
		getFn: func(_ context.Context, receiptID string) (PurchaseReceipt, error) {
			return PurchaseReceipt{
				ID: receiptID,
				Attachments: []ReceiptAttachment{{
					ID:          "att_1",
					Kind:        "invoice",
					StoragePath: "receipts/rcpt_1/docs/up_x/invoice.pdf",
					ContentType: "application/pdf",
				}},
			}, nil
		},
	}
	svc := newAttachmentServiceForTest(t, receipts)

	asset, err := svc.IssueSignedDownload(context.Background(), SignAttachmentDownloadCommand{
		ReceiptID:    "rcpt_1",
		AttachmentID: "att_1",
		ActorID:      "usr_1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.Method != "GET" {
		t.Fatalf("expected GET method, got %q", asset.Method)
	}
	if asset.StoragePath != "receipts/rcpt_1/docs/up_x/invoice.pdf" {
		t.Fatalf("unexpected storage path %q", asset.StoragePath)
	}
	if !strings.Contains(asset.URL, "invoice.pdf") {
		t.Fatalf("expected object path in signed URL, got %q", asset.URL)
	}
}

func TestAttachmentServiceIssueSignedDownloadUnknownAttachment(t *testing.T) {
	receipts := &stubReceiptService{
		getFn: func(_ context.Context, receiptID string) (PurchaseReceipt, error) {
			return PurchaseReceipt{ID: receiptID}, nil
		},
	}
	svc := newAttachmentServiceForTest(t, receipts)

	_, err := svc.IssueSignedDownload(context.Background(), SignAttachmentDownloadCommand{
		ReceiptID:    "rcpt_1",
		AttachmentID: "att_missing",
		ActorID:      "usr_1",
	})
	if !errors.Is(err, ErrAttachmentNotFound) {
		t.Fatalf("expected attachment not found, got %v", err)
	}
}

func TestAttachmentServiceConfirmUploadDelegates(t *testing.T) {
	var captured AttachDocumentCommand
	receipts := &stubReceiptService{
		attachFn: func(_ context.Context, cmd AttachDocumentCommand) (PurchaseReceipt, error) {
			captured = cmd
			return PurchaseReceipt{ID: cmd.ReceiptID}, nil
		},
	}
	svc := newAttachmentServiceForTest(t, receipts)

	receipt, err := svc.ConfirmUpload(context.Background(), ConfirmAttachmentUploadCommand{
		ReceiptID:   "rcpt_1",
		Kind:        "Invoice",
		StoragePath: "receipts/rcpt_1/docs/up_01ATTACH/invoice.pdf",
		ContentType: "application/PDF",
		ActorID:     "usr_1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ID != "rcpt_1" {
		t.Fatalf("unexpected receipt id %q", receipt.ID)
	}
	if captured.Kind != "invoice" {
		t.Fatalf("expected normalised kind, got %q", captured.Kind)
	}
	if captured.ContentType != "application/pdf" {
		t.Fatalf("expected normalised content type, got %q", captured.ContentType)
	}
}

func TestAttachmentServiceConfirmUploadRejectsForeignPath(t *testing.T) {
	svc := newAttachmentServiceForTest(t, &stubReceiptService{})

	_, err := svc.ConfirmUpload(context.Background(), ConfirmAttachmentUploadCommand{
		ReceiptID:   "rcpt_1",
		Kind:        "invoice",
		StoragePath: "receipts/rcpt_other/docs/up_1/invoice.pdf",
		ContentType: "application/pdf",
		ActorID:     "usr_1",
	})
	if !errors.Is(err, ErrAttachmentInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}
