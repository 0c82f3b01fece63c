package storage

import "testing"

func TestBuildReceiptDocumentPath(t *testing.T) {
	path, err := BuildObjectPath(PurposeReceiptDocument, PathParams{
		ReceiptID: "rcpt123",
		UploadID:  "upload789",
		FileName:  "invoice.pdf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "receipts/rcpt123/docs/upload789/invoice.pdf"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildSaleReceiptPathUsesSaleNumber(t *testing.T) {
	path, err := BuildObjectPath(PurposeSaleReceipt, PathParams{
		SaleID:     "sale123",
		SaleNumber: "POS-202503-000012",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "sales/sale123/receipts/POS-202503-000012.pdf"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildObjectPathRejectsInvalidSegment(t *testing.T) {
	_, err := BuildObjectPath(PurposeReceiptDocument, PathParams{
		ReceiptID: "../bad",
		UploadID:  "upload",
		FileName:  "file.pdf",
	})
	if err == nil {
		t.Fatalf("expected error for invalid segment")
	}
}
