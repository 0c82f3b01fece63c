package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	pstorage "github.com/partsdesk/api/internal/platform/storage"
)

const (
	maxDocumentAttachmentSize = int64(25 * 1024 * 1024) // 25 MiB
	maxPhotoAttachmentSize    = int64(15 * 1024 * 1024) // 15 MiB
	attachmentUploadTTL       = 15 * time.Minute
	attachmentDownloadTTL     = 10 * time.Minute

	attachmentLoggerEventValidation = "attachment.upload.validate"
	attachmentLoggerEventIssued     = "attachment.upload.issued"
	attachmentLoggerEventDownload   = "attachment.download.issued"

	attachmentUploadIDPrefix = "up_"
)

var (
	// ErrAttachmentInvalidInput indicates the caller provided an invalid argument.
	ErrAttachmentInvalidInput = errors.New("attachment: invalid input")
	// ErrAttachmentNotFound indicates the attachment does not exist on the receipt.
	ErrAttachmentNotFound = errors.New("attachment: not found")
	// ErrAttachmentStorageFailure wraps signing or storage layer failures.
	ErrAttachmentStorageFailure = errors.New("attachment: storage failure")
)

type attachmentKindPolicy struct {
	contentTypes []string
	maxSize      int64
}

var attachmentKindPolicies = map[string]attachmentKindPolicy{
	"invoice":      {contentTypes: []string{"application/pdf"}, maxSize: maxDocumentAttachmentSize},
	"packing-slip": {contentTypes: []string{"application/pdf", "image/png", "image/jpeg"}, maxSize: maxDocumentAttachmentSize},
	"photo":        {contentTypes: []string{"image/png", "image/jpeg", "image/webp"}, maxSize: maxPhotoAttachmentSize},
	"other":        {contentTypes: []string{"*"}, maxSize: maxDocumentAttachmentSize},
}

// AttachmentServiceDeps wires dependencies for the attachment service implementation.
type AttachmentServiceDeps struct {
	Receipts    ReceiptService
	Storage     *pstorage.Client
	Bucket      string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type attachmentService struct {
	receipts ReceiptService
	storage  *pstorage.Client
	bucket   string
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewAttachmentService constructs an AttachmentService backed by the provided dependencies.
func NewAttachmentService(deps AttachmentServiceDeps) (AttachmentService, error) {
	if deps.Receipts == nil {
		return nil, errors.New("attachment service: receipt service is required")
	}
	if deps.Storage == nil {
		return nil, errors.New("attachment service: storage client is required")
	}
	bucket := strings.TrimSpace(deps.Bucket)
	if bucket == "" {
		return nil, errors.New("attachment service: bucket is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &attachmentService{
		receipts: deps.Receipts,
		storage:  deps.Storage,
		bucket:   bucket,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *attachmentService) IssueSignedUpload(ctx context.Context, cmd SignAttachmentUploadCommand) (SignedAsset, error) {
	params, err := s.validateUploadInput(cmd)
	if err != nil {
		return SignedAsset{}, err
	}

	s.logger(ctx, attachmentLoggerEventValidation, map[string]any{
		"actorId":   params.actorID,
		"receiptId": params.receiptID,
		"kind":      params.kind,
		"size":      params.sizeBytes,
	})

	if _, err := s.receipts.GetReceipt(ctx, params.receiptID); err != nil {
		return SignedAsset{}, err
	}

	uploadID := attachmentUploadIDPrefix + s.newID()
	objectPath, err := pstorage.BuildObjectPath(pstorage.PurposeReceiptDocument, pstorage.PathParams{
		ReceiptID: params.receiptID,
		UploadID:  uploadID,
		FileName:  params.fileName,
	})
	if err != nil {
		return SignedAsset{}, fmt.Errorf("%w: %v", ErrAttachmentInvalidInput, err)
	}

	result, err := s.storage.SignedURL(ctx, s.bucket, objectPath, pstorage.SignedURLOptions{
		Upload: &pstorage.UploadOptions{
			Method:      "PUT",
			ContentType: params.contentType,
			MaxSize:     params.policy.maxSize,
			ExpiresIn:   attachmentUploadTTL,
		},
	})
	if err != nil {
		return SignedAsset{}, fmt.Errorf("%w: %v", ErrAttachmentStorageFailure, err)
	}

	s.logger(ctx, attachmentLoggerEventIssued, map[string]any{
		"actorId":    params.actorID,
		"receiptId":  params.receiptID,
		"uploadId":   uploadID,
		"method":     result.Method,
		"expiresAt":  result.ExpiresAt,
		"uploadSize": params.sizeBytes,
	})

	return SignedAsset{
		URL:         result.URL,
		Method:      result.Method,
		Headers:     result.Headers,
		StoragePath: objectPath,
		ExpiresAt:   result.ExpiresAt,
	}, nil
}

func (s *attachmentService) IssueSignedDownload(ctx context.Context, cmd SignAttachmentDownloadCommand) (SignedAsset, error) {
	actorID := strings.TrimSpace(cmd.ActorID)
	if actorID == "" {
		return SignedAsset{}, fmt.Errorf("%w: actor id is required", ErrAttachmentInvalidInput)
	}
	receiptID := strings.TrimSpace(cmd.ReceiptID)
	if receiptID == "" {
		return SignedAsset{}, fmt.Errorf("%w: receipt id is required", ErrAttachmentInvalidInput)
	}
	attachmentID := strings.TrimSpace(cmd.AttachmentID)
	if attachmentID == "" {
		return SignedAsset{}, fmt.Errorf("%w: attachment id is required", ErrAttachmentInvalidInput)
	}

	receipt, err := s.receipts.GetReceipt(ctx, receiptID)
	if err != nil {
		return SignedAsset{}, err
	}

	var attachment *ReceiptAttachment
	for i := range receipt.Attachments {
		if receipt.Attachments[i].ID == attachmentID {
			attachment = &receipt.Attachments[i]
			break
		}
	}
	if attachment == nil {
		return SignedAsset{}, fmt.Errorf("%w: attachment %q", ErrAttachmentNotFound, attachmentID)
	}

	result, err := s.storage.SignedURL(ctx, s.bucket, attachment.StoragePath, pstorage.SignedURLOptions{
		Download: &pstorage.DownloadOptions{
			Method:       "GET",
			ExpiresIn:    attachmentDownloadTTL,
			Disposition:  fmt.Sprintf("attachment; filename=%q", path.Base(attachment.StoragePath)),
			ResponseType: attachment.ContentType,
		},
	})
	if err != nil {
		return SignedAsset{}, fmt.Errorf("%w: %v", ErrAttachmentStorageFailure, err)
	}

	s.logger(ctx, attachmentLoggerEventDownload, map[string]any{
		"actorId":      actorID,
		"receiptId":    receiptID,
		"attachmentId": attachmentID,
		"expiresAt":    result.ExpiresAt,
	})

	return SignedAsset{
		URL:         result.URL,
		Method:      result.Method,
		Headers:     result.Headers,
		StoragePath: attachment.StoragePath,
		ExpiresAt:   result.ExpiresAt,
	}, nil
}

func (s *attachmentService) ConfirmUpload(ctx context.Context, cmd ConfirmAttachmentUploadCommand) (PurchaseReceipt, error) {
	receiptID := strings.TrimSpace(cmd.ReceiptID)
	if receiptID == "" {
		return PurchaseReceipt{}, fmt.Errorf("%w: receipt id is required", ErrAttachmentInvalidInput)
	}

	kind := strings.ToLower(strings.TrimSpace(cmd.Kind))
	if _, ok := attachmentKindPolicies[kind]; !ok {
		return PurchaseReceipt{}, fmt.Errorf("%w: attachment kind %q not allowed", ErrAttachmentInvalidInput, cmd.Kind)
	}

	storagePath := strings.TrimSpace(cmd.StoragePath)
	if storagePath == "" {
		return PurchaseReceipt{}, fmt.Errorf("%w: storage path is required", ErrAttachmentInvalidInput)
	}
	if !strings.HasPrefix(storagePath, fmt.Sprintf("receipts/%s/", receiptID)) {
		return PurchaseReceipt{}, fmt.Errorf("%w: storage path does not belong to receipt %q", ErrAttachmentInvalidInput, receiptID)
	}

	return s.receipts.AttachDocument(ctx, AttachDocumentCommand{
		ReceiptID:   receiptID,
		Kind:        kind,
		StoragePath: storagePath,
		ContentType: strings.ToLower(strings.TrimSpace(cmd.ContentType)),
		ActorID:     strings.TrimSpace(cmd.ActorID),
	})
}

type attachmentUploadParams struct {
	actorID     string
	receiptID   string
	kind        string
	fileName    string
	contentType string
	sizeBytes   int64
	policy      attachmentKindPolicy
}

func (s *attachmentService) validateUploadInput(cmd SignAttachmentUploadCommand) (attachmentUploadParams, error) {
	actorID := strings.TrimSpace(cmd.ActorID)
	if actorID == "" {
		return attachmentUploadParams{}, fmt.Errorf("%w: actor id is required", ErrAttachmentInvalidInput)
	}

	receiptID := strings.TrimSpace(cmd.ReceiptID)
	if receiptID == "" {
		return attachmentUploadParams{}, fmt.Errorf("%w: receipt id is required", ErrAttachmentInvalidInput)
	}

	kind := strings.ToLower(strings.TrimSpace(cmd.Kind))
	policy, ok := attachmentKindPolicies[kind]
	if !ok {
		return attachmentUploadParams{}, fmt.Errorf("%w: attachment kind %q not allowed", ErrAttachmentInvalidInput, cmd.Kind)
	}

	contentType := strings.ToLower(strings.TrimSpace(cmd.ContentType))
	if contentType == "" {
		return attachmentUploadParams{}, fmt.Errorf("%w: content_type is required", ErrAttachmentInvalidInput)
	}
	if !contentTypeAllowed(contentType, policy.contentTypes) {
		return attachmentUploadParams{}, fmt.Errorf("%w: content_type %q not allowed for kind %q", ErrAttachmentInvalidInput, contentType, kind)
	}

	size := cmd.SizeBytes
	if size <= 0 {
		return attachmentUploadParams{}, fmt.Errorf("%w: size_bytes must be positive", ErrAttachmentInvalidInput)
	}
	if policy.maxSize > 0 && size > policy.maxSize {
		return attachmentUploadParams{}, fmt.Errorf("%w: size_bytes exceeds maximum (%d)", ErrAttachmentInvalidInput, policy.maxSize)
	}

	fileName := strings.TrimSpace(cmd.FileName)
	if fileName == "" {
		fileName = fmt.Sprintf("%s_%d", kind, s.clock().UnixNano())
	}

	return attachmentUploadParams{
		actorID:     actorID,
		receiptID:   receiptID,
		kind:        kind,
		fileName:    fileName,
		contentType: contentType,
		sizeBytes:   size,
		policy:      policy,
	}, nil
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return false
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if candidate == "*" {
			return true
		}
		if strings.HasSuffix(candidate, "/*") {
			prefix := strings.TrimSuffix(candidate, "*")
			if strings.HasPrefix(ct, strings.TrimSuffix(prefix, "/")) {
				return true
			}
			continue
		}
		if ct == candidate {
			return true
		}
	}
	return false
}
