package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

const (
	receiptEventCreated       = "receipt.created"
	receiptEventUpdated       = "receipt.updated"
	receiptEventStatusChanged = "receipt.status.changed"
	receiptEventDeleted       = "receipt.deleted"
	receiptEventShipNotice    = "receipt.ship_notice.recorded"
	receiptEventAttachment    = "receipt.attachment.added"

	receiptIDPrefix    = "rcp_"
	receiptLinePrefix  = "lin_"
	attachmentIDPrefix = "att_"
)

var (
	// ErrReceiptInvalidInput signals the caller provided invalid data.
	ErrReceiptInvalidInput = errors.New("receipt: invalid input")
	// ErrReceiptNotFound indicates the receipt could not be located.
	ErrReceiptNotFound = errors.New("receipt: not found")
	// ErrReceiptInvalidState indicates an invalid status transition was attempted.
	ErrReceiptInvalidState = errors.New("receipt: invalid status transition")
	// ErrReceiptMissingPayload indicates a receive was attempted without the required fields.
	ErrReceiptMissingPayload = errors.New("receipt: receive payload required")
	// ErrReceiptConflict indicates optimistic concurrency conflicts or duplicates.
	ErrReceiptConflict = errors.New("receipt: conflict")
)

var receiptStateTransitions = map[string][]string{
	string(domain.ReceiptStatusDraft): {
		string(domain.ReceiptStatusApproved),
		string(domain.ReceiptStatusCanceled),
		string(domain.ReceiptStatusDeleted),
	},
	string(domain.ReceiptStatusApproved): {
		string(domain.ReceiptStatusSent),
		string(domain.ReceiptStatusCanceled),
	},
	string(domain.ReceiptStatusSent): {
		string(domain.ReceiptStatusReceived),
		string(domain.ReceiptStatusCanceled),
	},
	string(domain.ReceiptStatusReceived): {
		string(domain.ReceiptStatusCompleted),
		string(domain.ReceiptStatusCanceled),
	},
}

// ReceiptEventPublisher publishes receipt domain events for downstream consumers.
type ReceiptEventPublisher interface {
	PublishReceiptEvent(ctx context.Context, event ReceiptEvent) error
}

// ReceiptServiceDeps bundles collaborators required to construct the receipt service.
type ReceiptServiceDeps struct {
	Receipts    repositories.ReceiptRepository
	Counters    repositories.CounterRepository
	Inventory   InventoryService
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      ReceiptEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type receiptService struct {
	receipts   repositories.ReceiptRepository
	counters   repositories.CounterRepository
	inventory  InventoryService
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     ReceiptEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewReceiptService wires dependencies into a concrete ReceiptService implementation.
func NewReceiptService(deps ReceiptServiceDeps) (ReceiptService, error) {
	if deps.Receipts == nil {
		return nil, errors.New("receipt service: receipt repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("receipt service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
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

	return &receiptService{
		receipts:   deps.Receipts,
		counters:   deps.Counters,
		inventory:  deps.Inventory,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *receiptService) CreateDraft(ctx context.Context, cmd CreateReceiptCommand) (PurchaseReceipt, error) {
	supplier := strings.TrimSpace(cmd.SupplierRef)
	if supplier == "" {
		return PurchaseReceipt{}, fmt.Errorf("%w: supplier ref is required", ErrReceiptInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return PurchaseReceipt{}, fmt.Errorf("%w: at least one line is required", ErrReceiptInvalidInput)
	}

	currency := strings.TrimSpace(cmd.Currency)
	if currency == "" {
		currency = "USD"
	}

	lines, err := s.buildLines(cmd.Lines, currency)
	if err != nil {
		return PurchaseReceipt{}, err
	}

	now := s.now()
	receipt := PurchaseReceipt{
		ID:          receiptIDPrefix + s.newID(),
		SupplierRef: supplier,
		Status:      domain.ReceiptStatusDraft,
		Lines:       lines,
		Currency:    currency,
		TotalCost:   sumLineCost(lines),
		Notes:       strings.TrimSpace(cmd.Notes),
		Metadata:    cloneMap(cmd.Metadata),
		CreatedBy:   strings.TrimSpace(cmd.ActorID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	number, err := s.generateReceiptNumber(ctx, now)
	if err != nil {
		return PurchaseReceipt{}, err
	}
	receipt.ReceiptNumber = number

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.receipts.Insert(txCtx, receipt); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}

	s.publishEvent(ctx, ReceiptEvent{
		Type:          receiptEventCreated,
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
		CurrentStatus: receipt.Status,
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
		Metadata:      maps.Clone(receipt.Metadata),
	})

	return receipt, nil
}

func (s *receiptService) GetReceipt(ctx context.Context, receiptID string) (PurchaseReceipt, error) {
	receiptID = strings.TrimSpace(receiptID)
	if receiptID == "" {
		return PurchaseReceipt{}, fmt.Errorf("%w: receipt id is required", ErrReceiptInvalidInput)
	}
	receipt, err := s.receipts.FindByID(ctx, receiptID)
	if err != nil {
		return PurchaseReceipt{}, s.mapRepositoryError(err)
	}
	return receipt, nil
}

func (s *receiptService) ListReceipts(ctx context.Context, filter ReceiptListFilter) (domain.CursorPage[PurchaseReceipt], error) {
	repoFilter := repositories.ReceiptListFilter{
		SupplierRef: strings.TrimSpace(filter.SupplierRef),
		Status:      statusStrings(filter.Status),
		DateRange:   domain.RangeQuery[time.Time]{From: filter.From, To: filter.To},
		Pagination:  filter.Pagination,
	}
	page, err := s.receipts.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[PurchaseReceipt]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *receiptService) UpdateDraft(ctx context.Context, cmd UpdateDraftReceiptCommand) (PurchaseReceipt, error) {
	receipt, err := s.GetReceipt(ctx, cmd.ReceiptID)
	if err != nil {
		return PurchaseReceipt{}, err
	}

	if receipt.Status != domain.ReceiptStatusDraft {
		return PurchaseReceipt{}, fmt.Errorf("%w: only drafts are editable, status is %s", ErrReceiptInvalidState, receipt.Status)
	}
	if cmd.ExpectedUpdatedAt != nil && !receipt.UpdatedAt.Equal(*cmd.ExpectedUpdatedAt) {
		return PurchaseReceipt{}, fmt.Errorf("%w: receipt was modified concurrently", ErrReceiptConflict)
	}

	if cmd.SupplierRef != nil {
		supplier := strings.TrimSpace(*cmd.SupplierRef)
		if supplier == "" {
			return PurchaseReceipt{}, fmt.Errorf("%w: supplier ref cannot be empty", ErrReceiptInvalidInput)
		}
		receipt.SupplierRef = supplier
	}
	if cmd.Lines != nil {
		lines, err := s.buildLines(cmd.Lines, receipt.Currency)
		if err != nil {
			return PurchaseReceipt{}, err
		}
		receipt.Lines = lines
		receipt.TotalCost = sumLineCost(lines)
	}
	if cmd.Notes != nil {
		receipt.Notes = strings.TrimSpace(*cmd.Notes)
	}
	if cmd.Metadata != nil {
		receipt.Metadata = cloneAndMergeMetadata(receipt.Metadata, cmd.Metadata)
	}

	now := s.now()
	receipt.UpdatedAt = now

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.receipts.Update(txCtx, receipt); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}

	s.publishEvent(ctx, ReceiptEvent{
		Type:          receiptEventUpdated,
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
		CurrentStatus: receipt.Status,
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
	})

	return receipt, nil
}

func (s *receiptService) Approve(ctx context.Context, cmd TransitionReceiptCommand) (PurchaseReceipt, error) {
	return s.transition(ctx, cmd, domain.ReceiptStatusApproved)
}

func (s *receiptService) Send(ctx context.Context, cmd TransitionReceiptCommand) (PurchaseReceipt, error) {
	return s.transition(ctx, cmd, domain.ReceiptStatusSent)
}

func (s *receiptService) Complete(ctx context.Context, cmd TransitionReceiptCommand) (PurchaseReceipt, error) {
	return s.transition(ctx, cmd, domain.ReceiptStatusCompleted)
}

func (s *receiptService) Cancel(ctx context.Context, cmd TransitionReceiptCommand) (PurchaseReceipt, error) {
	return s.transition(ctx, cmd, domain.ReceiptStatusCanceled)
}

func (s *receiptService) transition(ctx context.Context, cmd TransitionReceiptCommand, target domain.ReceiptStatus) (PurchaseReceipt, error) {
	receipt, err := s.GetReceipt(ctx, cmd.ReceiptID)
	if err != nil {
		return PurchaseReceipt{}, err
	}

	actor := strings.TrimSpace(cmd.ActorID)
	now := s.now()
	prev := receipt.Status

	if err := s.applyStatusTransition(&receipt, target, now); err != nil {
		return PurchaseReceipt{}, err
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.receipts.Update(txCtx, receipt); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}

	metadata := map[string]any{}
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		metadata["reason"] = reason
	}

	s.publishEvent(ctx, ReceiptEvent{
		Type:           receiptEventStatusChanged,
		ReceiptID:      receipt.ID,
		ReceiptNumber:  receipt.ReceiptNumber,
		PreviousStatus: prev,
		CurrentStatus:  receipt.Status,
		ActorID:        actor,
		OccurredAt:     now,
		Metadata:       metadata,
	})

	return receipt, nil
}

func (s *receiptService) Receive(ctx context.Context, cmd ReceiveReceiptCommand) (PurchaseReceipt, error) {
	if cmd.ReceivedDate.IsZero() {
		return PurchaseReceipt{}, fmt.Errorf("%w: received date is required", ErrReceiptMissingPayload)
	}
	if cmd.QualityCheck == nil {
		return PurchaseReceipt{}, fmt.Errorf("%w: quality check flag is required", ErrReceiptMissingPayload)
	}

	receipt, err := s.GetReceipt(ctx, cmd.ReceiptID)
	if err != nil {
		return PurchaseReceipt{}, err
	}

	now := s.now()
	prev := receipt.Status

	if err := reconcileReceivedLines(&receipt, cmd.Lines); err != nil {
		return PurchaseReceipt{}, err
	}

	if err := s.applyStatusTransition(&receipt, domain.ReceiptStatusReceived, now); err != nil {
		return PurchaseReceipt{}, err
	}

	receivedDate := cmd.ReceivedDate.UTC()
	receipt.ReceivedDate = &receivedDate
	receipt.QualityCheck = valuePtr(*cmd.QualityCheck)

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.receipts.Update(txCtx, receipt); err != nil {
			return s.mapRepositoryError(err)
		}
		if s.inventory != nil {
			if err := s.inventory.ApplyReceipt(txCtx, ApplyReceiptStockCommand{
				ReceiptID: receipt.ID,
				Lines:     cloneReceiptLines(receipt.Lines),
				ActorID:   cmd.ActorID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}

	s.publishEvent(ctx, ReceiptEvent{
		Type:           receiptEventStatusChanged,
		ReceiptID:      receipt.ID,
		ReceiptNumber:  receipt.ReceiptNumber,
		PreviousStatus: prev,
		CurrentStatus:  receipt.Status,
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
		Metadata: map[string]any{
			"receivedDate": receivedDate.Format(time.RFC3339),
			"qualityCheck": *cmd.QualityCheck,
		},
	})

	return receipt, nil
}

func (s *receiptService) Delete(ctx context.Context, cmd TransitionReceiptCommand) error {
	receipt, err := s.GetReceipt(ctx, cmd.ReceiptID)
	if err != nil {
		return err
	}

	if !canTransition(string(receipt.Status), string(domain.ReceiptStatusDeleted)) {
		return fmt.Errorf("%w: only drafts may be deleted, status is %s", ErrReceiptInvalidState, receipt.Status)
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.receipts.Delete(txCtx, receipt.ID); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, ReceiptEvent{
		Type:           receiptEventDeleted,
		ReceiptID:      receipt.ID,
		ReceiptNumber:  receipt.ReceiptNumber,
		PreviousStatus: receipt.Status,
		CurrentStatus:  domain.ReceiptStatusDeleted,
		ActorID:        cmd.ActorID,
		OccurredAt:     s.now(),
	})

	return nil
}

func (s *receiptService) RecordShipNotice(ctx context.Context, cmd ShipNoticeCommand) (PurchaseReceipt, error) {
	carrier := strings.TrimSpace(cmd.Carrier)
	if carrier == "" {
		return PurchaseReceipt{}, fmt.Errorf("%w: carrier is required", ErrReceiptInvalidInput)
	}

	receipt, err := s.GetReceipt(ctx, cmd.ReceiptID)
	if err != nil {
		return PurchaseReceipt{}, err
	}

	if receipt.Status != domain.ReceiptStatusSent {
		return PurchaseReceipt{}, fmt.Errorf("%w: ship notices apply to sent receipts, status is %s", ErrReceiptInvalidState, receipt.Status)
	}

	now := s.now()
	shippedAt := cmd.ShippedAt.UTC()
	if cmd.ShippedAt.IsZero() {
		shippedAt = now
	}
	receipt.ShipNotice = &domain.ShipNotice{
		Carrier:    carrier,
		TrackingNo: strings.TrimSpace(cmd.TrackingNo),
		ShippedAt:  shippedAt,
		ReportedAt: now,
	}
	receipt.UpdatedAt = now

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.receipts.Update(txCtx, receipt); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}

	s.publishEvent(ctx, ReceiptEvent{
		Type:          receiptEventShipNotice,
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
		CurrentStatus: receipt.Status,
		OccurredAt:    now,
		Metadata: map[string]any{
			"carrier":    carrier,
			"trackingNo": receipt.ShipNotice.TrackingNo,
		},
	})

	return receipt, nil
}

func (s *receiptService) AttachDocument(ctx context.Context, cmd AttachDocumentCommand) (PurchaseReceipt, error) {
	path := strings.TrimSpace(cmd.StoragePath)
	if path == "" {
		return PurchaseReceipt{}, fmt.Errorf("%w: storage path is required", ErrReceiptInvalidInput)
	}

	receipt, err := s.GetReceipt(ctx, cmd.ReceiptID)
	if err != nil {
		return PurchaseReceipt{}, err
	}

	now := s.now()
	attachment := domain.ReceiptAttachment{
		ID:          attachmentIDPrefix + s.newID(),
		Kind:        strings.TrimSpace(cmd.Kind),
		StoragePath: path,
		ContentType: strings.TrimSpace(cmd.ContentType),
		UploadedBy:  strings.TrimSpace(cmd.ActorID),
		UploadedAt:  now,
	}
	receipt.Attachments = append(receipt.Attachments, attachment)
	receipt.UpdatedAt = now

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.receipts.Update(txCtx, receipt); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}

	s.publishEvent(ctx, ReceiptEvent{
		Type:          receiptEventAttachment,
		ReceiptID:     receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
		CurrentStatus: receipt.Status,
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"attachmentId": attachment.ID,
			"kind":         attachment.Kind,
		},
	})

	return receipt, nil
}

func (s *receiptService) applyStatusTransition(receipt *PurchaseReceipt, target domain.ReceiptStatus, now time.Time) error {
	current := string(receipt.Status)
	if !canTransition(current, string(target)) {
		return fmt.Errorf("%w: %s -> %s", ErrReceiptInvalidState, current, target)
	}

	receipt.Status = target
	receipt.UpdatedAt = now
	s.updateTimestamps(receipt, target, now)
	return nil
}

func (s *receiptService) updateTimestamps(receipt *PurchaseReceipt, status domain.ReceiptStatus, now time.Time) {
	switch status {
	case domain.ReceiptStatusApproved:
		receipt.ApprovedAt = &now
	case domain.ReceiptStatusSent:
		receipt.SentAt = &now
	case domain.ReceiptStatusReceived:
		receipt.ReceivedAt = &now
	case domain.ReceiptStatusCompleted:
		receipt.CompletedAt = &now
	case domain.ReceiptStatusCanceled:
		if receipt.CanceledAt == nil {
			receipt.CanceledAt = &now
		}
	}
}

func (s *receiptService) buildLines(inputs []ReceiptLineInput, currency string) ([]domain.ReceiptLine, error) {
	lines := make([]domain.ReceiptLine, 0, len(inputs))
	for i, input := range inputs {
		partRef := strings.TrimSpace(input.PartRef)
		if partRef == "" {
			return nil, fmt.Errorf("%w: line %d part ref is required", ErrReceiptInvalidInput, i)
		}
		if input.OrderedQty <= 0 {
			return nil, fmt.Errorf("%w: line %d ordered qty must be positive", ErrReceiptInvalidInput, i)
		}
		if input.UnitCost < 0 {
			return nil, fmt.Errorf("%w: line %d unit cost cannot be negative", ErrReceiptInvalidInput, i)
		}
		lines = append(lines, domain.ReceiptLine{
			LineID:      receiptLinePrefix + s.newID(),
			PartRef:     partRef,
			SKU:         strings.TrimSpace(input.SKU),
			Description: strings.TrimSpace(input.Description),
			OrderedQty:  input.OrderedQty,
			UnitCost:    input.UnitCost,
			Currency:    currency,
		})
	}
	return lines, nil
}

func (s *receiptService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrReceiptNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrReceiptConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("receipt: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *receiptService) generateReceiptNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "receipts", 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PR-%04d-%06d", now.Year(), seq), nil
}

func (s *receiptService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *receiptService) now() time.Time {
	return s.clock()
}

func (s *receiptService) publishEvent(ctx context.Context, event ReceiptEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishReceiptEvent(ctx, event); err != nil {
		s.logger(ctx, "receipt.event.publish.failed", map[string]any{
			"type":    event.Type,
			"receipt": event.ReceiptID,
			"error":   err.Error(),
			"status":  string(event.CurrentStatus),
		})
	}
}

// reconcileReceivedLines applies per-line received quantities. Lines without
// an explicit entry default to their ordered quantity.
func reconcileReceivedLines(receipt *PurchaseReceipt, inputs []ReceivedLineInput) error {
	byID := make(map[string]int, len(receipt.Lines))
	for i, line := range receipt.Lines {
		byID[line.LineID] = i
	}

	seen := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		idx, ok := byID[input.LineID]
		if !ok {
			return fmt.Errorf("%w: unknown line %q", ErrReceiptInvalidInput, input.LineID)
		}
		if input.ReceivedQty < 0 {
			return fmt.Errorf("%w: line %q received qty cannot be negative", ErrReceiptInvalidInput, input.LineID)
		}
		receipt.Lines[idx].ReceivedQty = input.ReceivedQty
		seen[input.LineID] = true
	}

	for i, line := range receipt.Lines {
		if !seen[line.LineID] {
			receipt.Lines[i].ReceivedQty = line.OrderedQty
		}
	}
	return nil
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func canTransition(current, target string) bool {
	next, ok := receiptStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

func statusStrings(statuses []ReceiptStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, status := range statuses {
		out[i] = string(status)
	}
	return out
}

func sumLineCost(lines []domain.ReceiptLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.UnitCost * line.OrderedQty
	}
	return total
}

func cloneReceiptLines(lines []domain.ReceiptLine) []domain.ReceiptLine {
	cloned := make([]domain.ReceiptLine, len(lines))
	copy(cloned, lines)
	return cloned
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return maps.Clone(src)
}

func cloneAndMergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	if base == nil && extra == nil {
		return nil
	}
	result := cloneMap(base)
	if len(extra) == 0 {
		return result
	}
	if result == nil {
		result = map[string]any{}
	}
	for k, v := range extra {
		result[k] = v
	}
	return result
}

func ensureMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	return src
}

func valuePtr[T any](v T) *T {
	return &v
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}
