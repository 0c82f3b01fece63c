package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/partsdesk/api/internal/domain"
	"github.com/partsdesk/api/internal/repositories"
)

type stubRepositoryError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepositoryError) Error() string { return "receipt repository error" }

func (e stubRepositoryError) IsNotFound() bool    { return e.notFound }
func (e stubRepositoryError) IsConflict() bool    { return e.conflict }
func (e stubRepositoryError) IsUnavailable() bool { return e.unavailable }

type stubReceiptRepo struct {
	insertFn func(ctx context.Context, receipt domain.PurchaseReceipt) error
	updateFn func(ctx context.Context, receipt domain.PurchaseReceipt) error
	deleteFn func(ctx context.Context, receiptID string) error
	findFn   func(ctx context.Context, receiptID string) (domain.PurchaseReceipt, error)
	listFn   func(ctx context.Context, filter repositories.ReceiptListFilter) (domain.CursorPage[domain.PurchaseReceipt], error)
}

func (s *stubReceiptRepo) Insert(ctx context.Context, receipt domain.PurchaseReceipt) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, receipt)
}

func (s *stubReceiptRepo) Update(ctx context.Context, receipt domain.PurchaseReceipt) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, receipt)
}

func (s *stubReceiptRepo) Delete(ctx context.Context, receiptID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, receiptID)
}

func (s *stubReceiptRepo) FindByID(ctx context.Context, receiptID string) (domain.PurchaseReceipt, error) {
	if s.findFn == nil {
		return domain.PurchaseReceipt{}, stubRepositoryError{notFound: true}
	}
	return s.findFn(ctx, receiptID)
}

func (s *stubReceiptRepo) List(ctx context.Context, filter repositories.ReceiptListFilter) (domain.CursorPage[domain.PurchaseReceipt], error) {
	if s.listFn == nil {
		return domain.CursorPage[domain.PurchaseReceipt]{}, nil
	}
	return s.listFn(ctx, filter)
}

type stubCounterRepo struct {
	nextFn func(ctx context.Context, counterID string, step int64) (int64, error)
}

func (s *stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFn == nil {
		return 1, nil
	}
	return s.nextFn(ctx, counterID, step)
}

func (s *stubCounterRepo) Configure(context.Context, string, repositories.CounterConfig) error {
	return nil
}

type stubInventoryService struct {
	checkStockFn   func(ctx context.Context, partRef string, qty int64) (bool, error)
	applyReceiptFn func(ctx context.Context, cmd ApplyReceiptStockCommand) error
	commitSaleFn   func(ctx context.Context, cmd CommitSaleStockCommand) error
}

func (s *stubInventoryService) CheckStock(ctx context.Context, partRef string, qty int64) (bool, error) {
	if s.checkStockFn == nil {
		return true, nil
	}
	return s.checkStockFn(ctx, partRef, qty)
}

func (s *stubInventoryService) GetStock(context.Context, string) (PartStock, error) {
	return PartStock{}, nil
}

func (s *stubInventoryService) ListLowStock(context.Context, LowStockFilter) (domain.CursorPage[PartStock], error) {
	return domain.CursorPage[PartStock]{}, nil
}

func (s *stubInventoryService) AdjustStock(context.Context, AdjustStockCommand) (PartStock, error) {
	return PartStock{}, nil
}

func (s *stubInventoryService) ApplyReceipt(ctx context.Context, cmd ApplyReceiptStockCommand) error {
	if s.applyReceiptFn == nil {
		return nil
	}
	return s.applyReceiptFn(ctx, cmd)
}

func (s *stubInventoryService) CommitSale(ctx context.Context, cmd CommitSaleStockCommand) error {
	if s.commitSaleFn == nil {
		return nil
	}
	return s.commitSaleFn(ctx, cmd)
}

type captureReceiptEvents struct {
	events []ReceiptEvent
	err    error
}

func (c *captureReceiptEvents) PublishReceiptEvent(_ context.Context, event ReceiptEvent) error {
	c.events = append(c.events, event)
	return c.err
}

type stubUnitOfWork struct {
	calls int
}

func (s *stubUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	s.calls++
	return fn(ctx)
}

func fixedReceiptClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
	}
}

func seqIDGenerator() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("000TEST%03d", n)
	}
}

func TestCreateDraftGeneratesNumberAndTotals(t *testing.T) {
	var inserted domain.PurchaseReceipt
	repo := &stubReceiptRepo{
		insertFn: func(_ context.Context, receipt domain.PurchaseReceipt) error {
			inserted = receipt
			return nil
		},
	}
	counters := &stubCounterRepo{
		nextFn: func(_ context.Context, counterID string, step int64) (int64, error) {
			if counterID != "receipts" {
				t.Fatalf("unexpected counter id %q", counterID)
			}
			if step != 1 {
				t.Fatalf("unexpected step %d", step)
			}
			return 42, nil
		},
	}
	events := &captureReceiptEvents{}
	unit := &stubUnitOfWork{}

	svc, err := NewReceiptService(ReceiptServiceDeps{
		Receipts:    repo,
		Counters:    counters,
		UnitOfWork:  unit,
		Clock:       fixedReceiptClock(),
		IDGenerator: seqIDGenerator(),
		Events:      events,
	})
	if err != nil {
		t.Fatalf("NewReceiptService: %v", err)
	}

	receipt, err := svc.CreateDraft(context.Background(), CreateReceiptCommand{
		SupplierRef: "sup_brakeparts",
		Currency:    "usd ",
		Lines: []ReceiptLineInput{
			{PartRef: "prt_padset", SKU: "BRK-001", OrderedQty: 4, UnitCost: 2550},
			{PartRef: "prt_rotor", SKU: "BRK-014", OrderedQty: 2, UnitCost: 6100},
		},
		ActorID: "usr_counter",
	})
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}

	if receipt.ID != "rcp_000TEST001" {
		t.Fatalf("unexpected receipt id %q", receipt.ID)
	}
	if receipt.ReceiptNumber != "PR-2025-000042" {
		t.Fatalf("unexpected receipt number %q", receipt.ReceiptNumber)
	}
	if receipt.Status != domain.ReceiptStatusDraft {
		t.Fatalf("expected draft status, got %s", receipt.Status)
	}
	if receipt.TotalCost != 4*2550+2*6100 {
		t.Fatalf("unexpected total cost %d", receipt.TotalCost)
	}
	if len(receipt.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(receipt.Lines))
	}
	if receipt.Lines[0].LineID != "lin_000TEST002" {
		t.Fatalf("unexpected line id %q", receipt.Lines[0].LineID)
	}
	if receipt.Lines[0].Currency != "usd" {
		t.Fatalf("expected trimmed currency, got %q", receipt.Lines[0].Currency)
	}
	if inserted.ID != receipt.ID {
		t.Fatalf("insert saw %q, service returned %q", inserted.ID, receipt.ID)
	}
	if unit.calls != 1 {
		t.Fatalf("expected 1 transaction, got %d", unit.calls)
	}
	if len(events.events) != 1 || events.events[0].Type != receiptEventCreated {
		t.Fatalf("unexpected events %+v", events.events)
	}
}

func TestCreateDraftValidatesInput(t *testing.T) {
	svc := newReceiptServiceForTest(t, &stubReceiptRepo{}, nil, nil)

	cases := []struct {
		name string
		cmd  CreateReceiptCommand
	}{
		{
			name: "missing supplier",
			cmd: CreateReceiptCommand{
				Lines: []ReceiptLineInput{{PartRef: "prt_x", OrderedQty: 1}},
			},
		},
		{
			name: "no lines",
			cmd:  CreateReceiptCommand{SupplierRef: "sup_x"},
		},
		{
			name: "zero quantity",
			cmd: CreateReceiptCommand{
				SupplierRef: "sup_x",
				Lines:       []ReceiptLineInput{{PartRef: "prt_x", OrderedQty: 0}},
			},
		},
		{
			name: "negative cost",
			cmd: CreateReceiptCommand{
				SupplierRef: "sup_x",
				Lines:       []ReceiptLineInput{{PartRef: "prt_x", OrderedQty: 1, UnitCost: -5}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateDraft(context.Background(), tc.cmd)
			if !errors.Is(err, ErrReceiptInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestApproveTransitionsDraft(t *testing.T) {
	existing := draftReceiptFixture()
	var updated domain.PurchaseReceipt
	repo := &stubReceiptRepo{
		findFn: func(_ context.Context, receiptID string) (domain.PurchaseReceipt, error) {
			if receiptID != existing.ID {
				t.Fatalf("unexpected lookup %q", receiptID)
			}
			return existing, nil
		},
		updateFn: func(_ context.Context, receipt domain.PurchaseReceipt) error {
			updated = receipt
			return nil
		},
	}
	events := &captureReceiptEvents{}
	svc := newReceiptServiceForTest(t, repo, events, nil)

	receipt, err := svc.Approve(context.Background(), TransitionReceiptCommand{
		ReceiptID: existing.ID,
		ActorID:   "usr_manager",
	})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if receipt.Status != domain.ReceiptStatusApproved {
		t.Fatalf("expected approved, got %s", receipt.Status)
	}
	if receipt.ApprovedAt == nil {
		t.Fatal("expected ApprovedAt to be set")
	}
	if updated.Status != domain.ReceiptStatusApproved {
		t.Fatalf("persisted status %s", updated.Status)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.events))
	}
	event := events.events[0]
	if event.Type != receiptEventStatusChanged {
		t.Fatalf("unexpected event type %q", event.Type)
	}
	if event.PreviousStatus != domain.ReceiptStatusDraft || event.CurrentStatus != domain.ReceiptStatusApproved {
		t.Fatalf("unexpected event statuses %s -> %s", event.PreviousStatus, event.CurrentStatus)
	}
	if event.ActorID != "usr_manager" {
		t.Fatalf("unexpected actor %q", event.ActorID)
	}
}

func TestTransitionRejectsIllegalJumps(t *testing.T) {
	cases := []struct {
		name   string
		status domain.ReceiptStatus
		run    func(svc ReceiptService, id string) error
	}{
		{
			name:   "draft cannot complete",
			status: domain.ReceiptStatusDraft,
			run: func(svc ReceiptService, id string) error {
				_, err := svc.Complete(context.Background(), TransitionReceiptCommand{ReceiptID: id})
				return err
			},
		},
		{
			name:   "approved cannot receive",
			status: domain.ReceiptStatusApproved,
			run: func(svc ReceiptService, id string) error {
				_, err := svc.Receive(context.Background(), ReceiveReceiptCommand{
					ReceiptID:    id,
					ReceivedDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
					QualityCheck: valuePtr(true),
				})
				return err
			},
		},
		{
			name:   "completed cannot cancel",
			status: domain.ReceiptStatusCompleted,
			run: func(svc ReceiptService, id string) error {
				_, err := svc.Cancel(context.Background(), TransitionReceiptCommand{ReceiptID: id})
				return err
			},
		},
		{
			name:   "canceled cannot send",
			status: domain.ReceiptStatusCanceled,
			run: func(svc ReceiptService, id string) error {
				_, err := svc.Send(context.Background(), TransitionReceiptCommand{ReceiptID: id})
				return err
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			existing := draftReceiptFixture()
			existing.Status = tc.status
			updateCalls := 0
			repo := &stubReceiptRepo{
				findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
					return existing, nil
				},
				updateFn: func(context.Context, domain.PurchaseReceipt) error {
					updateCalls++
					return nil
				},
			}
			svc := newReceiptServiceForTest(t, repo, nil, nil)

			err := tc.run(svc, existing.ID)
			if !errors.Is(err, ErrReceiptInvalidState) {
				t.Fatalf("expected invalid state error, got %v", err)
			}
			if updateCalls != 0 {
				t.Fatalf("expected no persistence, got %d updates", updateCalls)
			}
		})
	}
}

func TestReceiveRequiresPayload(t *testing.T) {
	existing := draftReceiptFixture()
	existing.Status = domain.ReceiptStatusSent
	findCalls := 0
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			findCalls++
			return existing, nil
		},
	}
	svc := newReceiptServiceForTest(t, repo, nil, nil)

	_, err := svc.Receive(context.Background(), ReceiveReceiptCommand{ReceiptID: existing.ID})
	if !errors.Is(err, ErrReceiptMissingPayload) {
		t.Fatalf("expected missing payload error, got %v", err)
	}

	_, err = svc.Receive(context.Background(), ReceiveReceiptCommand{
		ReceiptID:    existing.ID,
		ReceivedDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrReceiptMissingPayload) {
		t.Fatalf("expected missing payload error without quality check, got %v", err)
	}

	if findCalls != 0 {
		t.Fatalf("expected payload validation before lookup, got %d finds", findCalls)
	}
}

func TestReceiveAppliesStockAndDefaultsLines(t *testing.T) {
	existing := draftReceiptFixture()
	existing.Status = domain.ReceiptStatusSent

	var updated domain.PurchaseReceipt
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			return existing, nil
		},
		updateFn: func(_ context.Context, receipt domain.PurchaseReceipt) error {
			updated = receipt
			return nil
		},
	}

	var applied ApplyReceiptStockCommand
	inventory := &stubInventoryService{
		applyReceiptFn: func(_ context.Context, cmd ApplyReceiptStockCommand) error {
			applied = cmd
			return nil
		},
	}
	events := &captureReceiptEvents{}
	svc := newReceiptServiceForTest(t, repo, events, inventory)

	receipt, err := svc.Receive(context.Background(), ReceiveReceiptCommand{
		ReceiptID:    existing.ID,
		ReceivedDate: time.Date(2025, time.March, 15, 8, 0, 0, 0, time.UTC),
		QualityCheck: valuePtr(true),
		Lines: []ReceivedLineInput{
			{LineID: "lin_1", ReceivedQty: 3},
		},
		ActorID: "usr_dock",
	})
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}

	if receipt.Status != domain.ReceiptStatusReceived {
		t.Fatalf("expected received, got %s", receipt.Status)
	}
	if receipt.ReceivedDate == nil || !receipt.ReceivedDate.Equal(time.Date(2025, time.March, 15, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected received date %v", receipt.ReceivedDate)
	}
	if receipt.QualityCheck == nil || !*receipt.QualityCheck {
		t.Fatal("expected quality check recorded")
	}
	if receipt.Lines[0].ReceivedQty != 3 {
		t.Fatalf("explicit line qty not applied: %d", receipt.Lines[0].ReceivedQty)
	}
	if receipt.Lines[1].ReceivedQty != receipt.Lines[1].OrderedQty {
		t.Fatalf("unlisted line should default to ordered qty, got %d", receipt.Lines[1].ReceivedQty)
	}
	if updated.Status != domain.ReceiptStatusReceived {
		t.Fatalf("persisted status %s", updated.Status)
	}
	if applied.ReceiptID != existing.ID {
		t.Fatalf("stock apply saw receipt %q", applied.ReceiptID)
	}
	if len(applied.Lines) != 2 || applied.Lines[0].ReceivedQty != 3 {
		t.Fatalf("stock apply lines %+v", applied.Lines)
	}
	if len(events.events) != 1 || events.events[0].Type != receiptEventStatusChanged {
		t.Fatalf("unexpected events %+v", events.events)
	}
}

func TestReceiveRejectsUnknownLine(t *testing.T) {
	existing := draftReceiptFixture()
	existing.Status = domain.ReceiptStatusSent
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			return existing, nil
		},
	}
	svc := newReceiptServiceForTest(t, repo, nil, nil)

	_, err := svc.Receive(context.Background(), ReceiveReceiptCommand{
		ReceiptID:    existing.ID,
		ReceivedDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		QualityCheck: valuePtr(false),
		Lines:        []ReceivedLineInput{{LineID: "lin_missing", ReceivedQty: 1}},
	})
	if !errors.Is(err, ErrReceiptInvalidInput) {
		t.Fatalf("expected invalid input for unknown line, got %v", err)
	}
}

func TestDeleteOnlyAllowedFromDraft(t *testing.T) {
	existing := draftReceiptFixture()
	existing.Status = domain.ReceiptStatusApproved
	deleteCalls := 0
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			return existing, nil
		},
		deleteFn: func(context.Context, string) error {
			deleteCalls++
			return nil
		},
	}
	svc := newReceiptServiceForTest(t, repo, nil, nil)

	err := svc.Delete(context.Background(), TransitionReceiptCommand{ReceiptID: existing.ID})
	if !errors.Is(err, ErrReceiptInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	if deleteCalls != 0 {
		t.Fatalf("expected no delete, got %d", deleteCalls)
	}
}

func TestDeleteRemovesDraft(t *testing.T) {
	existing := draftReceiptFixture()
	var deletedID string
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			return existing, nil
		},
		deleteFn: func(_ context.Context, receiptID string) error {
			deletedID = receiptID
			return nil
		},
	}
	events := &captureReceiptEvents{}
	svc := newReceiptServiceForTest(t, repo, events, nil)

	if err := svc.Delete(context.Background(), TransitionReceiptCommand{ReceiptID: existing.ID, ActorID: "usr_admin"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deletedID != existing.ID {
		t.Fatalf("deleted %q, want %q", deletedID, existing.ID)
	}
	if len(events.events) != 1 || events.events[0].Type != receiptEventDeleted {
		t.Fatalf("unexpected events %+v", events.events)
	}
	if events.events[0].CurrentStatus != domain.ReceiptStatusDeleted {
		t.Fatalf("unexpected event status %s", events.events[0].CurrentStatus)
	}
}

func TestRecordShipNoticeRequiresSentStatus(t *testing.T) {
	existing := draftReceiptFixture()
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			return existing, nil
		},
	}
	svc := newReceiptServiceForTest(t, repo, nil, nil)

	_, err := svc.RecordShipNotice(context.Background(), ShipNoticeCommand{
		ReceiptID: existing.ID,
		Carrier:   "fastfreight",
	})
	if !errors.Is(err, ErrReceiptInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestRecordShipNoticeStoresCarrierDetails(t *testing.T) {
	existing := draftReceiptFixture()
	existing.Status = domain.ReceiptStatusSent
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			return existing, nil
		},
	}
	svc := newReceiptServiceForTest(t, repo, nil, nil)

	receipt, err := svc.RecordShipNotice(context.Background(), ShipNoticeCommand{
		ReceiptID:  existing.ID,
		Carrier:    " fastfreight ",
		TrackingNo: "FF-9981",
		ShippedAt:  time.Date(2025, time.March, 13, 16, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordShipNotice: %v", err)
	}
	if receipt.ShipNotice == nil {
		t.Fatal("expected ship notice recorded")
	}
	if receipt.ShipNotice.Carrier != "fastfreight" {
		t.Fatalf("unexpected carrier %q", receipt.ShipNotice.Carrier)
	}
	if receipt.ShipNotice.TrackingNo != "FF-9981" {
		t.Fatalf("unexpected tracking %q", receipt.ShipNotice.TrackingNo)
	}
	if receipt.Status != domain.ReceiptStatusSent {
		t.Fatalf("ship notice must not change status, got %s", receipt.Status)
	}
}

func TestUpdateDraftDetectsConcurrentEdit(t *testing.T) {
	existing := draftReceiptFixture()
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			return existing, nil
		},
	}
	svc := newReceiptServiceForTest(t, repo, nil, nil)

	stale := existing.UpdatedAt.Add(-time.Minute)
	_, err := svc.UpdateDraft(context.Background(), UpdateDraftReceiptCommand{
		ReceiptID:         existing.ID,
		Notes:             optionalString("restock aisle 4"),
		ExpectedUpdatedAt: &stale,
	})
	if !errors.Is(err, ErrReceiptConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateDraftRejectsNonDraft(t *testing.T) {
	existing := draftReceiptFixture()
	existing.Status = domain.ReceiptStatusSent
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			return existing, nil
		},
	}
	svc := newReceiptServiceForTest(t, repo, nil, nil)

	_, err := svc.UpdateDraft(context.Background(), UpdateDraftReceiptCommand{
		ReceiptID: existing.ID,
		Notes:     optionalString("too late"),
	})
	if !errors.Is(err, ErrReceiptInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	existing := draftReceiptFixture()
	repo := &stubReceiptRepo{
		findFn: func(context.Context, string) (domain.PurchaseReceipt, error) {
			return existing, nil
		},
	}
	events := &captureReceiptEvents{err: errors.New("broker down")}
	var logged []string
	svc, err := NewReceiptService(ReceiptServiceDeps{
		Receipts:    repo,
		Counters:    &stubCounterRepo{},
		Clock:       fixedReceiptClock(),
		IDGenerator: seqIDGenerator(),
		Events:      events,
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
	})
	if err != nil {
		t.Fatalf("NewReceiptService: %v", err)
	}

	receipt, err := svc.Approve(context.Background(), TransitionReceiptCommand{ReceiptID: existing.ID})
	if err != nil {
		t.Fatalf("Approve should succeed despite publish failure: %v", err)
	}
	if receipt.Status != domain.ReceiptStatusApproved {
		t.Fatalf("unexpected status %s", receipt.Status)
	}
	if len(logged) != 1 || logged[0] != "receipt.event.publish.failed" {
		t.Fatalf("unexpected log events %v", logged)
	}
}

func TestGetReceiptMapsNotFound(t *testing.T) {
	svc := newReceiptServiceForTest(t, &stubReceiptRepo{}, nil, nil)

	_, err := svc.GetReceipt(context.Background(), "rcp_missing")
	if !errors.Is(err, ErrReceiptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newReceiptServiceForTest(t *testing.T, repo repositories.ReceiptRepository, events ReceiptEventPublisher, inventory InventoryService) ReceiptService {
	t.Helper()
	svc, err := NewReceiptService(ReceiptServiceDeps{
		Receipts:    repo,
		Counters:    &stubCounterRepo{},
		Inventory:   inventory,
		Clock:       fixedReceiptClock(),
		IDGenerator: seqIDGenerator(),
		Events:      events,
	})
	if err != nil {
		t.Fatalf("NewReceiptService: %v", err)
	}
	return svc
}

func draftReceiptFixture() domain.PurchaseReceipt {
	created := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	return domain.PurchaseReceipt{
		ID:            "rcp_01FIXTURE",
		ReceiptNumber: "PR-2025-000007",
		SupplierRef:   "sup_brakeparts",
		Status:        domain.ReceiptStatusDraft,
		Currency:      "USD",
		Lines: []domain.ReceiptLine{
			{LineID: "lin_1", PartRef: "prt_padset", SKU: "BRK-001", OrderedQty: 4, UnitCost: 2550, Currency: "USD"},
			{LineID: "lin_2", PartRef: "prt_rotor", SKU: "BRK-014", OrderedQty: 2, UnitCost: 6100, Currency: "USD"},
		},
		TotalCost: 4*2550 + 2*6100,
		CreatedBy: "usr_counter",
		CreatedAt: created,
		UpdatedAt: created,
	}
}
