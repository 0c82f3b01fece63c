package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/partsdesk/api/internal/domain"
	pfirestore "github.com/partsdesk/api/internal/platform/firestore"
	"github.com/partsdesk/api/internal/platform/pagination"
	"github.com/partsdesk/api/internal/repositories"
)

const inventoryCollection = "inventory"

// InventoryRepository manages per-part stock positions. Deltas are applied in
// a single Firestore transaction so a request either moves every part or none.
type InventoryRepository struct {
	provider *pfirestore.Provider
	stocks   *pfirestore.BaseRepository[stockDocument]
}

// NewInventoryRepository constructs a Firestore-backed inventory repository.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	stocks := pfirestore.NewBaseRepository[stockDocument](provider, inventoryCollection, nil, nil)
	return &InventoryRepository{provider: provider, stocks: stocks}, nil
}

// GetStock fetches the stock position for one part.
func (r *InventoryRepository) GetStock(ctx context.Context, partRef string) (domain.PartStock, error) {
	if r == nil || r.stocks == nil {
		return domain.PartStock{}, errors.New("inventory repository not initialised")
	}
	partRef = strings.TrimSpace(partRef)
	if partRef == "" {
		return domain.PartStock{}, repositories.NewInventoryError(repositories.InventoryErrorUnknown, "inventory get: part ref is required", nil)
	}

	doc, err := r.stocks.Get(ctx, partRef)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.PartStock{}, repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, fmt.Sprintf("stock %s not found", partRef), err)
		}
		return domain.PartStock{}, wrapInventoryError("inventory.get", err)
	}

	return doc.Data.toDomain(doc.ID), nil
}

// ApplyDeltas applies every signed movement in req inside one transaction. A
// positive delta creates the stock record when absent; a negative delta that
// would push on-hand below zero fails the whole request.
func (r *InventoryRepository) ApplyDeltas(ctx context.Context, req repositories.StockDeltaRequest) (repositories.StockDeltaResult, error) {
	if r == nil || r.provider == nil {
		return repositories.StockDeltaResult{}, errors.New("inventory repository not initialised")
	}
	if len(req.Deltas) == 0 {
		return repositories.StockDeltaResult{}, repositories.NewInventoryError(repositories.InventoryErrorUnknown, "inventory apply: at least one delta is required", nil)
	}

	now := req.Now.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result repositories.StockDeltaResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stocks := make(map[string]domain.PartStock, len(req.Deltas))
		for _, delta := range req.Deltas {
			partRef := strings.TrimSpace(delta.PartRef)
			if partRef == "" {
				return repositories.NewInventoryError(repositories.InventoryErrorUnknown, "inventory apply: part ref is required", nil)
			}
			if delta.Delta == 0 {
				return repositories.NewInventoryError(repositories.InventoryErrorUnknown, fmt.Sprintf("inventory apply: delta for %s cannot be zero", partRef), nil)
			}

			stockRef, err := r.stocks.DocumentRef(ctx, partRef)
			if err != nil {
				return err
			}

			var doc stockDocument
			snap, err := tx.Get(stockRef)
			switch {
			case err == nil:
				if err := snap.DataTo(&doc); err != nil {
					return fmt.Errorf("decode inventory stock %s: %w", partRef, err)
				}
			case status.Code(err) == codes.NotFound:
				if delta.Delta < 0 {
					return repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, fmt.Sprintf("stock %s not found", partRef), err)
				}
				doc = stockDocument{}
			default:
				return err
			}

			newOnHand := doc.OnHand + delta.Delta
			if newOnHand < 0 {
				return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, fmt.Sprintf("insufficient stock for %s", partRef), nil)
			}

			doc.OnHand = newOnHand
			if sku := strings.TrimSpace(delta.SKU); sku != "" {
				doc.SKU = sku
			}
			doc.UpdatedAt = now
			doc.recalculate()
			if err := tx.Set(stockRef, doc); err != nil {
				return err
			}
			stocks[partRef] = doc.toDomain(partRef)
		}

		result = repositories.StockDeltaResult{Stocks: stocks}
		return nil
	})
	if err != nil {
		return repositories.StockDeltaResult{}, wrapInventoryError("inventory.applyDeltas", err)
	}
	return result, nil
}

// UpsertStock replaces the full stock position for a part, including the
// safety floor. Used by manual provisioning rather than movements.
func (r *InventoryRepository) UpsertStock(ctx context.Context, stock domain.PartStock) (domain.PartStock, error) {
	if r == nil || r.provider == nil {
		return domain.PartStock{}, errors.New("inventory repository not initialised")
	}
	partRef := strings.TrimSpace(stock.PartRef)
	if partRef == "" {
		return domain.PartStock{}, repositories.NewInventoryError(repositories.InventoryErrorUnknown, "inventory upsert: part ref is required", nil)
	}
	if stock.OnHand < 0 || stock.SafetyStock < 0 {
		return domain.PartStock{}, repositories.NewInventoryError(repositories.InventoryErrorUnknown, "inventory upsert: quantities must be >= 0", nil)
	}

	now := stock.UpdatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var updated domain.PartStock
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stockRef, err := r.stocks.DocumentRef(ctx, partRef)
		if err != nil {
			return err
		}
		var doc stockDocument
		snap, err := tx.Get(stockRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			doc = stockDocument{}
		} else if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode inventory stock %s: %w", partRef, err)
		}
		doc.SKU = strings.TrimSpace(stock.SKU)
		doc.OnHand = stock.OnHand
		doc.Reserved = stock.Reserved
		doc.SafetyStock = stock.SafetyStock
		doc.UpdatedAt = now
		doc.recalculate()
		if err := tx.Set(stockRef, doc); err != nil {
			return err
		}
		updated = doc.toDomain(partRef)
		return nil
	})
	if err != nil {
		return domain.PartStock{}, wrapInventoryError("inventory.upsert", err)
	}
	return updated, nil
}

// ListLowStock pages through parts whose availability sits at or below the
// threshold, or below their safety floor when no threshold is given.
func (r *InventoryRepository) ListLowStock(ctx context.Context, query repositories.LowStockQuery) (domain.CursorPage[domain.PartStock], error) {
	if r == nil || r.stocks == nil {
		return domain.CursorPage[domain.PartStock]{}, errors.New("inventory repository not initialised")
	}

	pageSize := pagination.ClampPageSize(query.PageSize, 50, 200)

	var decodedToken *inventoryPageToken
	if token := strings.TrimSpace(query.PageToken); token != "" {
		var tok inventoryPageToken
		if err := pagination.DecodeToken(token, &tok); err != nil {
			return domain.CursorPage[domain.PartStock]{}, wrapInventoryError("inventory.lowStock", err)
		}
		decodedToken = &tok
	}

	docs, err := r.stocks.Query(ctx, func(q firestore.Query) firestore.Query {
		if query.Threshold > 0 {
			q = q.Where("available", "<=", int64(query.Threshold)).OrderBy("available", firestore.Asc)
		} else {
			q = q.Where("safetyDelta", "<", int64(0)).OrderBy("safetyDelta", firestore.Asc)
		}
		q = q.OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)
		if decodedToken != nil {
			if query.Threshold > 0 {
				q = q.StartAfter(decodedToken.Available, decodedToken.PartRef)
			} else {
				q = q.StartAfter(decodedToken.SafetyDelta, decodedToken.PartRef)
			}
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.PartStock]{}, wrapInventoryError("inventory.lowStock", err)
	}

	stocks := make([]domain.PartStock, 0, len(docs))
	for _, doc := range docs {
		stocks = append(stocks, doc.Data.toDomain(doc.ID))
	}

	hasMore := len(stocks) > pageSize
	if hasMore {
		stocks = stocks[:pageSize]
	}
	var nextToken string
	if hasMore && len(stocks) > 0 {
		last := stocks[len(stocks)-1]
		encoded, err := pagination.EncodeToken(inventoryPageToken{
			PartRef:     last.PartRef,
			Available:   last.Available,
			SafetyDelta: last.Available - last.SafetyStock,
		})
		if err != nil {
			return domain.CursorPage[domain.PartStock]{}, wrapInventoryError("inventory.lowStock", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.PartStock]{
		Items:         stocks,
		NextPageToken: nextToken,
	}, nil
}

// Helper structures ---------------------------------------------------------

type stockDocument struct {
	SKU         string    `firestore:"sku"`
	OnHand      int64     `firestore:"onHand"`
	Reserved    int64     `firestore:"reserved"`
	Available   int64     `firestore:"available"`
	SafetyStock int64     `firestore:"safetyStock"`
	SafetyDelta int64     `firestore:"safetyDelta"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func (s *stockDocument) recalculate() {
	s.Available = s.OnHand - s.Reserved
	s.SafetyDelta = s.Available - s.SafetyStock
}

func (s stockDocument) toDomain(id string) domain.PartStock {
	return domain.PartStock{
		PartRef:     id,
		SKU:         strings.TrimSpace(s.SKU),
		OnHand:      s.OnHand,
		Reserved:    s.Reserved,
		Available:   s.Available,
		SafetyStock: s.SafetyStock,
		UpdatedAt:   s.UpdatedAt,
	}
}

type inventoryPageToken struct {
	PartRef     string `json:"partRef"`
	Available   int64  `json:"available"`
	SafetyDelta int64  `json:"safetyDelta"`
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}
