package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/partsdesk/api/internal/domain"
	pfirestore "github.com/partsdesk/api/internal/platform/firestore"
)

const cartsCollection = "registerCarts"

// CartRepository persists POS register carts, keyed by register ID.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection, nil, nil)
	return &CartRepository{base: base}, nil
}

// GetCart loads the active cart for one register.
func (r *CartRepository) GetCart(ctx context.Context, registerID string) (domain.RegisterCart, error) {
	if r == nil || r.base == nil {
		return domain.RegisterCart{}, errors.New("cart repository not initialised")
	}
	registerID = strings.TrimSpace(registerID)
	if registerID == "" {
		return domain.RegisterCart{}, errors.New("cart repository: register id is required")
	}
	doc, err := r.base.Get(ctx, registerID)
	if err != nil {
		return domain.RegisterCart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// UpsertCart stores the full cart document keyed by register ID.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.RegisterCart) (domain.RegisterCart, error) {
	if r == nil || r.base == nil {
		return domain.RegisterCart{}, errors.New("cart repository not initialised")
	}
	registerID := strings.TrimSpace(cart.RegisterID)
	if registerID == "" {
		registerID = strings.TrimSpace(cart.ID)
	}
	if registerID == "" {
		return domain.RegisterCart{}, errors.New("cart repository: register id is required")
	}

	doc := encodeCartDocument(cart)
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	if _, err := r.base.Set(ctx, registerID, doc); err != nil {
		return domain.RegisterCart{}, err
	}
	return doc.toDomain(registerID), nil
}

// ReplaceLines swaps the cart's full line set, creating the cart document if
// the register has none yet. An empty slice empties the cart.
func (r *CartRepository) ReplaceLines(ctx context.Context, registerID string, lines []domain.CartLine) (domain.RegisterCart, error) {
	if r == nil || r.base == nil {
		return domain.RegisterCart{}, errors.New("cart repository not initialised")
	}
	registerID = strings.TrimSpace(registerID)
	if registerID == "" {
		return domain.RegisterCart{}, errors.New("cart repository: register id is required")
	}

	now := time.Now().UTC()
	existing, err := r.base.Get(ctx, registerID)
	doc := cartDocument{Currency: "USD"}
	switch {
	case err == nil:
		doc = existing.Data
	default:
		var repoErr *pfirestore.Error
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			return domain.RegisterCart{}, err
		}
	}

	doc.Lines = encodeCartLines(lines)
	doc.Subtotal = cartLinesSubtotal(doc.Lines)
	doc.UpdatedAt = now

	if _, err := r.base.Set(ctx, registerID, doc); err != nil {
		return domain.RegisterCart{}, err
	}
	return doc.toDomain(registerID), nil
}

type cartDocument struct {
	Currency  string             `firestore:"currency"`
	Lines     []cartLineDocument `firestore:"lines"`
	Subtotal  int64              `firestore:"subtotal"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	LineID    string `firestore:"lineId"`
	PartRef   string `firestore:"partRef"`
	SKU       string `firestore:"sku,omitempty"`
	Name      string `firestore:"name,omitempty"`
	Qty       int64  `firestore:"qty"`
	UnitPrice int64  `firestore:"unitPrice"`
}

func encodeCartDocument(cart domain.RegisterCart) cartDocument {
	doc := cartDocument{
		Currency:  strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Lines:     encodeCartLines(cart.Lines),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	doc.Subtotal = cartLinesSubtotal(doc.Lines)
	return doc
}

func encodeCartLines(lines []domain.CartLine) []cartLineDocument {
	out := make([]cartLineDocument, 0, len(lines))
	for _, line := range lines {
		out = append(out, cartLineDocument{
			LineID:    strings.TrimSpace(line.LineID),
			PartRef:   strings.TrimSpace(line.PartRef),
			SKU:       strings.TrimSpace(line.SKU),
			Name:      strings.TrimSpace(line.Name),
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}
	return out
}

func cartLinesSubtotal(lines []cartLineDocument) int64 {
	var subtotal int64
	for _, line := range lines {
		if line.Qty <= 0 || line.UnitPrice < 0 {
			continue
		}
		subtotal += line.UnitPrice * line.Qty
	}
	return subtotal
}

func (d cartDocument) toDomain(registerID string) domain.RegisterCart {
	lines := make([]domain.CartLine, 0, len(d.Lines))
	for _, line := range d.Lines {
		lines = append(lines, domain.CartLine{
			LineID:    strings.TrimSpace(line.LineID),
			PartRef:   strings.TrimSpace(line.PartRef),
			SKU:       strings.TrimSpace(line.SKU),
			Name:      strings.TrimSpace(line.Name),
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}
	return domain.RegisterCart{
		ID:         registerID,
		RegisterID: registerID,
		Currency:   strings.TrimSpace(d.Currency),
		Lines:      lines,
		Subtotal:   d.Subtotal,
		UpdatedAt:  d.UpdatedAt,
	}
}
