package lifecycle

import (
	"context"
	"testing"

	domain "github.com/partsdesk/api/internal/domain"
)

func TestRegistryControllersAreIndependent(t *testing.T) {
	ctx := context.Background()
	backend := newFakeOrderingBackend(map[string]domain.ReceiptStatus{
		"rcp_a": domain.ReceiptStatusDraft,
		"rcp_b": domain.ReceiptStatusSent,
	})
	reg, err := NewRegistry(backend)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	a := reg.Controller("rcp_a")
	b := reg.Controller("rcp_b")
	if a == b {
		t.Fatalf("expected distinct controllers per receipt")
	}
	if again := reg.Controller("rcp_a"); again != a {
		t.Fatalf("controller not reused for same receipt")
	}

	if err := a.Request(ReceiptRef{ID: "rcp_a", Status: domain.ReceiptStatusDraft}, KindApprove); err != nil {
		t.Fatalf("request a: %v", err)
	}
	if err := b.Request(ReceiptRef{ID: "rcp_b", Status: domain.ReceiptStatusSent}, KindCancel); err != nil {
		t.Fatalf("request b: %v", err)
	}
	if err := a.Confirm(ctx); err != nil {
		t.Fatalf("confirm a: %v", err)
	}
	if err := b.Confirm(ctx); err != nil {
		t.Fatalf("confirm b: %v", err)
	}

	if a.Token() != 1 || b.Token() != 1 {
		t.Fatalf("per-controller tokens wrong: a=%d b=%d", a.Token(), b.Token())
	}
	if reg.RefreshToken() != 2 {
		t.Fatalf("expected aggregate token 2, got %d", reg.RefreshToken())
	}
}

func TestRegistryReleaseDropsController(t *testing.T) {
	reg, err := NewRegistry(&stubTransitionClient{})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	first := reg.Controller("rcp_x")
	reg.Release("rcp_x")
	if second := reg.Controller("rcp_x"); second == first {
		t.Fatalf("released controller was reused")
	}
}

func TestRegistryListener(t *testing.T) {
	ctx := context.Background()
	var tokens []uint64
	reg, err := NewRegistry(&stubTransitionClient{}, WithRegistryRefreshListener(func(token uint64) {
		tokens = append(tokens, token)
	}))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	ctrl := reg.Controller("rcp_y")
	if err := ctrl.Request(ReceiptRef{ID: "rcp_y", Status: domain.ReceiptStatusDraft}, KindApprove); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := ctrl.Confirm(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != 1 {
		t.Fatalf("expected listener tokens [1], got %v", tokens)
	}
}

func TestRegistryRequiresClient(t *testing.T) {
	if _, err := NewRegistry(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewController(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
