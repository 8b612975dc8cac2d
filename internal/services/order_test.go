package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/tableside-backend/internal/apperrors"
	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/repos"
	"github.com/yungbote/tableside-backend/internal/types"
)

var testDBCounter int64

// newLedger builds an OrderService on a fresh in-memory sqlite database.
// The shared-cache DSN keeps gorm's connection pool on one database.
func newLedger(t *testing.T) (OrderService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:ledgertest%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.Table{}, &types.Product{}, &types.Order{}, &types.OrderItem{}); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	log := logger.NewNop()
	svc := NewOrderService(db, log,
		repos.NewOrderRepo(db, log),
		repos.NewOrderItemRepo(db, log),
		repos.NewProductRepo(db, log),
		repos.NewTableRepo(db, log),
	)
	return svc, db
}

type testCatalog struct {
	tableID  string
	productA uuid.UUID // 10.00
	productB uuid.UUID // 5.00
}

func seedCatalog(t *testing.T, db *gorm.DB) testCatalog {
	t.Helper()

	cat := testCatalog{tableID: "T01", productA: uuid.New(), productB: uuid.New()}
	if err := db.Create(&types.Table{ID: cat.tableID, Name: "Table 1", Active: true}).Error; err != nil {
		t.Fatalf("seeding table: %v", err)
	}
	products := []*types.Product{
		{ID: cat.productA, Name: "Margherita", Price: decimal.RequireFromString("10.00"), Available: true},
		{ID: cat.productB, Name: "Lemonade", Price: decimal.RequireFromString("5.00"), Available: true},
	}
	if err := db.Create(&products).Error; err != nil {
		t.Fatalf("seeding products: %v", err)
	}
	return cat
}

func mustCreateOrder(t *testing.T, svc OrderService, cat testCatalog) *types.Order {
	t.Helper()

	order, err := svc.Create(context.Background(), CreateOrderInput{
		TableID: &cat.tableID,
		Items: []CreateOrderItemInput{
			{ProductID: cat.productA, Quantity: 2},
			{ProductID: cat.productB, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("creating order: %v", err)
	}
	return order
}

func assertTotal(t *testing.T, svc OrderService, orderID uuid.UUID, want string) {
	t.Helper()

	order, err := svc.Get(context.Background(), orderID)
	if err != nil {
		t.Fatalf("getting order: %v", err)
	}
	if !order.Total.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("stored total = %s, want %s", order.Total, want)
	}
	if !order.Total.Equal(order.ComputedTotal()) {
		t.Fatalf("stored total %s drifted from recomputed %s", order.Total, order.ComputedTotal())
	}
}

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }

func TestCreateOrderComputesTotal(t *testing.T) {
	svc, db := newLedger(t)
	cat := seedCatalog(t, db)

	order := mustCreateOrder(t, svc, cat)

	if order.Status != types.StatusOpen {
		t.Fatalf("status = %s, want %s", order.Status, types.StatusOpen)
	}
	if len(order.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(order.Items))
	}
	assertTotal(t, svc, order.ID, "25.00")
}

func TestCreateOrderValidation(t *testing.T) {
	svc, db := newLedger(t)
	cat := seedCatalog(t, db)

	cases := []struct {
		name string
		in   CreateOrderInput
		want error
	}{
		{
			name: "no_items",
			in:   CreateOrderInput{TableID: &cat.tableID},
			want: apperrors.ErrValidation,
		},
		{
			name: "non_positive_quantity",
			in: CreateOrderInput{
				TableID: &cat.tableID,
				Items:   []CreateOrderItemInput{{ProductID: cat.productA, Quantity: 0}},
			},
			want: apperrors.ErrValidation,
		},
		{
			name: "unknown_table",
			in: CreateOrderInput{
				TableID: strptr("T99"),
				Items:   []CreateOrderItemInput{{ProductID: cat.productA, Quantity: 1}},
			},
			want: apperrors.ErrNotFound,
		},
		{
			name: "unknown_product",
			in: CreateOrderInput{
				TableID: &cat.tableID,
				Items:   []CreateOrderItemInput{{ProductID: uuid.New(), Quantity: 1}},
			},
			want: apperrors.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("Create() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestAddItemMergesSameProductAndNote(t *testing.T) {
	svc, db := newLedger(t)
	cat := seedCatalog(t, db)
	order := mustCreateOrder(t, svc, cat)

	// Same product, no note on either side: merged into the existing line.
	item, err := svc.AddItem(context.Background(), order.ID, AddItemInput{ProductID: cat.productA, Quantity: 1})
	if err != nil {
		t.Fatalf("adding item: %v", err)
	}
	if item.Quantity != 3 {
		t.Fatalf("merged quantity = %d, want 3", item.Quantity)
	}
	assertTotal(t, svc, order.ID, "35.00")

	got, err := svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("getting order: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("item count after merge = %d, want 2", len(got.Items))
	}

	// A present note must match exactly: a new note makes a new line.
	if _, err := svc.AddItem(context.Background(), order.ID, AddItemInput{ProductID: cat.productA, Quantity: 1, Note: strptr("no basil")}); err != nil {
		t.Fatalf("adding noted item: %v", err)
	}
	got, err = svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("getting order: %v", err)
	}
	if len(got.Items) != 3 {
		t.Fatalf("item count after noted add = %d, want 3", len(got.Items))
	}
	assertTotal(t, svc, order.ID, "45.00")

	// Same note again: merged back into the noted line.
	noted, err := svc.AddItem(context.Background(), order.ID, AddItemInput{ProductID: cat.productA, Quantity: 2, Note: strptr("no basil")})
	if err != nil {
		t.Fatalf("re-adding noted item: %v", err)
	}
	if noted.Quantity != 3 {
		t.Fatalf("noted quantity = %d, want 3", noted.Quantity)
	}
	assertTotal(t, svc, order.ID, "65.00")
}

func TestItemMutationStatusGate(t *testing.T) {
	svc, db := newLedger(t)
	cat := seedCatalog(t, db)
	order := mustCreateOrder(t, svc, cat)

	ready := types.StatusReady
	if _, _, err := svc.Update(context.Background(), order.ID, UpdateOrderInput{Status: &ready}); err != nil {
		t.Fatalf("transitioning to READY: %v", err)
	}

	if _, err := svc.AddItem(context.Background(), order.ID, AddItemInput{ProductID: cat.productA, Quantity: 1}); !errors.Is(err, apperrors.ErrStateConflict) {
		t.Fatalf("AddItem error = %v, want %v", err, apperrors.ErrStateConflict)
	}

	got, err := svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("getting order: %v", err)
	}
	itemID := got.Items[0].ID
	if _, err := svc.UpdateItem(context.Background(), itemID, UpdateItemInput{Quantity: intptr(5)}); !errors.Is(err, apperrors.ErrStateConflict) {
		t.Fatalf("UpdateItem error = %v, want %v", err, apperrors.ErrStateConflict)
	}
	if err := svc.RemoveItem(context.Background(), itemID); !errors.Is(err, apperrors.ErrStateConflict) {
		t.Fatalf("RemoveItem error = %v, want %v", err, apperrors.ErrStateConflict)
	}

	// Nothing moved.
	assertTotal(t, svc, order.ID, "25.00")
	got, err = svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("getting order: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("item count = %d, want 2", len(got.Items))
	}
}

func TestUpdateItemRecomputesTotal(t *testing.T) {
	svc, db := newLedger(t)
	cat := seedCatalog(t, db)
	order := mustCreateOrder(t, svc, cat)

	got, err := svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("getting order: %v", err)
	}
	var lineA *types.OrderItem
	for _, it := range got.Items {
		if it.ProductID == cat.productA {
			lineA = it
		}
	}
	if lineA == nil {
		t.Fatalf("line for product A not found")
	}

	updated, err := svc.UpdateItem(context.Background(), lineA.ID, UpdateItemInput{Quantity: intptr(5)})
	if err != nil {
		t.Fatalf("updating item: %v", err)
	}
	if updated.Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", updated.Quantity)
	}
	// 5 x 10.00 + 1 x 5.00
	assertTotal(t, svc, order.ID, "55.00")

	if _, err := svc.UpdateItem(context.Background(), lineA.ID, UpdateItemInput{Quantity: intptr(0)}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("UpdateItem(0) error = %v, want %v", err, apperrors.ErrValidation)
	}
}

func TestRemoveItemAndLastItemInvariant(t *testing.T) {
	svc, db := newLedger(t)
	cat := seedCatalog(t, db)
	order := mustCreateOrder(t, svc, cat)

	// Merge one more A first, per the reference scenario.
	if _, err := svc.AddItem(context.Background(), order.ID, AddItemInput{ProductID: cat.productA, Quantity: 1}); err != nil {
		t.Fatalf("adding item: %v", err)
	}
	assertTotal(t, svc, order.ID, "35.00")

	got, err := svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("getting order: %v", err)
	}
	var lineA, lineB *types.OrderItem
	for _, it := range got.Items {
		switch it.ProductID {
		case cat.productA:
			lineA = it
		case cat.productB:
			lineB = it
		}
	}

	if err := svc.RemoveItem(context.Background(), lineB.ID); err != nil {
		t.Fatalf("removing line B: %v", err)
	}
	assertTotal(t, svc, order.ID, "30.00")

	got, err = svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("getting order: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("item count = %d, want 1", len(got.Items))
	}

	// The last line cannot be removed; the order must be deleted instead.
	if err := svc.RemoveItem(context.Background(), lineA.ID); !errors.Is(err, apperrors.ErrInvariantViolation) {
		t.Fatalf("RemoveItem error = %v, want %v", err, apperrors.ErrInvariantViolation)
	}
	assertTotal(t, svc, order.ID, "30.00")
	got, err = svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("getting order: %v", err)
	}
	if len(got.Items) != 1 {
		t.Fatalf("item count after rejected removal = %d, want 1", len(got.Items))
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		name string
		from types.OrderStatus
		to   types.OrderStatus
		ok   bool
	}{
		{name: "open_to_in_preparation", from: types.StatusOpen, to: types.StatusInPreparation, ok: true},
		{name: "open_skips_to_delivered", from: types.StatusOpen, to: types.StatusDelivered, ok: true},
		{name: "ready_back_to_open", from: types.StatusReady, to: types.StatusOpen, ok: false},
		{name: "open_to_canceled", from: types.StatusOpen, to: types.StatusCanceled, ok: true},
		{name: "canceled_to_delivered", from: types.StatusCanceled, to: types.StatusDelivered, ok: false},
		{name: "canceled_to_finalized", from: types.StatusCanceled, to: types.StatusFinalized, ok: true},
		{name: "delivered_to_finalized", from: types.StatusDelivered, to: types.StatusFinalized, ok: true},
		{name: "finalized_to_canceled", from: types.StatusFinalized, to: types.StatusCanceled, ok: false},
		{name: "same_status", from: types.StatusReady, to: types.StatusReady, ok: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
			}
		})
	}
}

func TestUpdateReturnsBeforeAndAfter(t *testing.T) {
	svc, db := newLedger(t)
	cat := seedCatalog(t, db)
	order := mustCreateOrder(t, svc, cat)

	finalized := types.StatusFinalized
	before, after, err := svc.Update(context.Background(), order.ID, UpdateOrderInput{
		Status:      &finalized,
		GeneralNote: strptr("split the bill"),
	})
	if err != nil {
		t.Fatalf("updating order: %v", err)
	}
	if before.Status != types.StatusOpen {
		t.Fatalf("before status = %s, want %s", before.Status, types.StatusOpen)
	}
	if after.Status != types.StatusFinalized {
		t.Fatalf("after status = %s, want %s", after.Status, types.StatusFinalized)
	}
	if after.GeneralNote == nil || *after.GeneralNote != "split the bill" {
		t.Fatalf("after note = %v, want split the bill", after.GeneralNote)
	}
	if before.GeneralNote != nil {
		t.Fatalf("before note mutated: %v", *before.GeneralNote)
	}

	open := types.StatusOpen
	if _, _, err := svc.Update(context.Background(), order.ID, UpdateOrderInput{Status: &open}); !errors.Is(err, apperrors.ErrStateConflict) {
		t.Fatalf("reopening finalized order error = %v, want %v", err, apperrors.ErrStateConflict)
	}
}

func TestDeleteCascadesToItems(t *testing.T) {
	svc, db := newLedger(t)
	cat := seedCatalog(t, db)
	order := mustCreateOrder(t, svc, cat)

	if err := svc.Delete(context.Background(), order.ID); err != nil {
		t.Fatalf("deleting order: %v", err)
	}
	if _, err := svc.Get(context.Background(), order.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Get after delete error = %v, want %v", err, apperrors.ErrNotFound)
	}

	var remaining int64
	if err := db.Model(&types.OrderItem{}).Where("order_id = ?", order.ID).Count(&remaining).Error; err != nil {
		t.Fatalf("counting items: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("orphaned items = %d, want 0", remaining)
	}

	if err := svc.Delete(context.Background(), order.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("second delete error = %v, want %v", err, apperrors.ErrNotFound)
	}
}

func TestRunningTotalNeverDrifts(t *testing.T) {
	svc, db := newLedger(t)
	cat := seedCatalog(t, db)
	order := mustCreateOrder(t, svc, cat)

	steps := []func() error{
		func() error {
			_, err := svc.AddItem(context.Background(), order.ID, AddItemInput{ProductID: cat.productB, Quantity: 3})
			return err
		},
		func() error {
			_, err := svc.AddItem(context.Background(), order.ID, AddItemInput{ProductID: cat.productA, Quantity: 2, Note: strptr("extra cheese")})
			return err
		},
		func() error {
			got, err := svc.Get(context.Background(), order.ID)
			if err != nil {
				return err
			}
			_, err = svc.UpdateItem(context.Background(), got.Items[0].ID, UpdateItemInput{Quantity: intptr(4)})
			return err
		},
		func() error {
			got, err := svc.Get(context.Background(), order.ID)
			if err != nil {
				return err
			}
			return svc.RemoveItem(context.Background(), got.Items[len(got.Items)-1].ID)
		},
	}

	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		got, err := svc.Get(context.Background(), order.ID)
		if err != nil {
			t.Fatalf("step %d get: %v", i, err)
		}
		if !got.Total.Equal(got.ComputedTotal()) {
			t.Fatalf("step %d: stored total %s != recomputed %s", i, got.Total, got.ComputedTotal())
		}
	}
}
