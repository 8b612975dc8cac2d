package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/types"
)

type recordedItemsAdded struct {
	orderID  string
	tableID  string
	fragment types.ItemFragment
}

type recordedFinalized struct {
	orderID string
	tableID string
	total   decimal.Decimal
}

// notificationStub records emissions and optionally fails every call.
type notificationStub struct {
	NotificationService
	failWith   error
	itemsAdded []recordedItemsAdded
	finalized  []recordedFinalized
}

func (s *notificationStub) OrderItemsAdded(ctx context.Context, orderID, tableID string, fragment types.ItemFragment) (*types.Notification, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.itemsAdded = append(s.itemsAdded, recordedItemsAdded{orderID, tableID, fragment})
	return &types.Notification{ID: "stub"}, nil
}

func (s *notificationStub) OrderFinalized(ctx context.Context, orderID, tableID string, total decimal.Decimal) (*types.Notification, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.finalized = append(s.finalized, recordedFinalized{orderID, tableID, total})
	return &types.Notification{ID: "stub"}, nil
}

func tableOrder(status types.OrderStatus, manual bool, tableID *string) *types.Order {
	return &types.Order{
		ID:      uuid.New(),
		TableID: tableID,
		Status:  status,
		Manual:  manual,
	}
}

func TestItemAddedEmitsFragment(t *testing.T) {
	stub := &notificationStub{}
	bridge := NewOrderNotifier(logger.NewNop(), stub)

	tableID := "T01"
	order := tableOrder(types.StatusOpen, false, &tableID)
	note := "no onions"
	item := &types.OrderItem{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ProductID: uuid.New(),
		Product:   &types.Product{Name: "Margherita"},
		Quantity:  2,
		Note:      &note,
	}

	bridge.ItemAdded(context.Background(), order, item)

	if len(stub.itemsAdded) != 1 {
		t.Fatalf("emissions = %d, want 1", len(stub.itemsAdded))
	}
	got := stub.itemsAdded[0]
	if got.orderID != order.ID.String() || got.tableID != "T01" {
		t.Fatalf("emitted for (%s, %s), want (%s, T01)", got.orderID, got.tableID, order.ID)
	}
	if got.fragment.ProductName != "Margherita" || got.fragment.Quantity != 2 {
		t.Fatalf("fragment = %+v", got.fragment)
	}
	if got.fragment.Note == nil || *got.fragment.Note != "no onions" {
		t.Fatalf("fragment note = %v", got.fragment.Note)
	}
}

func TestItemAddedSkipsManualAndTablelessOrders(t *testing.T) {
	tableID := "T01"
	cases := []struct {
		name  string
		order *types.Order
	}{
		{name: "manual", order: tableOrder(types.StatusOpen, true, &tableID)},
		{name: "no_table", order: tableOrder(types.StatusOpen, false, nil)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &notificationStub{}
			bridge := NewOrderNotifier(logger.NewNop(), stub)
			item := &types.OrderItem{ID: uuid.New(), OrderID: tc.order.ID, ProductID: uuid.New(), Quantity: 1}

			bridge.ItemAdded(context.Background(), tc.order, item)

			if len(stub.itemsAdded) != 0 {
				t.Fatalf("emissions = %d, want 0", len(stub.itemsAdded))
			}
		})
	}
}

func TestOrderUpdatedEmitsOnFinalizeTransition(t *testing.T) {
	stub := &notificationStub{}
	bridge := NewOrderNotifier(logger.NewNop(), stub)

	tableID := "T02"
	before := tableOrder(types.StatusDelivered, false, &tableID)
	after := tableOrder(types.StatusFinalized, false, &tableID)
	after.ID = before.ID
	after.Items = []*types.OrderItem{
		{Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
	}
	// A stale stored total must not leak into the emission.
	after.Total = decimal.RequireFromString("99.99")

	bridge.OrderUpdated(context.Background(), before, after)

	if len(stub.finalized) != 1 {
		t.Fatalf("emissions = %d, want 1", len(stub.finalized))
	}
	got := stub.finalized[0]
	if got.orderID != after.ID.String() || got.tableID != "T02" {
		t.Fatalf("emitted for (%s, %s)", got.orderID, got.tableID)
	}
	if !got.total.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("total = %s, want 25.00", got.total)
	}
}

func TestOrderUpdatedSkipsNonFinalizeChanges(t *testing.T) {
	tableID := "T03"
	cases := []struct {
		name   string
		before *types.Order
		after  *types.Order
	}{
		{
			name:   "plain_status_move",
			before: tableOrder(types.StatusOpen, false, &tableID),
			after:  tableOrder(types.StatusReady, false, &tableID),
		},
		{
			name:   "already_finalized",
			before: tableOrder(types.StatusFinalized, false, &tableID),
			after:  tableOrder(types.StatusFinalized, false, &tableID),
		},
		{
			name:   "manual_order",
			before: tableOrder(types.StatusOpen, true, &tableID),
			after:  tableOrder(types.StatusFinalized, true, &tableID),
		},
		{
			name:   "no_table",
			before: tableOrder(types.StatusOpen, false, nil),
			after:  tableOrder(types.StatusFinalized, false, nil),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &notificationStub{}
			bridge := NewOrderNotifier(logger.NewNop(), stub)

			bridge.OrderUpdated(context.Background(), tc.before, tc.after)

			if len(stub.finalized) != 0 {
				t.Fatalf("emissions = %d, want 0", len(stub.finalized))
			}
		})
	}
}

func TestEmissionFailuresAreSwallowed(t *testing.T) {
	stub := &notificationStub{failWith: errors.New("store unavailable")}
	bridge := NewOrderNotifier(logger.NewNop(), stub)

	tableID := "T04"
	order := tableOrder(types.StatusOpen, false, &tableID)
	item := &types.OrderItem{ID: uuid.New(), OrderID: order.ID, ProductID: uuid.New(), Quantity: 1}

	// Neither call may panic or propagate the failure.
	bridge.ItemAdded(context.Background(), order, item)

	before := tableOrder(types.StatusDelivered, false, &tableID)
	after := tableOrder(types.StatusFinalized, false, &tableID)
	bridge.OrderUpdated(context.Background(), before, after)
}
