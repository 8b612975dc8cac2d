package services

import (
	"context"

	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/types"
)

// orderNotifier bridges committed ledger outcomes to the notification
// aggregator. Emission failures are logged and swallowed: a lost
// notification must never surface as a failed order mutation.
type orderNotifier struct {
	log           *logger.Logger
	notifications NotificationService
}

func NewOrderNotifier(log *logger.Logger, notifications NotificationService) OrderObserver {
	serviceLog := log.With("service", "OrderNotifier")
	return &orderNotifier{log: serviceLog, notifications: notifications}
}

func (on *orderNotifier) ItemAdded(ctx context.Context, order *types.Order, item *types.OrderItem) {
	if on == nil || on.notifications == nil || order == nil || item == nil {
		return
	}
	// Manual orders and orders without a table stay out of the
	// customer-facing flow.
	if order.Manual || order.TableID == nil {
		return
	}

	fragment := types.ItemFragment{
		OrderID:   order.ID.String(),
		TableID:   *order.TableID,
		ProductID: item.ProductID.String(),
		Quantity:  item.Quantity,
		Note:      item.Note,
	}
	if item.Product != nil {
		fragment.ProductName = item.Product.Name
	}

	if _, err := on.notifications.OrderItemsAdded(ctx, order.ID.String(), *order.TableID, fragment); err != nil {
		on.log.Warn("Failed to emit items-added notification", "order_id", order.ID, "error", err)
	}
}

func (on *orderNotifier) OrderUpdated(ctx context.Context, before, after *types.Order) {
	if on == nil || on.notifications == nil || before == nil || after == nil {
		return
	}
	if after.Status != types.StatusFinalized || before.Status == types.StatusFinalized {
		return
	}
	if after.Manual || after.TableID == nil {
		return
	}

	// Recompute the total from the items rather than trusting the stored
	// running total.
	total := after.ComputedTotal()
	if _, err := on.notifications.OrderFinalized(ctx, after.ID.String(), *after.TableID, total); err != nil {
		on.log.Warn("Failed to emit order-finalized notification", "order_id", after.ID, "error", err)
	}
}
