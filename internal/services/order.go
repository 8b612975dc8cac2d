package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yungbote/tableside-backend/internal/apperrors"
	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/repos"
	"github.com/yungbote/tableside-backend/internal/types"
)

// OrderObserver receives post-commit ledger outcomes. Implementations must
// not fail the mutation: they are invoked after the transaction has
// committed and their errors are their own problem.
type OrderObserver interface {
	ItemAdded(ctx context.Context, order *types.Order, item *types.OrderItem)
	OrderUpdated(ctx context.Context, before, after *types.Order)
}

type CreateOrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Note      *string
}

type CreateOrderInput struct {
	TableID     *string
	Items       []CreateOrderItemInput
	GeneralNote *string
	Manual      bool
}

type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Note      *string
}

type UpdateItemInput struct {
	Quantity *int
	Note     *string
}

type UpdateOrderInput struct {
	Status      *types.OrderStatus
	GeneralNote *string
	TableID     *string
}

type OrderService interface {
	Create(ctx context.Context, in CreateOrderInput) (*types.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*types.Order, error)
	List(ctx context.Context, filter repos.OrderFilter) ([]*types.Order, int64, error)
	AddItem(ctx context.Context, orderID uuid.UUID, in AddItemInput) (*types.OrderItem, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, in UpdateItemInput) (*types.OrderItem, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
	Update(ctx context.Context, orderID uuid.UUID, in UpdateOrderInput) (*types.Order, *types.Order, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
	Register(observer OrderObserver)
}

type orderService struct {
	db          *gorm.DB
	log         *logger.Logger
	orderRepo   repos.OrderRepo
	itemRepo    repos.OrderItemRepo
	productRepo repos.ProductRepo
	tableRepo   repos.TableRepo
	locks       *orderLocks

	observerMu sync.RWMutex
	observers  []OrderObserver
}

func NewOrderService(
	db *gorm.DB,
	log *logger.Logger,
	orderRepo repos.OrderRepo,
	itemRepo repos.OrderItemRepo,
	productRepo repos.ProductRepo,
	tableRepo repos.TableRepo,
) OrderService {
	serviceLog := log.With("service", "OrderService")
	return &orderService{
		db:          db,
		log:         serviceLog,
		orderRepo:   orderRepo,
		itemRepo:    itemRepo,
		productRepo: productRepo,
		tableRepo:   tableRepo,
		locks:       newOrderLocks(),
	}
}

func (os *orderService) Register(observer OrderObserver) {
	if observer == nil {
		return
	}
	os.observerMu.Lock()
	os.observers = append(os.observers, observer)
	os.observerMu.Unlock()
}

func (os *orderService) notifyItemAdded(ctx context.Context, order *types.Order, item *types.OrderItem) {
	os.observerMu.RLock()
	observers := os.observers
	os.observerMu.RUnlock()
	for _, obs := range observers {
		obs.ItemAdded(ctx, order, item)
	}
}

func (os *orderService) notifyOrderUpdated(ctx context.Context, before, after *types.Order) {
	os.observerMu.RLock()
	observers := os.observers
	os.observerMu.RUnlock()
	for _, obs := range observers {
		obs.OrderUpdated(ctx, before, after)
	}
}

func (os *orderService) Create(ctx context.Context, in CreateOrderInput) (*types.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperrors.Validationf("an order requires at least one item")
	}
	for _, line := range in.Items {
		if line.Quantity <= 0 {
			return nil, apperrors.Validationf("quantity must be positive, got %d", line.Quantity)
		}
	}

	order := &types.Order{
		ID:          uuid.New(),
		TableID:     in.TableID,
		Status:      types.StatusOpen,
		Total:       decimal.Zero,
		GeneralNote: in.GeneralNote,
		Manual:      in.Manual,
	}

	if err := os.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.TableID != nil {
			table, err := os.tableRepo.GetByID(ctx, tx, *in.TableID)
			if err != nil {
				return fmt.Errorf("looking up table: %w", err)
			}
			if table == nil {
				return apperrors.NotFoundf("table %s not found", *in.TableID)
			}
		}

		if _, err := os.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		total := decimal.Zero
		items := make([]*types.OrderItem, 0, len(in.Items))
		for _, line := range in.Items {
			product, err := os.productRepo.GetByID(ctx, tx, line.ProductID)
			if err != nil {
				return fmt.Errorf("looking up product: %w", err)
			}
			if product == nil {
				return apperrors.NotFoundf("product %s not found", line.ProductID)
			}
			item := &types.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: product.ID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
				Note:      line.Note,
			}
			items = append(items, item)
			total = total.Add(item.LineTotal())
		}

		if _, err := os.itemRepo.Create(ctx, tx, items); err != nil {
			return fmt.Errorf("creating order items: %w", err)
		}

		order.Total = total
		if err := os.orderRepo.Save(ctx, tx, order); err != nil {
			return fmt.Errorf("saving order total: %w", err)
		}
		order.Items = items
		return nil
	}); err != nil {
		return nil, err
	}

	return order, nil
}

func (os *orderService) Get(ctx context.Context, orderID uuid.UUID) (*types.Order, error) {
	order, err := os.orderRepo.GetByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperrors.NotFoundf("order %s not found", orderID)
	}
	return order, nil
}

func (os *orderService) List(ctx context.Context, filter repos.OrderFilter) ([]*types.Order, int64, error) {
	return os.orderRepo.List(ctx, nil, filter)
}

func (os *orderService) AddItem(ctx context.Context, orderID uuid.UUID, in AddItemInput) (*types.OrderItem, error) {
	if in.Quantity <= 0 {
		return nil, apperrors.Validationf("quantity must be positive, got %d", in.Quantity)
	}

	os.locks.lock(orderID)

	var order *types.Order
	var result *types.OrderItem
	err := os.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = os.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("looking up order: %w", err)
		}
		if order == nil {
			return apperrors.NotFoundf("order %s not found", orderID)
		}
		if !order.ItemsMutable() {
			return apperrors.StateConflictf("cannot add items to an order with status %s", order.Status)
		}

		product, err := os.productRepo.GetByID(ctx, tx, in.ProductID)
		if err != nil {
			return fmt.Errorf("looking up product: %w", err)
		}
		if product == nil {
			return apperrors.NotFoundf("product %s not found", in.ProductID)
		}

		existing, err := os.itemRepo.GetByOrderProductNote(ctx, tx, orderID, product.ID, in.Note)
		if err != nil {
			return fmt.Errorf("looking up existing line: %w", err)
		}

		if existing != nil {
			// Merge: bump the existing line and add only the delta to the
			// running total, priced at the line's captured unit price.
			existing.Quantity += in.Quantity
			delta := existing.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
			if err := os.itemRepo.Save(ctx, tx, existing); err != nil {
				return fmt.Errorf("saving merged line: %w", err)
			}
			order.Total = order.Total.Add(delta)
			result = existing
		} else {
			item := &types.OrderItem{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: product.ID,
				Quantity:  in.Quantity,
				UnitPrice: product.Price,
				Note:      in.Note,
			}
			if _, err := os.itemRepo.Create(ctx, tx, []*types.OrderItem{item}); err != nil {
				return fmt.Errorf("creating line: %w", err)
			}
			order.Total = order.Total.Add(item.LineTotal())
			result = item
		}

		if err := os.orderRepo.Save(ctx, tx, order); err != nil {
			return fmt.Errorf("saving order total: %w", err)
		}
		result.Product = product
		return nil
	})
	os.locks.unlock(orderID)
	if err != nil {
		return nil, err
	}

	os.notifyItemAdded(ctx, order, result)
	return result, nil
}

func (os *orderService) UpdateItem(ctx context.Context, itemID uuid.UUID, in UpdateItemInput) (*types.OrderItem, error) {
	if in.Quantity != nil && *in.Quantity <= 0 {
		return nil, apperrors.Validationf("quantity must be positive, got %d", *in.Quantity)
	}

	// Resolve the parent order outside the lock, then re-read inside it.
	probe, err := os.itemRepo.GetByID(ctx, nil, itemID)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, apperrors.NotFoundf("order item %s not found", itemID)
	}
	orderID := probe.OrderID

	os.locks.lock(orderID)
	defer os.locks.unlock(orderID)

	var result *types.OrderItem
	err = os.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := os.itemRepo.GetByID(ctx, tx, itemID)
		if err != nil {
			return fmt.Errorf("looking up item: %w", err)
		}
		if item == nil {
			return apperrors.NotFoundf("order item %s not found", itemID)
		}
		order, err := os.orderRepo.GetByID(ctx, tx, item.OrderID)
		if err != nil {
			return fmt.Errorf("looking up order: %w", err)
		}
		if order == nil {
			return apperrors.NotFoundf("order %s not found", item.OrderID)
		}
		if !order.ItemsMutable() {
			return apperrors.StateConflictf("cannot edit items of an order with status %s", order.Status)
		}

		// Recompute both contributions from quantity x unit price rather
		// than trusting any stored delta.
		oldContribution := item.LineTotal()
		if in.Quantity != nil {
			item.Quantity = *in.Quantity
		}
		if in.Note != nil {
			item.Note = in.Note
		}
		newContribution := item.LineTotal()

		if err := os.itemRepo.Save(ctx, tx, item); err != nil {
			return fmt.Errorf("saving item: %w", err)
		}
		order.Total = order.Total.Sub(oldContribution).Add(newContribution)
		if err := os.orderRepo.Save(ctx, tx, order); err != nil {
			return fmt.Errorf("saving order total: %w", err)
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (os *orderService) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	probe, err := os.itemRepo.GetByID(ctx, nil, itemID)
	if err != nil {
		return err
	}
	if probe == nil {
		return apperrors.NotFoundf("order item %s not found", itemID)
	}
	orderID := probe.OrderID

	os.locks.lock(orderID)
	defer os.locks.unlock(orderID)

	return os.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := os.itemRepo.GetByID(ctx, tx, itemID)
		if err != nil {
			return fmt.Errorf("looking up item: %w", err)
		}
		if item == nil {
			return apperrors.NotFoundf("order item %s not found", itemID)
		}
		order, err := os.orderRepo.GetByID(ctx, tx, item.OrderID)
		if err != nil {
			return fmt.Errorf("looking up order: %w", err)
		}
		if order == nil {
			return apperrors.NotFoundf("order %s not found", item.OrderID)
		}
		if !order.ItemsMutable() {
			return apperrors.StateConflictf("cannot remove items from an order with status %s", order.Status)
		}

		count, err := os.itemRepo.CountByOrderID(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("counting items: %w", err)
		}
		if count <= 1 {
			return apperrors.InvariantViolationf("cannot remove the last item of an order; delete the order instead")
		}

		if err := os.itemRepo.Delete(ctx, tx, item.ID); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		order.Total = order.Total.Sub(item.LineTotal())
		if err := os.orderRepo.Save(ctx, tx, order); err != nil {
			return fmt.Errorf("saving order total: %w", err)
		}
		return nil
	})
}

// Update applies status, note and table changes and returns the order as it
// was before and after the mutation so callers can detect transitions.
func (os *orderService) Update(ctx context.Context, orderID uuid.UUID, in UpdateOrderInput) (*types.Order, *types.Order, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, nil, apperrors.Validationf("unknown order status %q", *in.Status)
	}

	os.locks.lock(orderID)

	var before, after *types.Order
	err := os.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		before, err = os.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("looking up order: %w", err)
		}
		if before == nil {
			return apperrors.NotFoundf("order %s not found", orderID)
		}

		clone := *before
		after = &clone

		if in.Status != nil {
			if !before.Status.CanTransitionTo(*in.Status) {
				return apperrors.StateConflictf("cannot transition order from %s to %s", before.Status, *in.Status)
			}
			after.Status = *in.Status
		}
		if in.TableID != nil {
			table, err := os.tableRepo.GetByID(ctx, tx, *in.TableID)
			if err != nil {
				return fmt.Errorf("looking up table: %w", err)
			}
			if table == nil {
				return apperrors.NotFoundf("table %s not found", *in.TableID)
			}
			after.TableID = in.TableID
		}
		if in.GeneralNote != nil {
			after.GeneralNote = in.GeneralNote
		}

		return os.orderRepo.Save(ctx, tx, after)
	})
	os.locks.unlock(orderID)
	if err != nil {
		return nil, nil, err
	}

	os.notifyOrderUpdated(ctx, before, after)
	return before, after, nil
}

func (os *orderService) Delete(ctx context.Context, orderID uuid.UUID) error {
	os.locks.lock(orderID)
	defer os.locks.unlock(orderID)

	return os.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := os.orderRepo.GetByID(ctx, tx, orderID)
		if err != nil {
			return fmt.Errorf("looking up order: %w", err)
		}
		if order == nil {
			return apperrors.NotFoundf("order %s not found", orderID)
		}
		return os.orderRepo.Delete(ctx, tx, orderID)
	})
}
