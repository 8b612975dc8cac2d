package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yungbote/tableside-backend/internal/apperrors"
	"github.com/yungbote/tableside-backend/internal/clients/redis"
	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/types"
)

const (
	notificationKeyPrefix = "notification:"
	unreadIndexKey        = "notifications:unread"
	aggregationKeyPrefix  = "notification:agg:"

	// DefaultRetentionTTL bounds how long a notification survives in the
	// store regardless of read state.
	DefaultRetentionTTL = 24 * time.Hour
	// DefaultAggregationWindow is how long after the latest contribution a
	// (type, entity) stream keeps merging into the same notification.
	DefaultAggregationWindow = 10 * time.Second

	defaultUnreadLimit = 50
)

type NotificationConfig struct {
	RetentionTTL      time.Duration
	AggregationWindow time.Duration
}

type NotificationService interface {
	// Create stores n, merging it into the open aggregation window for
	// (n.Type, n.EntityID) when aggregate is true and a window is open.
	// The returned notification is the stored record, which keeps its
	// original identifier across merges.
	Create(ctx context.Context, n *types.Notification, aggregate bool) (*types.Notification, error)
	WaiterCall(ctx context.Context, tableID string) (*types.Notification, error)
	OrderItemsAdded(ctx context.Context, orderID, tableID string, fragment types.ItemFragment) (*types.Notification, error)
	OrderFinalized(ctx context.Context, orderID, tableID string, total decimal.Decimal) (*types.Notification, error)
	Get(ctx context.Context, id string) (*types.Notification, error)
	ListUnread(ctx context.Context, limit int) ([]*types.Notification, error)
	MarkRead(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type notificationService struct {
	kv  redis.KVStore
	log *logger.Logger
	cfg NotificationConfig
	now func() time.Time
}

func NewNotificationService(kv redis.KVStore, log *logger.Logger, cfg NotificationConfig) NotificationService {
	serviceLog := log.With("service", "NotificationService")
	if cfg.RetentionTTL <= 0 {
		cfg.RetentionTTL = DefaultRetentionTTL
	}
	if cfg.AggregationWindow <= 0 {
		cfg.AggregationWindow = DefaultAggregationWindow
	}
	return &notificationService{
		kv:  kv,
		log: serviceLog,
		cfg: cfg,
		now: time.Now,
	}
}

func notificationKey(id string) string {
	return notificationKeyPrefix + id
}

func aggregationKey(t types.NotificationType, entityID string) string {
	return fmt.Sprintf("%s%s:%s", aggregationKeyPrefix, t, entityID)
}

// applyMergeRules re-derives the summary content of an aggregated
// notification from its fragment list. Dispatch is exhaustive over the
// closed type set.
func applyMergeRules(n *types.Notification) error {
	switch n.Type {
	case types.NotificationOrderItemsAdded:
		if n.ItemsAdded == nil || len(n.Items) == 0 {
			return fmt.Errorf("items-added notification %s has no content to merge", n.ID)
		}
		last := n.Items[len(n.Items)-1]
		n.ItemsAdded.Message = fmt.Sprintf("%d items added to the order for table %s", n.Count, last.TableID)
		return nil
	case types.NotificationWaiterCall, types.NotificationOrderFinalized:
		// Never aggregated; nothing to re-derive.
		return nil
	default:
		return fmt.Errorf("unknown notification type %q", n.Type)
	}
}

func (ns *notificationService) Create(ctx context.Context, n *types.Notification, aggregate bool) (*types.Notification, error) {
	if n == nil || !n.Type.Valid() {
		return nil, apperrors.Validationf("notification type is required")
	}
	if n.EntityID == "" {
		return nil, apperrors.Validationf("notification entity id is required")
	}

	now := ns.now().Unix()
	isNew := true

	if aggregate {
		// Best-effort read-modify-write: concurrent contributions within
		// the same window can race and one merge can be lost. Accepted.
		merged, err := ns.tryMerge(ctx, n, now)
		if err != nil {
			return nil, err
		}
		if merged != nil {
			n = merged
			isNew = false
		}
	}

	if isNew {
		n.ID = uuid.NewString()
		n.CreatedAt = now
		n.UpdatedAt = now
		n.Read = false
		if aggregate {
			n.Count = len(n.Items)
		}
	}

	raw, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshaling notification: %w", err)
	}
	if err := ns.kv.Set(ctx, notificationKey(n.ID), string(raw), ns.cfg.RetentionTTL); err != nil {
		return nil, fmt.Errorf("storing notification: %w", err)
	}

	if aggregate {
		// Rewrite the marker on every contribution so the window slides
		// forward instead of closing at a fixed deadline.
		marker := types.AggregationMarker{NotificationID: n.ID, LastUpdate: now}
		rawMarker, err := json.Marshal(marker)
		if err != nil {
			return nil, fmt.Errorf("marshaling aggregation marker: %w", err)
		}
		if err := ns.kv.Set(ctx, aggregationKey(n.Type, n.EntityID), string(rawMarker), ns.cfg.AggregationWindow); err != nil {
			return nil, fmt.Errorf("storing aggregation marker: %w", err)
		}
	}

	if isNew {
		if err := ns.kv.ZAdd(ctx, unreadIndexKey, n.ID, float64(now)); err != nil {
			return nil, fmt.Errorf("indexing notification: %w", err)
		}
		if err := ns.kv.Expire(ctx, unreadIndexKey, ns.cfg.RetentionTTL); err != nil {
			return nil, fmt.Errorf("refreshing unread index ttl: %w", err)
		}
	}

	return n, nil
}

// tryMerge folds n into the notification referenced by the open aggregation
// marker, if any. Returns nil when no merge happened.
func (ns *notificationService) tryMerge(ctx context.Context, n *types.Notification, now int64) (*types.Notification, error) {
	rawMarker, ok, err := ns.kv.Get(ctx, aggregationKey(n.Type, n.EntityID))
	if err != nil {
		return nil, fmt.Errorf("reading aggregation marker: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var marker types.AggregationMarker
	if err := json.Unmarshal([]byte(rawMarker), &marker); err != nil {
		ns.log.Warn("Dropping unreadable aggregation marker", "type", n.Type, "entity_id", n.EntityID, "error", err)
		return nil, nil
	}
	if marker.NotificationID == "" {
		return nil, nil
	}

	existing, err := ns.Get(ctx, marker.NotificationID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// The notification expired ahead of its marker; start fresh.
		return nil, nil
	}

	existing.Items = append(existing.Items, n.Items...)
	existing.Count = len(existing.Items)
	existing.UpdatedAt = now
	if err := applyMergeRules(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (ns *notificationService) WaiterCall(ctx context.Context, tableID string) (*types.Notification, error) {
	n := &types.Notification{
		Type:     types.NotificationWaiterCall,
		EntityID: tableID,
		WaiterCall: &types.WaiterCallContent{
			TableID: tableID,
			Message: fmt.Sprintf("Table %s requested a waiter", tableID),
		},
	}
	return ns.Create(ctx, n, false)
}

func (ns *notificationService) OrderItemsAdded(ctx context.Context, orderID, tableID string, fragment types.ItemFragment) (*types.Notification, error) {
	n := &types.Notification{
		Type:     types.NotificationOrderItemsAdded,
		EntityID: orderID,
		ItemsAdded: &types.ItemsAddedContent{
			OrderID: orderID,
			TableID: tableID,
			Message: fmt.Sprintf("New items added to the order for table %s", tableID),
		},
		Items: []types.ItemFragment{fragment},
	}
	return ns.Create(ctx, n, true)
}

func (ns *notificationService) OrderFinalized(ctx context.Context, orderID, tableID string, total decimal.Decimal) (*types.Notification, error) {
	n := &types.Notification{
		Type:     types.NotificationOrderFinalized,
		EntityID: orderID,
		OrderFinalized: &types.OrderFinalizedContent{
			OrderID: orderID,
			TableID: tableID,
			Total:   total,
			Message: fmt.Sprintf("Order for table %s closed at %s", tableID, total.StringFixed(2)),
		},
	}
	return ns.Create(ctx, n, false)
}

// Get returns (nil, nil) when the notification does not exist or has
// expired.
func (ns *notificationService) Get(ctx context.Context, id string) (*types.Notification, error) {
	raw, ok, err := ns.kv.Get(ctx, notificationKey(id))
	if err != nil {
		return nil, fmt.Errorf("reading notification: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var n types.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("unmarshaling notification %s: %w", id, err)
	}
	return &n, nil
}

func (ns *notificationService) ListUnread(ctx context.Context, limit int) ([]*types.Notification, error) {
	if limit <= 0 {
		limit = defaultUnreadLimit
	}

	ids, err := ns.kv.ZRevRange(ctx, unreadIndexKey, 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("reading unread index: %w", err)
	}

	notifications := make([]*types.Notification, 0, len(ids))
	for _, id := range ids {
		n, err := ns.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			// Expired from the store but still indexed; skip silently.
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (ns *notificationService) MarkRead(ctx context.Context, id string) (bool, error) {
	n, err := ns.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if n == nil {
		return false, nil
	}

	n.Read = true
	raw, err := json.Marshal(n)
	if err != nil {
		return false, fmt.Errorf("marshaling notification: %w", err)
	}
	if err := ns.kv.Set(ctx, notificationKey(id), string(raw), ns.cfg.RetentionTTL); err != nil {
		return false, fmt.Errorf("storing notification: %w", err)
	}
	if err := ns.kv.ZRem(ctx, unreadIndexKey, id); err != nil {
		return false, fmt.Errorf("removing from unread index: %w", err)
	}
	return true, nil
}

func (ns *notificationService) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := ns.kv.Delete(ctx, notificationKey(id))
	if err != nil {
		return false, fmt.Errorf("deleting notification: %w", err)
	}
	if existed {
		if err := ns.kv.ZRem(ctx, unreadIndexKey, id); err != nil {
			return false, fmt.Errorf("removing from unread index: %w", err)
		}
	}
	return existed, nil
}
