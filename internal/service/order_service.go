package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-shop-admin/internal/event"
	"go-shop-admin/internal/model"
	"go-shop-admin/pkg/apierror"
)

// OrderService stores submitted orders. It applies no catalog or stock rules.
type OrderService struct {
	orders OrderStore
	bus    event.Bus
	now    func() time.Time
}

func NewOrderService(orders OrderStore, bus event.Bus) *OrderService {
	return &OrderService{orders: orders, bus: bus, now: time.Now}
}

func (s *OrderService) Create(ctx context.Context, actorID string, req model.CreateOrderRequest) (model.Order, error) {
	if len(req.Items) == 0 {
		return model.Order{}, apierror.InvalidInput("items are required", "items")
	}

	order := model.Order{
		ID:            uuid.NewString(),
		UserID:        actorID,
		Items:         make([]model.OrderItem, 0, len(req.Items)),
		Status:        model.OrderStatusPending,
		Address:       strings.TrimSpace(req.Address),
		Phone:         strings.TrimSpace(req.Phone),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		CreatedBy:     actorID,
		CreatedAt:     s.now().UTC(),
	}

	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return model.Order{}, apierror.InvalidInput("invalid order item", fmt.Sprintf("items[%d]", i))
		}
		item.ProductID = strings.TrimSpace(item.ProductID)
		order.Items = append(order.Items, item)
		order.TotalQuantity += item.Quantity
		order.TotalPrice += float64(item.Quantity) * item.UnitPrice
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}

	publish(s.bus, event.New(event.TypeOrderCreated, actorID, "order:"+order.ID).WithPayload(order))
	return order, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
