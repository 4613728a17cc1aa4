// Package orders holds the repair order lifecycle: creation with sequential
// numbering, partial updates, line items and status changes. Every mutation
// is a single read-modify-write against Storage; concurrent writers to the
// same order are last-write-wins.
package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage persists orders. CreateOrder must assign the next order number
// atomically with respect to other creations. Missing orders are reported
// as errs.ErrOrderNotFound.
type Storage interface {
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	CreateOrder(ctx context.Context, order model.Order) (model.Order, error)
	UpdateOrder(ctx context.Context, order model.Order) error
	DeleteOrder(ctx context.Context, id string) (bool, error)
}

// CatalogLookup resolves catalog entries for AddCatalogService.
type CatalogLookup interface {
	GetService(ctx context.Context, id string) (model.Service, error)
}

type Manager struct {
	storage Storage
	catalog CatalogLookup
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewManager(storage Storage, catalog CatalogLookup, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		storage: storage,
		catalog: catalog,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) ListOrders(ctx context.Context) ([]model.Order, error) {
	list, err := m.storage.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].OrderNumber > list[j].OrderNumber
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (m *Manager) GetOrder(ctx context.Context, id string) (model.Order, error) {
	order, err := m.storage.GetOrder(ctx, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}
	return order, nil
}

func (m *Manager) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
	if err := req.Validate(); err != nil {
		return model.Order{}, err
	}

	deviceType := req.DeviceType
	if deviceType == "" {
		deviceType = model.DeviceOther
	}

	now := m.now()
	order := model.Order{
		ID:               uuid.NewString(),
		DeviceType:       deviceType,
		DeviceModel:      req.DeviceModel,
		SerialNumber:     req.SerialNumber,
		ClientName:       req.ClientName,
		ClientPhone:      req.ClientPhone,
		ClientEmail:      req.ClientEmail,
		IssueDescription: req.IssueDescription,
		Prepayment:       req.Prepayment,
		MasterComment:    req.MasterComment,
		Status:           model.StatusNew,
		Services:         freshLines(req.Services),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := m.storage.CreateOrder(ctx, order)
	if err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}

	m.logger.Infow("order created", "id", created.ID, "number", created.OrderNumber)
	return created, nil
}

func (m *Manager) UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error) {
	if err := patch.Validate(); err != nil {
		return model.Order{}, err
	}

	return m.mutate(ctx, id, func(order *model.Order) (bool, error) {
		patch.Apply(order)
		if patch.Services != nil {
			order.Services = normalizeLines(order.Services)
		}
		return true, nil
	})
}

// DeleteOrder reports false when there was nothing to delete.
func (m *Manager) DeleteOrder(ctx context.Context, id string) (bool, error) {
	deleted, err := m.storage.DeleteOrder(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete order %s: %w", id, err)
	}
	if deleted {
		m.logger.Infow("order deleted", "id", id)
	}
	return deleted, nil
}

// mutate loads the order, lets fn change it and saves it when fn reports a change.
func (m *Manager) mutate(ctx context.Context, id string, fn func(order *model.Order) (bool, error)) (model.Order, error) {
	order, err := m.storage.GetOrder(ctx, id)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order %s: %w", id, err)
	}

	changed, err := fn(&order)
	if err != nil {
		return model.Order{}, err
	}
	if !changed {
		return order, nil
	}

	order.UpdatedAt = m.now()
	if err := m.storage.UpdateOrder(ctx, order); err != nil {
		return model.Order{}, fmt.Errorf("update order %s: %w", id, err)
	}
	return order, nil
}

func freshLines(lines []model.OrderService) []model.OrderService {
	out := make([]model.OrderService, 0, len(lines))
	for _, line := range lines {
		line.ID = uuid.NewString()
		if line.Quantity == 0 {
			line.Quantity = 1
		}
		out = append(out, line)
	}
	return out
}

// normalizeLines keeps client ids that are unique and fills in the rest.
func normalizeLines(lines []model.OrderService) []model.OrderService {
	seen := make(map[string]struct{}, len(lines))
	out := make([]model.OrderService, 0, len(lines))
	for _, line := range lines {
		if _, dup := seen[line.ID]; line.ID == "" || dup {
			line.ID = uuid.NewString()
		}
		seen[line.ID] = struct{}{}
		if line.Quantity == 0 {
			line.Quantity = 1
		}
		out = append(out, line)
	}
	return out
}

func validQuantity(quantity int) error {
	if quantity < 1 {
		return errs.Invalid("quantity", "must be at least 1")
	}
	if quantity > model.MaxLineQuantity {
		return errs.Invalid("quantity", fmt.Sprintf("must not exceed %d", model.MaxLineQuantity))
	}
	return nil
}
