package orders

import (
	"context"
	"fmt"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/model"
	"github.com/google/uuid"
)

// AddService copies the template into the order. A line with the same name
// and type absorbs the quantity instead of producing a second row, even when
// the two came from different catalog entries. Quantity 0 means 1.
func (m *Manager) AddService(ctx context.Context, orderID string, tmpl model.ServiceTemplate, quantity int) (model.Order, error) {
	if err := tmpl.Validate(); err != nil {
		return model.Order{}, err
	}
	if quantity == 0 {
		quantity = 1
	}
	if err := validQuantity(quantity); err != nil {
		return model.Order{}, err
	}

	return m.mutate(ctx, orderID, func(order *model.Order) (bool, error) {
		for i := range order.Services {
			line := &order.Services[i]
			if line.Name == tmpl.Name && line.Type == tmpl.Type {
				current := line.Quantity
				if current < 1 {
					current = 1
				}
				if current > model.MaxLineQuantity-quantity {
					return false, errs.Invalid("quantity", fmt.Sprintf("merged quantity must not exceed %d", model.MaxLineQuantity))
				}
				line.Quantity = current + quantity
				return true, nil
			}
		}

		order.Services = append(order.Services, model.OrderService{
			ID:        uuid.NewString(),
			ServiceID: tmpl.ServiceID,
			Type:      tmpl.Type,
			Name:      tmpl.Name,
			Price:     tmpl.Price,
			Quantity:  quantity,
		})
		return true, nil
	})
}

// AddCatalogService resolves a catalog entry and adds a snapshot of it.
func (m *Manager) AddCatalogService(ctx context.Context, orderID, serviceID string, quantity int) (model.Order, error) {
	svc, err := m.catalog.GetService(ctx, serviceID)
	if err != nil {
		return model.Order{}, fmt.Errorf("get catalog service %s: %w", serviceID, err)
	}
	return m.AddService(ctx, orderID, svc.Template(), quantity)
}

// RemoveService is a no-op for unknown line ids.
func (m *Manager) RemoveService(ctx context.Context, orderID, lineID string) (model.Order, error) {
	return m.mutate(ctx, orderID, func(order *model.Order) (bool, error) {
		for i, line := range order.Services {
			if line.ID == lineID {
				order.Services = append(order.Services[:i:i], order.Services[i+1:]...)
				return true, nil
			}
		}
		return false, nil
	})
}

func (m *Manager) UpdateServiceQuantity(ctx context.Context, orderID, lineID string, quantity int) (model.Order, error) {
	if err := validQuantity(quantity); err != nil {
		return model.Order{}, err
	}

	return m.mutate(ctx, orderID, func(order *model.Order) (bool, error) {
		for i := range order.Services {
			if order.Services[i].ID == lineID {
				order.Services[i].Quantity = quantity
				return true, nil
			}
		}
		return false, nil
	})
}
