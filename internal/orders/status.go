package orders

import (
	"context"
	"fmt"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/model"
)

// ApplyStatus moves an order to any known status. There is no transition
// graph: canceled and completed orders can be reopened. Setting the current
// status again leaves the order untouched.
func (m *Manager) ApplyStatus(ctx context.Context, orderID string, status model.OrderStatus) (model.Order, error) {
	if !status.Valid() {
		return model.Order{}, errs.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}

	return m.mutate(ctx, orderID, func(order *model.Order) (bool, error) {
		if order.Status == status {
			return false, nil
		}
		m.logger.Infow("order status changed", "id", order.ID, "from", order.Status, "to", status)
		order.Status = status
		return true, nil
	})
}
