package server

import (
	"net/http"

	"github.com/and161185/servicecenter/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// orderResponse adds the derived money fields and display labels to an order.
type orderResponse struct {
	model.Order
	StatusLabel     string          `json:"statusLabel"`
	DeviceTypeLabel string          `json:"deviceTypeLabel"`
	Total           decimal.Decimal `json:"total"`
	AmountDue       decimal.Decimal `json:"amountDue"`
}

func newOrderResponse(order model.Order) orderResponse {
	return orderResponse{
		Order:           order,
		StatusLabel:     order.Status.Label(),
		DeviceTypeLabel: order.DeviceType.Label(),
		Total:           model.Total(order),
		AmountDue:       model.AmountDue(order),
	}
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// addLineRequest either references a catalog entry by service_id or carries
// an ad-hoc template.
type addLineRequest struct {
	ServiceID string            `json:"service_id,omitempty"`
	Type      model.ServiceType `json:"type,omitempty"`
	Name      string            `json:"name,omitempty"`
	Price     decimal.Decimal   `json:"price"`
	Quantity  int               `json:"quantity,omitempty"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (srv *Server) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := srv.orders.ListOrders(r.Context())
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := srv.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (srv *Server) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "bad request")
		return
	}

	order, err := srv.orders.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}

	srv.deps.Metrics.OrdersCreated.Inc()
	writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

func (srv *Server) UpdateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var patch model.OrderPatch
	if err := decodeJSON(r, &patch); err != nil {
		badRequest(w, "bad request")
		return
	}

	order, err := srv.orders.UpdateOrder(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (srv *Server) DeleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	deleted, err := srv.orders.DeleteOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "bad request")
		return
	}

	order, err := srv.orders.ApplyStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (srv *Server) AddLineHandler(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "bad request")
		return
	}

	orderID := chi.URLParam(r, "id")

	var (
		order model.Order
		err   error
	)
	if req.ServiceID != "" {
		order, err = srv.orders.AddCatalogService(r.Context(), orderID, req.ServiceID, req.Quantity)
	} else {
		tmpl := model.ServiceTemplate{Type: req.Type, Name: req.Name, Price: req.Price}
		order, err = srv.orders.AddService(r.Context(), orderID, tmpl, req.Quantity)
	}
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (srv *Server) UpdateLineHandler(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "bad request")
		return
	}

	order, err := srv.orders.UpdateServiceQuantity(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineID"), req.Quantity)
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (srv *Server) RemoveLineHandler(w http.ResponseWriter, r *http.Request) {
	order, err := srv.orders.RemoveService(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineID"))
	if err != nil {
		writeError(w, srv.deps.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}
