package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/and161185/servicecenter/internal/auth"
	"github.com/and161185/servicecenter/internal/config"
	"github.com/and161185/servicecenter/internal/deps"
	"github.com/and161185/servicecenter/internal/middleware"
	"github.com/and161185/servicecenter/internal/model"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source=server.go -destination=../mocks/server_mocks.go -package=mocks

type OrderService interface {
	ListOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error)
	UpdateOrder(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error)
	DeleteOrder(ctx context.Context, id string) (bool, error)
	ApplyStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error)

	AddService(ctx context.Context, orderID string, tmpl model.ServiceTemplate, quantity int) (model.Order, error)
	AddCatalogService(ctx context.Context, orderID, serviceID string, quantity int) (model.Order, error)
	RemoveService(ctx context.Context, orderID, lineID string) (model.Order, error)
	UpdateServiceQuantity(ctx context.Context, orderID, lineID string, quantity int) (model.Order, error)
}

type CatalogService interface {
	ListServices(ctx context.Context) ([]model.Service, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	AddService(ctx context.Context, in model.ServiceInput) (model.Service, error)
	UpdateService(ctx context.Context, id string, patch model.ServicePatch) (model.Service, error)
	DeleteService(ctx context.Context, id string) (bool, error)
}

type IdentityService interface {
	Register(ctx context.Context, email, password, name string) (model.UserProfile, auth.Session, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Logout(ctx context.Context, token string) error
	GetProfile(ctx context.Context, userID string) (model.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, patch model.ProfilePatch) (model.UserProfile, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	orders   OrderService
	catalog  CatalogService
	identity IdentityService
	health   HealthChecker
	config   *config.Config
	deps     *deps.Deps
}

func NewServer(orders OrderService, catalog CatalogService, identity IdentityService, health HealthChecker, config *config.Config, deps *deps.Deps) *Server {
	return &Server{
		orders:   orders,
		catalog:  catalog,
		identity: identity,
		health:   health,
		config:   config,
		deps:     deps,
	}
}

func (srv *Server) buildRouter() http.Handler {
	logger := srv.deps.Logger

	router := chi.NewRouter()
	router.Use(chiMiddleware.StripSlashes)
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.MetricsMiddleware(srv.deps.Metrics))

	router.Get("/healthz", srv.HealthHandler)
	router.Method(http.MethodGet, "/metrics", srv.deps.Metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.DecompressMiddleware)
		r.Use(middleware.LogMiddleware(logger))
		r.Use(middleware.CompressMiddleware(logger))

		r.Post("/api/auth/register", srv.RegisterHandler)
		r.Post("/api/auth/login", srv.LoginHandler)

		// авторизованные ручки
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(srv.identity, srv.deps.TokenManager, logger))

			r.Post("/api/auth/logout", srv.LogoutHandler)
			r.Get("/api/profile", srv.GetProfileHandler)
			r.Patch("/api/profile", srv.UpdateProfileHandler)

			r.Route("/api/orders", func(r chi.Router) {
				r.Get("/", srv.ListOrdersHandler)
				r.Post("/", srv.CreateOrderHandler)
				r.Get("/{id}", srv.GetOrderHandler)
				r.Patch("/{id}", srv.UpdateOrderHandler)
				r.Delete("/{id}", srv.DeleteOrderHandler)
				r.Put("/{id}/status", srv.UpdateStatusHandler)
				r.Post("/{id}/services", srv.AddLineHandler)
				r.Patch("/{id}/services/{lineID}", srv.UpdateLineHandler)
				r.Delete("/{id}/services/{lineID}", srv.RemoveLineHandler)
			})

			r.Route("/api/services", func(r chi.Router) {
				r.Get("/", srv.ListServicesHandler)
				r.Post("/", srv.CreateServiceHandler)
				r.Get("/{id}", srv.GetServiceHandler)
				r.Patch("/{id}", srv.UpdateServiceHandler)
				r.Delete("/{id}", srv.DeleteServiceHandler)
			})
		})
	})

	return router
}

func (srv *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              srv.config.RunAddress,
		Handler:           srv.buildRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.deps.Logger.Infof("listening on %s", srv.config.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (srv *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.health.Ping(r.Context()); err != nil {
		srv.deps.Logger.Errorf("health check: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
