package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/and161185/servicecenter/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Storage persists catalog entries. Missing entries are errs.ErrServiceNotFound.
type Storage interface {
	ListServices(ctx context.Context) ([]model.Service, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	CreateService(ctx context.Context, svc model.Service) error
	UpdateService(ctx context.Context, svc model.Service) error
	DeleteService(ctx context.Context, id string) (bool, error)
}

// Manager is the catalog repository. Entries live independently of orders,
// so deleting one never touches order lines copied from it.
type Manager struct {
	storage Storage
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewManager(storage Storage, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		storage: storage,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) ListServices(ctx context.Context) ([]model.Service, error) {
	list, err := m.storage.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Type != list[j].Type {
			return list[i].Type == model.TypeService
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (m *Manager) GetService(ctx context.Context, id string) (model.Service, error) {
	svc, err := m.storage.GetService(ctx, id)
	if err != nil {
		return model.Service{}, fmt.Errorf("get service %s: %w", id, err)
	}
	return svc, nil
}

func (m *Manager) AddService(ctx context.Context, in model.ServiceInput) (model.Service, error) {
	if err := in.Validate(); err != nil {
		return model.Service{}, err
	}

	now := m.now()
	svc := model.Service{
		ID:        uuid.NewString(),
		Type:      in.Type,
		Name:      in.Name,
		Price:     in.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.storage.CreateService(ctx, svc); err != nil {
		return model.Service{}, fmt.Errorf("create service: %w", err)
	}
	return svc, nil
}

func (m *Manager) UpdateService(ctx context.Context, id string, patch model.ServicePatch) (model.Service, error) {
	if err := patch.Validate(); err != nil {
		return model.Service{}, err
	}

	svc, err := m.storage.GetService(ctx, id)
	if err != nil {
		return model.Service{}, fmt.Errorf("get service %s: %w", id, err)
	}

	patch.Apply(&svc)
	svc.UpdatedAt = m.now()

	if err := m.storage.UpdateService(ctx, svc); err != nil {
		return model.Service{}, fmt.Errorf("update service %s: %w", id, err)
	}
	return svc, nil
}

func (m *Manager) DeleteService(ctx context.Context, id string) (bool, error) {
	deleted, err := m.storage.DeleteService(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete service %s: %w", id, err)
	}
	return deleted, nil
}

var defaultServices = []model.ServiceInput{
	{Type: model.TypeService, Name: "Диагностика устройства", Price: decimal.NewFromInt(500)},
	{Type: model.TypeService, Name: "Замена экрана смартфона", Price: decimal.NewFromInt(3000)},
	{Type: model.TypeService, Name: "Чистка ноутбука от пыли", Price: decimal.NewFromInt(2000)},
	{Type: model.TypePart, Name: "Дисплейный модуль iPhone 13", Price: decimal.NewFromInt(15000)},
	{Type: model.TypePart, Name: "Аккумулятор для MacBook Pro 2019", Price: decimal.NewFromInt(8000)},
}

// SeedDefaults fills an empty catalog with the starter price list.
// A catalog that already has entries is left alone.
func (m *Manager) SeedDefaults(ctx context.Context) (int, error) {
	existing, err := m.storage.ListServices(ctx)
	if err != nil {
		return 0, fmt.Errorf("list services: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for i, in := range defaultServices {
		if _, err := m.AddService(ctx, in); err != nil {
			return i, fmt.Errorf("seed %q: %w", in.Name, err)
		}
	}

	m.logger.Infof("catalog seeded with %d default entries", len(defaultServices))
	return len(defaultServices), nil
}
