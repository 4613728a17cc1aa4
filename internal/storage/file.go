package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/model"
)

type userRecord struct {
	model.UserProfile
	PasswordHash string `json:"password_hash"`
}

// fileDatabase is the on-disk document.
type fileDatabase struct {
	Orders       []model.Order   `json:"orders"`
	OrderCounter int64           `json:"orderCounter"`
	Services     []model.Service `json:"services"`
	Users        []userRecord    `json:"users"`
}

// FileStorage keeps everything in one JSON file. Every mutation holds the
// lock for the whole read-modify-write cycle, so order numbers taken from
// OrderCounter are never handed out twice within the process.
type FileStorage struct {
	path string
	mu   sync.RWMutex
	db   fileDatabase
}

func NewFileStorage(path string) (*FileStorage, error) {
	store := &FileStorage{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errs.NewStorageError("create data dir", err)
		}
		if err := store.persist(store.db); err != nil {
			return nil, err
		}
		return store, nil
	case err != nil:
		return nil, errs.NewStorageError("read database", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &store.db); err != nil {
			return nil, errs.NewStorageError("decode database", err)
		}
	}

	if store.db.repairNumbering() {
		if err := store.persist(store.db); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// repairNumbering lifts the counter to the highest issued number and numbers
// orders that have none. It reports whether anything changed.
func (db *fileDatabase) repairNumbering() bool {
	changed := false
	for _, o := range db.Orders {
		if o.OrderNumber > db.OrderCounter {
			db.OrderCounter = o.OrderNumber
			changed = true
		}
	}
	for i := range db.Orders {
		if db.Orders[i].OrderNumber == 0 {
			db.OrderCounter++
			db.Orders[i].OrderNumber = db.OrderCounter
			changed = true
		}
	}
	return changed
}

func (db fileDatabase) clone() fileDatabase {
	out := fileDatabase{
		Orders:       make([]model.Order, len(db.Orders)),
		OrderCounter: db.OrderCounter,
		Services:     append([]model.Service(nil), db.Services...),
		Users:        append([]userRecord(nil), db.Users...),
	}
	for i, o := range db.Orders {
		out.Orders[i] = copyOrder(o)
	}
	return out
}

func copyOrder(o model.Order) model.Order {
	o.Services = append(make([]model.OrderService, 0, len(o.Services)), o.Services...)
	return o
}

func (s *FileStorage) persist(db fileDatabase) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return errs.NewStorageError("encode database", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".db-*.json")
	if err != nil {
		return errs.NewStorageError("write database", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.NewStorageError("write database", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.NewStorageError("write database", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errs.NewStorageError("write database", err)
	}
	return nil
}

// update applies fn to a copy of the database and swaps it in only after the
// copy reached the disk.
func (s *FileStorage) update(fn func(db *fileDatabase) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.db.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.db = next
	return nil
}

func (s *FileStorage) Ping(ctx context.Context) error {
	_, err := os.Stat(s.path)
	return errs.NewStorageError("stat database", err)
}

func (s *FileStorage) Close() {}

func (s *FileStorage) ListOrders(ctx context.Context) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]model.Order, 0, len(s.db.Orders))
	for _, o := range s.db.Orders {
		list = append(list, copyOrder(o))
	}
	return list, nil
}

func (s *FileStorage) GetOrder(ctx context.Context, id string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.db.Orders {
		if o.ID == id {
			return copyOrder(o), nil
		}
	}
	return model.Order{}, errs.ErrOrderNotFound
}

func (s *FileStorage) CreateOrder(ctx context.Context, order model.Order) (model.Order, error) {
	err := s.update(func(db *fileDatabase) error {
		db.OrderCounter++
		order.OrderNumber = db.OrderCounter
		db.Orders = append(db.Orders, copyOrder(order))
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return order, nil
}

func (s *FileStorage) UpdateOrder(ctx context.Context, order model.Order) error {
	return s.update(func(db *fileDatabase) error {
		for i := range db.Orders {
			if db.Orders[i].ID == order.ID {
				order.OrderNumber = db.Orders[i].OrderNumber
				order.CreatedAt = db.Orders[i].CreatedAt
				db.Orders[i] = copyOrder(order)
				return nil
			}
		}
		return errs.ErrOrderNotFound
	})
}

func (s *FileStorage) DeleteOrder(ctx context.Context, id string) (bool, error) {
	err := s.update(func(db *fileDatabase) error {
		for i := range db.Orders {
			if db.Orders[i].ID == id {
				db.Orders = append(db.Orders[:i], db.Orders[i+1:]...)
				return nil
			}
		}
		return errs.ErrOrderNotFound
	})
	if errors.Is(err, errs.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStorage) ListServices(ctx context.Context) ([]model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append(make([]model.Service, 0, len(s.db.Services)), s.db.Services...), nil
}

func (s *FileStorage) GetService(ctx context.Context, id string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, svc := range s.db.Services {
		if svc.ID == id {
			return svc, nil
		}
	}
	return model.Service{}, errs.ErrServiceNotFound
}

func (s *FileStorage) CreateService(ctx context.Context, svc model.Service) error {
	return s.update(func(db *fileDatabase) error {
		db.Services = append(db.Services, svc)
		return nil
	})
}

func (s *FileStorage) UpdateService(ctx context.Context, svc model.Service) error {
	return s.update(func(db *fileDatabase) error {
		for i := range db.Services {
			if db.Services[i].ID == svc.ID {
				svc.CreatedAt = db.Services[i].CreatedAt
				db.Services[i] = svc
				return nil
			}
		}
		return errs.ErrServiceNotFound
	})
}

func (s *FileStorage) DeleteService(ctx context.Context, id string) (bool, error) {
	err := s.update(func(db *fileDatabase) error {
		for i := range db.Services {
			if db.Services[i].ID == id {
				db.Services = append(db.Services[:i], db.Services[i+1:]...)
				return nil
			}
		}
		return errs.ErrServiceNotFound
	})
	if errors.Is(err, errs.ErrServiceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStorage) CreateUser(ctx context.Context, profile model.UserProfile, passwordHash string) error {
	return s.update(func(db *fileDatabase) error {
		for _, u := range db.Users {
			if strings.EqualFold(u.Email, profile.Email) {
				return errs.ErrEmailAlreadyExists
			}
		}
		db.Users = append(db.Users, userRecord{UserProfile: profile, PasswordHash: passwordHash})
		return nil
	})
}

func (s *FileStorage) GetUserByEmail(ctx context.Context, email string) (model.UserProfile, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.db.Users {
		if strings.EqualFold(u.Email, email) {
			return u.UserProfile, u.PasswordHash, nil
		}
	}
	return model.UserProfile{}, "", errs.ErrUserNotFound
}

func (s *FileStorage) GetProfile(ctx context.Context, id string) (model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.db.Users {
		if u.ID == id {
			return u.UserProfile, nil
		}
	}
	return model.UserProfile{}, errs.ErrUserNotFound
}

func (s *FileStorage) UpdateProfile(ctx context.Context, profile model.UserProfile) error {
	return s.update(func(db *fileDatabase) error {
		for i := range db.Users {
			if db.Users[i].ID == profile.ID {
				profile.Email = db.Users[i].Email
				profile.CreatedAt = db.Users[i].CreatedAt
				db.Users[i].UserProfile = profile
				return nil
			}
		}
		return errs.ErrUserNotFound
	})
}

func (s *FileStorage) String() string {
	return fmt.Sprintf("file:%s", s.path)
}
