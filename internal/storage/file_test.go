package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newFileStorage(t *testing.T) (*FileStorage, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data", "db.json")
	store, err := NewFileStorage(path)
	require.NoError(t, err)
	return store, path
}

func TestFileStorageCreatesMissingFile(t *testing.T) {
	store, path := newFileStorage(t)

	_, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))

	list, err := store.ListOrders(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestFileStorageOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	store, path := newFileStorage(t)

	created, err := store.CreateOrder(ctx, model.Order{
		ID:         "o-1",
		ClientName: "Иван",
		Prepayment: decimal.NewFromInt(1000),
		Services:   []model.OrderService{{ID: "l-1", Name: "Замена экрана", Price: decimal.NewFromInt(5000), Quantity: 1}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, created.OrderNumber)

	created.MasterComment = "ждём дисплей"
	created.OrderNumber = 99
	require.NoError(t, store.UpdateOrder(ctx, created))

	reopened, err := NewFileStorage(path)
	require.NoError(t, err)

	got, err := reopened.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, "ждём дисплей", got.MasterComment)
	require.EqualValues(t, 1, got.OrderNumber, "order number is immutable")
	require.Len(t, got.Services, 1)
	require.True(t, decimal.NewFromInt(5000).Equal(got.Services[0].Price))

	deleted, err := reopened.DeleteOrder(ctx, "o-1")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = reopened.DeleteOrder(ctx, "o-1")
	require.NoError(t, err)
	require.False(t, deleted)

	_, err = reopened.GetOrder(ctx, "o-1")
	require.ErrorIs(t, err, errs.ErrOrderNotFound)
	require.ErrorIs(t, reopened.UpdateOrder(ctx, created), errs.ErrOrderNotFound)
}

func TestFileStorageReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStorage(t)

	_, err := store.CreateOrder(ctx, model.Order{ID: "o-1", Services: []model.OrderService{{ID: "l-1", Name: "a", Quantity: 1}}})
	require.NoError(t, err)

	got, err := store.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	got.Services[0].Quantity = 42

	again, err := store.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	require.Equal(t, 1, again.Services[0].Quantity)
}

func TestFileStorageConcurrentNumbering(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStorage(t)

	const concurrency = 20
	var wg sync.WaitGroup
	numbers := make(chan int64, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := store.CreateOrder(ctx, model.Order{ID: string(rune('a' + i))})
			if err != nil {
				t.Errorf("create order: %v", err)
				return
			}
			numbers <- o.OrderNumber
		}(i)
	}

	wg.Wait()
	close(numbers)

	seen := map[int64]bool{}
	for n := range numbers {
		require.False(t, seen[n], "duplicate order number %d", n)
		seen[n] = true
	}
	require.Len(t, seen, concurrency)
	for n := int64(1); n <= concurrency; n++ {
		require.True(t, seen[n], "missing order number %d", n)
	}
}

func TestFileStorageRepairsNumbering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	legacy := `{
  "orders": [
    {"id": "a", "orderNumber": 7, "status": "new", "services": []},
    {"id": "b", "status": "new", "services": []}
  ],
  "orderCounter": 3
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	store, err := NewFileStorage(path)
	require.NoError(t, err)

	ctx := context.Background()
	b, err := store.GetOrder(ctx, "b")
	require.NoError(t, err)
	require.EqualValues(t, 8, b.OrderNumber)

	next, err := store.CreateOrder(ctx, model.Order{ID: "c"})
	require.NoError(t, err)
	require.EqualValues(t, 9, next.OrderNumber)
}

func TestFileStorageRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStorage(path)
	var serr *errs.StorageError
	require.ErrorAs(t, err, &serr)
}

func TestFileStorageServices(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStorage(t)

	now := time.Now().UTC()
	svc := model.Service{ID: "s-1", Type: model.TypePart, Name: "Аккумулятор", Price: decimal.NewFromInt(8000), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.CreateService(ctx, svc))

	svc.Price = decimal.NewFromInt(7500)
	svc.CreatedAt = time.Time{}
	require.NoError(t, store.UpdateService(ctx, svc))

	got, err := store.GetService(ctx, "s-1")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(7500).Equal(got.Price))
	require.True(t, now.Equal(got.CreatedAt))

	deleted, err := store.DeleteService(ctx, "s-1")
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = store.GetService(ctx, "s-1")
	require.ErrorIs(t, err, errs.ErrServiceNotFound)
	require.ErrorIs(t, store.UpdateService(ctx, svc), errs.ErrServiceNotFound)
}

func TestFileStorageUsers(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStorage(t)

	profile := model.UserProfile{ID: "u-1", Email: "Master@Example.com", DisplayName: "Мастер"}
	require.NoError(t, store.CreateUser(ctx, profile, "hash"))
	require.ErrorIs(t, store.CreateUser(ctx, model.UserProfile{ID: "u-2", Email: "master@example.com"}, "x"), errs.ErrEmailAlreadyExists)

	got, hash, err := store.GetUserByEmail(ctx, "master@example.com")
	require.NoError(t, err)
	require.Equal(t, "u-1", got.ID)
	require.Equal(t, "hash", hash)

	got.Email = "changed@example.com"
	got.Position = "старший мастер"
	require.NoError(t, store.UpdateProfile(ctx, got))

	stored, err := store.GetProfile(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, "Master@Example.com", stored.Email)
	require.Equal(t, "старший мастер", stored.Position)

	_, err = store.GetProfile(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrUserNotFound)
	_, _, err = store.GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, errs.ErrUserNotFound)
}
