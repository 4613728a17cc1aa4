package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStorage struct {
	db *pgxpool.Pool
}

func (store *PostgresStorage) initSchema(ctx context.Context) error {
	const initSchemaQuery = `
	CREATE SEQUENCE IF NOT EXISTS order_number_seq;
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		position TEXT NOT NULL DEFAULT '',
		organization TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		photo_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	-- emails are matched case-insensitively, uniqueness must follow
	CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email));
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		order_number BIGINT UNIQUE NOT NULL,
		device_type TEXT NOT NULL,
		device_model TEXT NOT NULL,
		serial_number TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL,
		client_phone TEXT NOT NULL,
		client_email TEXT NOT NULL DEFAULT '',
		issue_description TEXT NOT NULL DEFAULT '',
		prepayment NUMERIC NOT NULL DEFAULT 0,
		master_comment TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS order_services (
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		position INT NOT NULL,
		service_id TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		price NUMERIC NOT NULL,
		quantity INT NOT NULL DEFAULT 1,
		PRIMARY KEY (order_id, id)
	);
	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		price NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`

	_, err := store.db.Exec(ctx, initSchemaQuery)
	return err
}

func NewPostgresStorage(ctx context.Context, databaseURI string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, errs.NewStorageError("connect", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := storage.initSchema(ctx); err != nil {
		db.Close()
		return nil, errs.NewStorageError("init schema", err)
	}

	return storage, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return errs.NewStorageError("ping", store.db.Ping(ctx))
}

func (store *PostgresStorage) Close() {
	store.db.Close()
}

func (store *PostgresStorage) String() string {
	return "postgres"
}

const orderColumns = `id, order_number, device_type, device_model, serial_number, client_name,
	client_phone, client_email, issue_description, prepayment, master_comment, status,
	created_at, updated_at`

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.DeviceType, &o.DeviceModel, &o.SerialNumber,
		&o.ClientName, &o.ClientPhone, &o.ClientEmail, &o.IssueDescription, &o.Prepayment,
		&o.MasterComment, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// loadLines returns the lines of the given orders keyed by order id.
func (s *PostgresStorage) loadLines(ctx context.Context, ids []string) (map[string][]model.OrderService, error) {
	const query = `
		SELECT order_id, id, service_id, type, name, price, quantity
		FROM order_services
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get order services: %w", err)
	}
	defer rows.Close()

	lines := make(map[string][]model.OrderService, len(ids))
	for rows.Next() {
		var orderID string
		var l model.OrderService
		if err := rows.Scan(&orderID, &l.ID, &l.ServiceID, &l.Type, &l.Name, &l.Price, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan order service: %w", err)
		}
		lines[orderID] = append(lines[orderID], l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}

	return lines, nil
}

func (s *PostgresStorage) ListOrders(ctx context.Context) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, errs.NewStorageError("list orders", err)
	}
	defer rows.Close()

	var list []model.Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errs.NewStorageError("scan order", err)
		}
		list = append(list, o)
		ids = append(ids, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageError("list orders", err)
	}

	lines, err := s.loadLines(ctx, ids)
	if err != nil {
		return nil, errs.NewStorageError("list orders", err)
	}
	for i := range list {
		list[i].Services = withLines(lines[list[i].ID])
	}

	return list, nil
}

func (s *PostgresStorage) GetOrder(ctx context.Context, id string) (model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, errs.ErrOrderNotFound
		}
		return model.Order{}, errs.NewStorageError("get order", err)
	}

	lines, err := s.loadLines(ctx, []string{id})
	if err != nil {
		return model.Order{}, errs.NewStorageError("get order", err)
	}
	o.Services = withLines(lines[id])

	return o, nil
}

// CreateOrder takes the number from order_number_seq inside the insert, so
// concurrent creations never collide, even across processes.
func (s *PostgresStorage) CreateOrder(ctx context.Context, order model.Order) (model.Order, error) {
	const query = `
		INSERT INTO orders (id, order_number, device_type, device_model, serial_number,
			client_name, client_phone, client_email, issue_description, prepayment,
			master_comment, status, created_at, updated_at)
		VALUES ($1, nextval('order_number_seq'), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING order_number`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Order{}, errs.NewStorageError("begin tx", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, query, order.ID, order.DeviceType, order.DeviceModel, order.SerialNumber,
		order.ClientName, order.ClientPhone, order.ClientEmail, order.IssueDescription,
		order.Prepayment, order.MasterComment, order.Status, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.OrderNumber)
	if err != nil {
		return model.Order{}, errs.NewStorageError("insert order", err)
	}

	if err := insertLines(ctx, tx, order); err != nil {
		return model.Order{}, errs.NewStorageError("insert order services", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Order{}, errs.NewStorageError("commit", err)
	}

	return order, nil
}

// UpdateOrder rewrites the order row and all of its lines in one transaction.
// order_number and created_at are never changed.
func (s *PostgresStorage) UpdateOrder(ctx context.Context, order model.Order) error {
	const query = `
		UPDATE orders
		SET device_type = $2, device_model = $3, serial_number = $4, client_name = $5,
			client_phone = $6, client_email = $7, issue_description = $8, prepayment = $9,
			master_comment = $10, status = $11, updated_at = $12
		WHERE id = $1`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errs.NewStorageError("begin tx", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx, query, order.ID, order.DeviceType, order.DeviceModel,
		order.SerialNumber, order.ClientName, order.ClientPhone, order.ClientEmail,
		order.IssueDescription, order.Prepayment, order.MasterComment, order.Status, order.UpdatedAt)
	if err != nil {
		return errs.NewStorageError("update order", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrOrderNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_services WHERE order_id = $1`, order.ID); err != nil {
		return errs.NewStorageError("delete order services", err)
	}

	if err := insertLines(ctx, tx, order); err != nil {
		return errs.NewStorageError("insert order services", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errs.NewStorageError("commit", err)
	}

	return nil
}

func insertLines(ctx context.Context, tx pgx.Tx, order model.Order) error {
	const query = `
		INSERT INTO order_services (order_id, id, position, service_id, type, name, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if len(order.Services) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, l := range order.Services {
		batch.Queue(query, order.ID, l.ID, i, l.ServiceID, l.Type, l.Name, l.Price, l.Quantity)
	}

	return tx.SendBatch(ctx, batch).Close()
}

func (s *PostgresStorage) DeleteOrder(ctx context.Context, id string) (bool, error) {
	cmdTag, err := s.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, errs.NewStorageError("delete order", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

func withLines(lines []model.OrderService) []model.OrderService {
	if lines == nil {
		return []model.OrderService{}
	}
	return lines
}

func (s *PostgresStorage) ListServices(ctx context.Context) ([]model.Service, error) {
	const query = `SELECT id, type, name, price, created_at, updated_at FROM services ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, errs.NewStorageError("list services", err)
	}
	defer rows.Close()

	var list []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.Type, &svc.Name, &svc.Price, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
			return nil, errs.NewStorageError("scan service", err)
		}
		list = append(list, svc)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageError("list services", err)
	}

	return list, nil
}

func (s *PostgresStorage) GetService(ctx context.Context, id string) (model.Service, error) {
	const query = `SELECT id, type, name, price, created_at, updated_at FROM services WHERE id = $1`

	var svc model.Service
	err := s.db.QueryRow(ctx, query, id).Scan(&svc.ID, &svc.Type, &svc.Name, &svc.Price, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Service{}, errs.ErrServiceNotFound
		}
		return model.Service{}, errs.NewStorageError("get service", err)
	}

	return svc, nil
}

func (s *PostgresStorage) CreateService(ctx context.Context, svc model.Service) error {
	const query = `
		INSERT INTO services (id, type, name, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, query, svc.ID, svc.Type, svc.Name, svc.Price, svc.CreatedAt, svc.UpdatedAt)
	return errs.NewStorageError("insert service", err)
}

func (s *PostgresStorage) UpdateService(ctx context.Context, svc model.Service) error {
	const query = `UPDATE services SET type = $2, name = $3, price = $4, updated_at = $5 WHERE id = $1`

	cmdTag, err := s.db.Exec(ctx, query, svc.ID, svc.Type, svc.Name, svc.Price, svc.UpdatedAt)
	if err != nil {
		return errs.NewStorageError("update service", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrServiceNotFound
	}
	return nil
}

func (s *PostgresStorage) DeleteService(ctx context.Context, id string) (bool, error) {
	cmdTag, err := s.db.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return false, errs.NewStorageError("delete service", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

const profileColumns = `id, email, display_name, first_name, last_name, position,
	organization, address, photo_url, created_at, updated_at`

func scanProfile(row pgx.Row, extra ...any) (model.UserProfile, error) {
	var p model.UserProfile
	dest := append([]any{&p.ID, &p.Email, &p.DisplayName, &p.FirstName, &p.LastName, &p.Position,
		&p.Organization, &p.Address, &p.PhotoURL, &p.CreatedAt, &p.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	return p, err
}

func (s *PostgresStorage) CreateUser(ctx context.Context, profile model.UserProfile, passwordHash string) error {
	const query = `
		INSERT INTO users (id, email, password_hash, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, query, profile.ID, profile.Email, passwordHash, profile.DisplayName,
		profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// 23505: уникальное ограничение нарушено
			return errs.ErrEmailAlreadyExists
		}
		return errs.NewStorageError("insert user", err)
	}

	return nil
}

func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (model.UserProfile, string, error) {
	query := `SELECT ` + profileColumns + `, password_hash FROM users WHERE lower(email) = lower($1)`

	var hash string
	profile, err := scanProfile(s.db.QueryRow(ctx, query, email), &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserProfile{}, "", errs.ErrUserNotFound
		}
		return model.UserProfile{}, "", errs.NewStorageError("get user by email", err)
	}

	return profile, hash, nil
}

func (s *PostgresStorage) GetProfile(ctx context.Context, id string) (model.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1`

	profile, err := scanProfile(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UserProfile{}, errs.ErrUserNotFound
		}
		return model.UserProfile{}, errs.NewStorageError("get profile", err)
	}

	return profile, nil
}

// UpdateProfile never touches email or created_at.
func (s *PostgresStorage) UpdateProfile(ctx context.Context, profile model.UserProfile) error {
	const query = `
		UPDATE users
		SET display_name = $2, first_name = $3, last_name = $4, position = $5,
			organization = $6, address = $7, photo_url = $8, updated_at = $9
		WHERE id = $1`

	cmdTag, err := s.db.Exec(ctx, query, profile.ID, profile.DisplayName, profile.FirstName,
		profile.LastName, profile.Position, profile.Organization, profile.Address,
		profile.PhotoURL, profile.UpdatedAt)
	if err != nil {
		return errs.NewStorageError("update profile", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}
