package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusNew          OrderStatus = "new"
	StatusInProgress   OrderStatus = "in_progress"
	StatusWaitingParts OrderStatus = "waiting_parts"
	StatusReady        OrderStatus = "ready"
	StatusCompleted    OrderStatus = "completed"
	StatusCanceled     OrderStatus = "canceled"
)

var orderStatusLabels = map[OrderStatus]string{
	StatusNew:          "Новый",
	StatusInProgress:   "В работе",
	StatusWaitingParts: "Ожидание запчастей",
	StatusReady:        "Готов к выдаче",
	StatusCompleted:    "Выполнен",
	StatusCanceled:     "Отменен",
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusLabels[s]
	return ok
}

func (s OrderStatus) Label() string {
	return orderStatusLabels[s]
}

type DeviceType string

const (
	DeviceComputer   DeviceType = "computer"
	DeviceLaptop     DeviceType = "laptop"
	DeviceSmartphone DeviceType = "smartphone"
	DeviceTablet     DeviceType = "tablet"
	DeviceOther      DeviceType = "other"
)

var deviceTypeLabels = map[DeviceType]string{
	DeviceComputer:   "Компьютер",
	DeviceLaptop:     "Ноутбук",
	DeviceSmartphone: "Смартфон",
	DeviceTablet:     "Планшет",
	DeviceOther:      "Другое",
}

func (d DeviceType) Valid() bool {
	_, ok := deviceTypeLabels[d]
	return ok
}

func (d DeviceType) Label() string {
	return deviceTypeLabels[d]
}

type ServiceType string

const (
	TypeService ServiceType = "service"
	TypePart    ServiceType = "part"
)

func (t ServiceType) Valid() bool {
	return t == TypeService || t == TypePart
}

// Order is a repair ticket. Services holds snapshots of catalog entries,
// never live references.
type Order struct {
	ID               string          `json:"id"`
	OrderNumber      int64           `json:"orderNumber"`
	DeviceType       DeviceType      `json:"deviceType"`
	DeviceModel      string          `json:"deviceModel"`
	SerialNumber     string          `json:"serialNumber,omitempty"`
	ClientName       string          `json:"clientName"`
	ClientPhone      string          `json:"clientPhone"`
	ClientEmail      string          `json:"clientEmail,omitempty"`
	IssueDescription string          `json:"issueDescription"`
	Prepayment       decimal.Decimal `json:"prepayment"`
	MasterComment    string          `json:"masterComment"`
	Status           OrderStatus     `json:"status"`
	Services         []OrderService  `json:"services"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// OrderService is a priced line of an order. ID is unique within the order.
type OrderService struct {
	ID        string          `json:"id"`
	ServiceID string          `json:"service_id,omitempty"`
	Type      ServiceType     `json:"type"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Service is a catalog entry. Orders copy it by value.
type Service struct {
	ID        string          `json:"id"`
	Type      ServiceType     `json:"type"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type UserProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Position     string    `json:"position,omitempty"`
	Organization string    `json:"organization,omitempty"`
	Address      string    `json:"address,omitempty"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
