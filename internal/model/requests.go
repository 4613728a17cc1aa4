package model

import (
	"fmt"
	"strings"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/and161185/servicecenter/internal/utils"
	"github.com/shopspring/decimal"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type CreateOrderRequest struct {
	DeviceType       DeviceType      `json:"deviceType"`
	DeviceModel      string          `json:"deviceModel"`
	SerialNumber     string          `json:"serialNumber,omitempty"`
	ClientName       string          `json:"clientName"`
	ClientPhone      string          `json:"clientPhone"`
	ClientEmail      string          `json:"clientEmail,omitempty"`
	IssueDescription string          `json:"issueDescription"`
	Prepayment       decimal.Decimal `json:"prepayment"`
	MasterComment    string          `json:"masterComment"`
	Services         []OrderService  `json:"services"`
}

func (r CreateOrderRequest) Validate() error {
	verr := errs.NewValidationError()

	if strings.TrimSpace(r.ClientName) == "" {
		verr.Add("clientName", "required")
	}
	if strings.TrimSpace(r.ClientPhone) == "" {
		verr.Add("clientPhone", "required")
	} else if !utils.IsValidPhone(r.ClientPhone) {
		verr.Add("clientPhone", "invalid phone format")
	}
	if strings.TrimSpace(r.DeviceModel) == "" {
		verr.Add("deviceModel", "required")
	}
	if r.DeviceType != "" && !r.DeviceType.Valid() {
		verr.Add("deviceType", fmt.Sprintf("unknown device type %q", r.DeviceType))
	}
	if r.Prepayment.IsNegative() {
		verr.Add("prepayment", "must not be negative")
	}
	validateLines(verr, "services", r.Services)

	return verr.OrNil()
}

// OrderPatch is a partial update of an order. Nil fields are left untouched.
type OrderPatch struct {
	DeviceType       *DeviceType      `json:"deviceType,omitempty"`
	DeviceModel      *string          `json:"deviceModel,omitempty"`
	SerialNumber     *string          `json:"serialNumber,omitempty"`
	ClientName       *string          `json:"clientName,omitempty"`
	ClientPhone      *string          `json:"clientPhone,omitempty"`
	ClientEmail      *string          `json:"clientEmail,omitempty"`
	IssueDescription *string          `json:"issueDescription,omitempty"`
	Prepayment       *decimal.Decimal `json:"prepayment,omitempty"`
	MasterComment    *string          `json:"masterComment,omitempty"`
	Status           *OrderStatus     `json:"status,omitempty"`
	Services         *[]OrderService  `json:"services,omitempty"`
}

// Validate checks every provided field on its own. Cross-field rules are
// not re-checked for partial updates.
func (p OrderPatch) Validate() error {
	verr := errs.NewValidationError()

	if p.DeviceType != nil && !p.DeviceType.Valid() {
		verr.Add("deviceType", fmt.Sprintf("unknown device type %q", *p.DeviceType))
	}
	if p.DeviceModel != nil && strings.TrimSpace(*p.DeviceModel) == "" {
		verr.Add("deviceModel", "must not be empty")
	}
	if p.ClientName != nil && strings.TrimSpace(*p.ClientName) == "" {
		verr.Add("clientName", "must not be empty")
	}
	if p.ClientPhone != nil && !utils.IsValidPhone(*p.ClientPhone) {
		verr.Add("clientPhone", "invalid phone format")
	}
	if p.Prepayment != nil && p.Prepayment.IsNegative() {
		verr.Add("prepayment", "must not be negative")
	}
	if p.Status != nil && !p.Status.Valid() {
		verr.Add("status", fmt.Sprintf("unknown status %q", *p.Status))
	}
	if p.Services != nil {
		validateLines(verr, "services", *p.Services)
	}

	return verr.OrNil()
}

func (p OrderPatch) Apply(order *Order) {
	if p.DeviceType != nil {
		order.DeviceType = *p.DeviceType
	}
	if p.DeviceModel != nil {
		order.DeviceModel = *p.DeviceModel
	}
	if p.SerialNumber != nil {
		order.SerialNumber = *p.SerialNumber
	}
	if p.ClientName != nil {
		order.ClientName = *p.ClientName
	}
	if p.ClientPhone != nil {
		order.ClientPhone = *p.ClientPhone
	}
	if p.ClientEmail != nil {
		order.ClientEmail = *p.ClientEmail
	}
	if p.IssueDescription != nil {
		order.IssueDescription = *p.IssueDescription
	}
	if p.Prepayment != nil {
		order.Prepayment = *p.Prepayment
	}
	if p.MasterComment != nil {
		order.MasterComment = *p.MasterComment
	}
	if p.Status != nil {
		order.Status = *p.Status
	}
	if p.Services != nil {
		order.Services = append([]OrderService(nil), (*p.Services)...)
	}
}

// ServiceTemplate is what gets copied into an order when a line is added.
type ServiceTemplate struct {
	ServiceID string          `json:"service_id,omitempty"`
	Type      ServiceType     `json:"type"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
}

func (t ServiceTemplate) Validate() error {
	verr := errs.NewValidationError()
	if strings.TrimSpace(t.Name) == "" {
		verr.Add("name", "required")
	}
	if t.Type != "" && !t.Type.Valid() {
		verr.Add("type", fmt.Sprintf("unknown type %q", t.Type))
	}
	if t.Price.IsNegative() {
		verr.Add("price", "must not be negative")
	}
	return verr.OrNil()
}

func (s Service) Template() ServiceTemplate {
	return ServiceTemplate{ServiceID: s.ID, Type: s.Type, Name: s.Name, Price: s.Price}
}

type ServiceInput struct {
	Type  ServiceType     `json:"type"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func (in ServiceInput) Validate() error {
	verr := errs.NewValidationError()
	if !in.Type.Valid() {
		verr.Add("type", fmt.Sprintf("unknown type %q", in.Type))
	}
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "required")
	}
	if in.Price.IsNegative() {
		verr.Add("price", "must not be negative")
	}
	return verr.OrNil()
}

type ServicePatch struct {
	Type  *ServiceType     `json:"type,omitempty"`
	Name  *string          `json:"name,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

func (p ServicePatch) Validate() error {
	verr := errs.NewValidationError()
	if p.Type != nil && !p.Type.Valid() {
		verr.Add("type", fmt.Sprintf("unknown type %q", *p.Type))
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		verr.Add("name", "must not be empty")
	}
	if p.Price != nil && p.Price.IsNegative() {
		verr.Add("price", "must not be negative")
	}
	return verr.OrNil()
}

func (p ServicePatch) Apply(s *Service) {
	if p.Type != nil {
		s.Type = *p.Type
	}
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
}

// ProfilePatch has no email: it is fixed at registration.
type ProfilePatch struct {
	DisplayName  *string `json:"display_name,omitempty"`
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	Position     *string `json:"position,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Address      *string `json:"address,omitempty"`
	PhotoURL     *string `json:"photo_url,omitempty"`
}

func (p ProfilePatch) Apply(profile *UserProfile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&profile.DisplayName, p.DisplayName)
	set(&profile.FirstName, p.FirstName)
	set(&profile.LastName, p.LastName)
	set(&profile.Position, p.Position)
	set(&profile.Organization, p.Organization)
	set(&profile.Address, p.Address)
	set(&profile.PhotoURL, p.PhotoURL)
}

// MaxLineQuantity caps a single order line, merged additions included.
const MaxLineQuantity = 10000

func validateLines(verr *errs.ValidationError, field string, lines []OrderService) {
	for i, line := range lines {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(line.Name) == "" {
			verr.Add(prefix+".name", "required")
		}
		if line.Type != "" && !line.Type.Valid() {
			verr.Add(prefix+".type", fmt.Sprintf("unknown type %q", line.Type))
		}
		if line.Price.IsNegative() {
			verr.Add(prefix+".price", "must not be negative")
		}
		if line.Quantity < 0 {
			verr.Add(prefix+".quantity", "must be positive")
		} else if line.Quantity > MaxLineQuantity {
			verr.Add(prefix+".quantity", fmt.Sprintf("must not exceed %d", MaxLineQuantity))
		}
	}
}
