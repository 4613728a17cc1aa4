package model

import (
	"encoding/json"
	"testing"

	"github.com/and161185/servicecenter/internal/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestTotalsAndAmountDue(t *testing.T) {
	tests := []struct {
		name       string
		lines      []OrderService
		prepayment decimal.Decimal
		total      decimal.Decimal
		due        decimal.Decimal
	}{
		{
			name:  "no lines",
			total: decimal.Zero,
			due:   decimal.Zero,
		},
		{
			name: "several lines",
			lines: []OrderService{
				{Name: "Диагностика", Price: dec(500), Quantity: 1},
				{Name: "Термопаста", Price: dec(250), Quantity: 3},
			},
			prepayment: dec(1000),
			total:      dec(1250),
			due:        dec(250),
		},
		{
			name:       "prepayment exceeds total",
			lines:      []OrderService{{Name: "Чистка", Price: dec(2000), Quantity: 1}},
			prepayment: dec(5000),
			total:      dec(2000),
			due:        decimal.Zero,
		},
		{
			name:  "missing quantity counts once",
			lines: []OrderService{{Name: "Замена экрана", Price: dec(5000)}},
			total: dec(5000),
			due:   dec(5000),
		},
		{
			name:       "fractional prices",
			lines:      []OrderService{{Name: "Кабель", Price: decimal.RequireFromString("99.90"), Quantity: 2}},
			prepayment: decimal.RequireFromString("0.80"),
			total:      decimal.RequireFromString("199.80"),
			due:        dec(199),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := Order{Services: tt.lines, Prepayment: tt.prepayment}
			require.True(t, tt.total.Equal(Total(order)), "total %s", Total(order))
			require.True(t, tt.due.Equal(AmountDue(order)), "due %s", AmountDue(order))
		})
	}
}

func TestCreateOrderRequestValidate(t *testing.T) {
	valid := CreateOrderRequest{
		DeviceType:  DeviceSmartphone,
		DeviceModel: "iPhone 13",
		ClientName:  "Иван Петров",
		ClientPhone: "+7 999 123 45 67",
	}
	require.NoError(t, valid.Validate())

	bad := CreateOrderRequest{
		DeviceType:  "toaster",
		ClientPhone: "12-34",
		Prepayment:  dec(-1),
		Services:    []OrderService{{Name: "", Price: dec(-5), Quantity: -1}},
	}
	err := bad.Validate()
	require.ErrorIs(t, err, errs.ErrValidation)

	verr := err.(*errs.ValidationError)
	for _, field := range []string{
		"clientName", "clientPhone", "deviceModel", "deviceType", "prepayment",
		"services[0].name", "services[0].price", "services[0].quantity",
	} {
		require.Contains(t, verr.Fields, field)
	}
}

func TestOrderPatchValidateAndApply(t *testing.T) {
	var patch OrderPatch
	require.NoError(t, json.Unmarshal([]byte(`{"masterComment":"заменён шлейф","status":"ready","prepayment":300}`), &patch))
	require.NoError(t, patch.Validate())

	order := Order{ClientName: "Иван", Status: StatusNew}
	patch.Apply(&order)

	require.Equal(t, "Иван", order.ClientName)
	require.Equal(t, "заменён шлейф", order.MasterComment)
	require.Equal(t, StatusReady, order.Status)
	require.True(t, dec(300).Equal(order.Prepayment))

	empty := ""
	status := OrderStatus("archived")
	err := OrderPatch{ClientName: &empty, Status: &status}.Validate()
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestStatusAndDeviceLabels(t *testing.T) {
	require.True(t, StatusWaitingParts.Valid())
	require.False(t, OrderStatus("done").Valid())
	require.Equal(t, "Готов к выдаче", StatusReady.Label())
	require.Equal(t, "Ноутбук", DeviceLaptop.Label())
	require.False(t, DeviceType("").Valid())
}

func TestServicePatchApply(t *testing.T) {
	svc := Service{ID: "1", Type: TypeService, Name: "Диагностика", Price: dec(500)}
	price := dec(700)
	patch := ServicePatch{Price: &price}
	require.NoError(t, patch.Validate())
	patch.Apply(&svc)
	require.True(t, price.Equal(svc.Price))
	require.Equal(t, "Диагностика", svc.Name)

	require.Equal(t, ServiceTemplate{ServiceID: "1", Type: TypeService, Name: "Диагностика", Price: price}, svc.Template())
}

func TestProfilePatchApply(t *testing.T) {
	profile := UserProfile{Email: "master@example.com", Position: "мастер"}
	org := "СЦ Север"
	ProfilePatch{Organization: &org}.Apply(&profile)

	require.Equal(t, "СЦ Север", profile.Organization)
	require.Equal(t, "мастер", profile.Position)
	require.Equal(t, "master@example.com", profile.Email)
}
