package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_AmountDue(t *testing.T) {
	tests := []struct {
		name  string
		order Order
		want  int64
	}{
		{
			name:  "no bags no payments",
			order: Order{},
			want:  0,
		},
		{
			name: "refunded payments are ignored",
			order: Order{
				Bags: []Bag{{Price: 25000, Amount: 2}},
				Payments: []Payment{
					{Amount: 20000, Status: PaymentPaid},
					{Amount: 20000, Status: PaymentRefunded},
				},
			},
			want: 30000,
		},
		{
			name: "points reduce the amount",
			order: Order{
				Bags:        []Bag{{Price: 10000, Amount: 1}},
				PointsToUse: 1500,
			},
			want: 8500,
		},
		{
			name: "overpaid clamps at zero",
			order: Order{
				Bags:     []Bag{{Price: 10000, Amount: 1}},
				Payments: []Payment{{Amount: 12000, Status: PaymentPaid}},
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.order.AmountDue())
		})
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0.00", FormatMoney(0))
	assert.Equal(t, "120.50", FormatMoney(12050))
	assert.Equal(t, "3.07", FormatMoney(307))
}

func TestParseNotificationType(t *testing.T) {
	nt, ok := ParseNotificationType("LETS_STAY_CONNECTED")
	assert.True(t, ok)
	assert.Equal(t, NotificationLetsStayConnected, nt)

	_, ok = ParseNotificationType("lets_stay_connected")
	assert.False(t, ok)
}

func TestParameters_SortedAndRoundTrips(t *testing.T) {
	params := Parameters(map[string]string{"orderNumber": "42", "amountToPay": "10.00"})
	if assert.Len(t, params, 2) {
		assert.Equal(t, "amountToPay", params[0].Key)
		assert.Equal(t, "orderNumber", params[1].Key)
	}

	n := UserNotification{Parameters: params}
	assert.Equal(t, map[string]string{"orderNumber": "42", "amountToPay": "10.00"}, n.ParameterMap())
}
