package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservation(t *testing.T) {
	r, err := NewReservation("order-1", "product-1", 3, 30*time.Minute)
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "order-1", r.OrderID)
	assert.Equal(t, "product-1", r.ProductID)
	assert.Equal(t, 3, r.ReservedQuantity)
	assert.Equal(t, ReservationReserved, r.Status)
	assert.Nil(t, r.ConfirmedAt)
	assert.True(t, r.ExpiresAt.After(r.ReservedAt))
}

func TestNewReservation_RejectsNonPositiveQuantity(t *testing.T) {
	for _, quantity := range []int{0, -1} {
		_, err := NewReservation("order-1", "product-1", quantity, time.Minute)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
}

func TestReservationConfirm(t *testing.T) {
	r, _ := NewReservation("order-1", "product-1", 1, time.Minute)

	require.NoError(t, r.Confirm())
	assert.Equal(t, ReservationConfirmed, r.Status)
	require.NotNil(t, r.ConfirmedAt)

	// 确认不幂等：重复确认必须报错，否则会重复扣减真实库存
	assert.ErrorIs(t, r.Confirm(), ErrInvalidStateTransition)
}

func TestReservationTerminalStatesRejectTransitions(t *testing.T) {
	tests := []struct {
		name    string
		arrange func(r *Reservation)
	}{
		{"confirmed", func(r *Reservation) { r.Confirm() }},
		{"cancelled", func(r *Reservation) { r.Cancel() }},
		{"expired", func(r *Reservation) { r.Expire() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := NewReservation("order-1", "product-1", 1, time.Minute)
			tt.arrange(r)

			assert.False(t, r.IsActive())
			assert.ErrorIs(t, r.Confirm(), ErrInvalidStateTransition)
			assert.ErrorIs(t, r.Cancel(), ErrInvalidStateTransition)
			assert.ErrorIs(t, r.Expire(), ErrInvalidStateTransition)
		})
	}
}

func TestReservationIsExpired(t *testing.T) {
	r, _ := NewReservation("order-1", "product-1", 1, time.Minute)

	assert.False(t, r.IsExpired(time.Now()))
	assert.True(t, r.IsExpired(r.ExpiresAt.Add(time.Second)))

	// IsExpired 是纯时间判断，与存储的状态无关
	require.NoError(t, r.Confirm())
	assert.True(t, r.IsExpired(r.ExpiresAt.Add(time.Second)))
}

func TestProductStockAvailable(t *testing.T) {
	p := &ProductStock{ID: "product-1", TotalStock: 10}

	assert.Equal(t, 10, p.AvailableStock(0))
	assert.Equal(t, 4, p.AvailableStock(6))
	assert.Equal(t, 0, p.AvailableStock(10))
}
