package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

func TestRepositoryPaymentTransitionsAreGuarded(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedOrder(t, db, uuid.New(), time.Now(), enums.OrderStatusPending, enums.PaymentStatusPending)

	ok, err := repo.MarkConfirmed(ctx, order.ID, "pay_1", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkConfirmed(ctx, order.ID, "pay_2", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "a settled order is not confirmed twice")

	ok, err = repo.MarkFailed(ctx, order.ID, "late failure")
	require.NoError(t, err)
	assert.False(t, ok, "a confirmed order cannot fail")

	stored, err := repo.Find(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusConfirmed, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
	require.NotNil(t, stored.TransactionID)
	assert.Equal(t, "pay_1", *stored.TransactionID)
}

func TestRepositoryAdvanceStatusRequiresConfirmedPayment(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	unpaid := seedOrder(t, db, uuid.New(), time.Now(), enums.OrderStatusProcessing, enums.PaymentStatusPending)
	ok, err := repo.AdvanceStatus(ctx, unpaid.ID, enums.OrderStatusProcessing, enums.OrderStatusShipping)
	require.NoError(t, err)
	assert.False(t, ok)

	paid := seedOrder(t, db, uuid.New(), time.Now(), enums.OrderStatusProcessing, enums.PaymentStatusConfirmed)
	ok, err = repo.AdvanceStatus(ctx, paid.ID, enums.OrderStatusShipping, enums.OrderStatusDelivered)
	require.NoError(t, err)
	assert.False(t, ok, "from must match the stored status")

	ok, err = repo.AdvanceStatus(ctx, paid.ID, enums.OrderStatusProcessing, enums.OrderStatusShipping)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepositoryFindStalePending(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old := seedOrder(t, db, uuid.New(), now.Add(-2*time.Hour), enums.OrderStatusPending, enums.PaymentStatusPending)
	seedOrder(t, db, uuid.New(), now.Add(-5*time.Minute), enums.OrderStatusPending, enums.PaymentStatusPending)
	seedOrder(t, db, uuid.New(), now.Add(-3*time.Hour), enums.OrderStatusProcessing, enums.PaymentStatusConfirmed)

	rows, err := repo.FindStalePending(context.Background(), now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].ID)

	missing, err := repo.FindForUser(context.Background(), old.ID, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing, "orders are scoped to their owner")
}
