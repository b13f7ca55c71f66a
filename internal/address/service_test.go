package address

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:address_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Address{}))

	svc, err := NewService(NewRepository(conn), newTestResolver(t), db.Wrap(conn))
	require.NoError(t, err)
	return svc, conn
}

func countDefaults(t *testing.T, conn *gorm.DB, userID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.Address{}).Where("user_id = ? AND is_default = ?", userID, true).Count(&n).Error)
	return n
}

func addressInput(street string) Input {
	return Input{RecipientName: "Asha Rao", Phone: "9876543210", StreetLine1: street, PostalCode: "560001"}
}

func TestCreateFirstAddressBecomesDefault(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Create(ctx, userID, addressInput("1 First St"))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "Bangalore", first.City)

	second, err := svc.Create(ctx, userID, addressInput("2 Second St"))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	third := addressInput("3 Third St")
	third.IsDefault = true
	created, err := svc.Create(ctx, userID, third)
	require.NoError(t, err)
	assert.True(t, created.IsDefault)
	assert.Equal(t, int64(1), countDefaults(t, conn, userID))
}

func TestSetDefaultLeavesExactlyOne(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	otherUser := uuid.New()

	ids := make([]uuid.UUID, 0, 4)
	for _, street := range []string{"1 A St", "2 B St", "3 C St", "4 D St"} {
		addr, err := svc.Create(ctx, userID, addressInput(street))
		require.NoError(t, err)
		ids = append(ids, addr.ID)
	}
	_, err := svc.Create(ctx, otherUser, addressInput("9 Z St"))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 25; i++ {
		target := ids[rng.Intn(len(ids))]
		addr, err := svc.SetDefault(ctx, userID, target)
		require.NoError(t, err)
		require.True(t, addr.IsDefault)
		require.Equal(t, int64(1), countDefaults(t, conn, userID))

		list, err := svc.List(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, target, list[0].ID)
	}
	assert.Equal(t, int64(1), countDefaults(t, conn, otherUser))
}

func TestSetDefaultUnknownAddress(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	addr, err := svc.Create(ctx, userID, addressInput("1 A St"))
	require.NoError(t, err)

	_, err = svc.SetDefault(ctx, uuid.New(), addr.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, int64(1), countDefaults(t, conn, userID))
}

func TestCreateWithManualCityAfterFailedLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	fill, err := svc.Lookup(ctx, "000000")
	require.NoError(t, err)
	require.True(t, fill.ManualEntryRequired)

	in := addressInput("7 Lake Rd")
	in.PostalCode = "000000"
	_, err = svc.Create(ctx, uuid.New(), in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	in.City = "Hosur"
	in.State = "Tamil Nadu"
	addr, err := svc.Create(ctx, uuid.New(), in)
	require.NoError(t, err)
	assert.Equal(t, "Hosur", addr.City)
}

func TestInvalidInputLeavesBookUnchanged(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	in := addressInput("1 A St")
	in.Phone = "123"
	_, err := svc.Create(ctx, userID, in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	list, err := svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	first, err := svc.Create(ctx, userID, addressInput("1 A St"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, userID, addressInput("2 B St"))
	require.NoError(t, err)

	in := addressInput("2B Second St")
	in.StreetLine2 = "Flat 4"
	in.IsDefault = true
	updated, err := svc.Update(ctx, userID, second.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "2B Second St", updated.StreetLine1)
	require.NotNil(t, updated.StreetLine2)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, int64(1), countDefaults(t, conn, userID))

	require.NoError(t, svc.Delete(ctx, userID, second.ID))
	assert.Equal(t, int64(0), countDefaults(t, conn, userID))

	err = svc.Delete(ctx, userID, second.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Update(ctx, uuid.New(), first.ID, addressInput("x"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestWriteErrClassifiesDefaultRace(t *testing.T) {
	race := writeErr(&pgconn.PgError{Code: "23505", ConstraintName: defaultIndex}, "create address")
	assert.True(t, pkgerrors.IsCode(race, pkgerrors.CodeConflict))

	other := writeErr(errors.New("connection reset"), "create address")
	assert.True(t, pkgerrors.IsCode(other, pkgerrors.CodeDependency))
}
