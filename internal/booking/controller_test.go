package booking

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/database"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/models"
)

type notifyCall struct {
	UserID string
	Title  string
	Kind   string
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (f *fakeNotifier) Notify(userID, title, message, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{UserID: userID, Title: title, Kind: kind})
}

func (f *fakeNotifier) last(t *testing.T) notifyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type fixtures struct {
	ownerUser   models.User
	tenantUser  models.User
	tenant      models.Tenant
	tenantUser2 models.User
	tenant2     models.Tenant
	property    models.Property
	roomX       models.Room
	roomY       models.Room
}

func setup(t *testing.T) (*gorm.DB, *Controller, *fakeNotifier, fixtures) {
	db, err := database.NewTestDB()
	require.NoError(t, err)
	require.NoError(t, database.MigrateSchema(db))

	var fx fixtures
	fx.ownerUser = models.User{Email: "owner@example.com", Role: models.RoleOwner}
	fx.tenantUser = models.User{Email: "tenant@example.com", Role: models.RoleTenant}
	fx.tenantUser2 = models.User{Email: "tenant2@example.com", Role: models.RoleTenant}
	require.NoError(t, db.Create(&fx.ownerUser).Error)
	require.NoError(t, db.Create(&fx.tenantUser).Error)
	require.NoError(t, db.Create(&fx.tenantUser2).Error)

	fx.tenant = models.Tenant{UserID: fx.tenantUser.ID}
	fx.tenant2 = models.Tenant{UserID: fx.tenantUser2.ID}
	require.NoError(t, db.Create(&fx.tenant).Error)
	require.NoError(t, db.Create(&fx.tenant2).Error)

	fx.property = models.Property{
		OwnerID: fx.ownerUser.ID,
		Address: "12 MG Road",
		City:    "Bangalore",
		State:   "Karnataka",
	}
	require.NoError(t, db.Create(&fx.property).Error)

	fx.roomX = models.Room{
		PropertyID: fx.property.ID,
		RoomNumber: "X-101",
		RoomType:   "single",
		RentAmount: 9000,
		Status:     models.RoomAvailable,
	}
	fx.roomY = models.Room{
		PropertyID: fx.property.ID,
		RoomNumber: "Y-201",
		RoomType:   "double",
		RentAmount: 14000,
		Status:     models.RoomAvailable,
	}
	require.NoError(t, db.Create(&fx.roomX).Error)
	require.NoError(t, db.Create(&fx.roomY).Error)

	notifier := &fakeNotifier{}
	return db, NewController(db, logrus.New(), notifier), notifier, fx
}

func mustMoveIn(t *testing.T) time.Time {
	moveIn, err := time.Parse("2006-01-02", "2024-06-01")
	require.NoError(t, err)
	return moveIn
}

func roomStatus(t *testing.T, db *gorm.DB, roomID string) models.RoomStatus {
	var room models.Room
	require.NoError(t, db.First(&room, "id = ?", roomID).Error)
	return room.Status
}

func bookingStatus(t *testing.T, db *gorm.DB, bookingID string) models.BookingStatus {
	var b models.Booking
	require.NoError(t, db.First(&b, "id = ?", bookingID).Error)
	return b.Status
}

func tenantRoomNumber(t *testing.T, db *gorm.DB, tenantID string) string {
	var tenant models.Tenant
	require.NoError(t, db.First(&tenant, "id = ?", tenantID).Error)
	return tenant.RoomNumber
}

func TestCreateBooking(t *testing.T) {
	db, ctrl, notifier, fx := setup(t)

	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)

	assert.Equal(t, models.BookingPending, b.Status)
	assert.Equal(t, fx.tenant.ID, b.TenantID)
	assert.Equal(t, fx.property.ID, b.PropertyID)
	assert.Equal(t, models.RoomReserved, roomStatus(t, db, fx.roomX.ID))

	call := notifier.last(t)
	assert.Equal(t, fx.ownerUser.ID, call.UserID)
	assert.Equal(t, "booking_request", call.Kind)
}

func TestCreateBookingRoomNotAvailable(t *testing.T) {
	db, ctrl, _, fx := setup(t)
	require.NoError(t, db.Model(&models.Room{}).Where("id = ?", fx.roomX.ID).
		Update("status", models.RoomMaintenance).Error)

	_, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	assert.ErrorIs(t, err, ErrRoomNotAvailable)
}

func TestCreateBookingSecondActiveBookingRejected(t *testing.T) {
	_, ctrl, _, fx := setup(t)

	_, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)

	// Regardless of target room, one active booking blocks the next.
	_, err = ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomY.ID, MoveInDate: mustMoveIn(t)})
	assert.ErrorIs(t, err, ErrActiveBookingExists)
}

func TestCreateBookingContendedRoomHasOneWinner(t *testing.T) {
	// Two tenants race for the same room; the conditional reserve update
	// decides the winner, whichever order the transactions land in.
	db, ctrl, _, fx := setup(t)
	moveIn := mustMoveIn(t)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, userID := range []string{fx.tenantUser.ID, fx.tenantUser2.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := ctrl.Create(id, CreateInput{RoomID: fx.roomX.ID, MoveInDate: moveIn})
			errs <- err
		}(userID)
	}
	wg.Wait()
	close(errs)

	var winners, losers int
	for err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, ErrRoomNotAvailable)
		losers++
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)
	assert.Equal(t, models.RoomReserved, roomStatus(t, db, fx.roomX.ID))

	var count int64
	require.NoError(t, db.Model(&models.Booking{}).Where("room_id = ?", fx.roomX.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateBookingReserveGuardIsConditional(t *testing.T) {
	// The reserve step itself must be a check-and-set: once the first update
	// flips the room off available, an identical second update affects zero
	// rows. This is the property that closes the double-booking race.
	db, _, _, fx := setup(t)

	res := db.Model(&models.Room{}).
		Where("id = ? AND status = ?", fx.roomX.ID, models.RoomAvailable).
		Update("status", models.RoomReserved)
	require.NoError(t, res.Error)
	assert.EqualValues(t, 1, res.RowsAffected)

	res = db.Model(&models.Room{}).
		Where("id = ? AND status = ?", fx.roomX.ID, models.RoomAvailable).
		Update("status", models.RoomReserved)
	require.NoError(t, res.Error)
	assert.EqualValues(t, 0, res.RowsAffected)
}

func TestCreateBookingUnknownTenant(t *testing.T) {
	_, ctrl, _, fx := setup(t)
	_, err := ctrl.Create(uuid.NewString(), CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBookingUnknownRoom(t *testing.T) {
	_, ctrl, _, fx := setup(t)
	_, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: uuid.NewString(), MoveInDate: mustMoveIn(t)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecideApprove(t *testing.T) {
	db, ctrl, notifier, fx := setup(t)
	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)

	decided, err := ctrl.Decide(fx.ownerUser.ID, b.ID, models.BookingApproved, "welcome")
	require.NoError(t, err)

	assert.Equal(t, models.BookingApproved, decided.Status)
	assert.Equal(t, models.RoomOccupied, roomStatus(t, db, fx.roomX.ID))
	assert.Equal(t, fx.roomX.RoomNumber, tenantRoomNumber(t, db, fx.tenant.ID))

	call := notifier.last(t)
	assert.Equal(t, fx.tenantUser.ID, call.UserID)
	assert.Equal(t, "Booking approved", call.Title)
}

func TestDecideReject(t *testing.T) {
	db, ctrl, notifier, fx := setup(t)
	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)

	decided, err := ctrl.Decide(fx.ownerUser.ID, b.ID, models.BookingRejected, "no pets")
	require.NoError(t, err)

	assert.Equal(t, models.BookingRejected, decided.Status)
	assert.Equal(t, models.RoomAvailable, roomStatus(t, db, fx.roomX.ID))
	assert.Empty(t, tenantRoomNumber(t, db, fx.tenant.ID))
	assert.Equal(t, "Booking rejected", notifier.last(t).Title)
}

func TestDecideWrongOwnerLooksLikeNotFound(t *testing.T) {
	db, ctrl, _, fx := setup(t)
	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)

	_, err = ctrl.Decide(uuid.NewString(), b.ID, models.BookingApproved, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, models.BookingPending, bookingStatus(t, db, b.ID))
	assert.Equal(t, models.RoomReserved, roomStatus(t, db, fx.roomX.ID))
}

func TestDecideNonPendingLeavesStateUnchanged(t *testing.T) {
	db, ctrl, _, fx := setup(t)
	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)
	_, err = ctrl.Decide(fx.ownerUser.ID, b.ID, models.BookingApproved, "")
	require.NoError(t, err)

	_, err = ctrl.Decide(fx.ownerUser.ID, b.ID, models.BookingRejected, "")
	assert.ErrorIs(t, err, ErrBookingNotPending)
	assert.Equal(t, models.BookingApproved, bookingStatus(t, db, b.ID))
	assert.Equal(t, models.RoomOccupied, roomStatus(t, db, fx.roomX.ID))
}

func TestDecideInvalidDecision(t *testing.T) {
	_, ctrl, _, fx := setup(t)
	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)

	_, err = ctrl.Decide(fx.ownerUser.ID, b.ID, models.BookingCancelled, "")
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestCancelPendingBooking(t *testing.T) {
	db, ctrl, notifier, fx := setup(t)
	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)

	cancelled, err := ctrl.Cancel(fx.tenantUser.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	assert.Equal(t, models.RoomAvailable, roomStatus(t, db, fx.roomX.ID))

	call := notifier.last(t)
	assert.Equal(t, fx.ownerUser.ID, call.UserID)
	assert.Equal(t, "booking_cancelled", call.Kind)
}

func TestCancelApprovedBookingClearsRoomNumber(t *testing.T) {
	db, ctrl, _, fx := setup(t)
	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)
	_, err = ctrl.Decide(fx.ownerUser.ID, b.ID, models.BookingApproved, "")
	require.NoError(t, err)
	require.Equal(t, fx.roomX.RoomNumber, tenantRoomNumber(t, db, fx.tenant.ID))

	_, err = ctrl.Cancel(fx.tenantUser.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, models.BookingCancelled, bookingStatus(t, db, b.ID))
	assert.Equal(t, models.RoomAvailable, roomStatus(t, db, fx.roomX.ID))
	assert.Empty(t, tenantRoomNumber(t, db, fx.tenant.ID))
}

func TestCancelTerminalStates(t *testing.T) {
	db, ctrl, _, fx := setup(t)
	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)
	_, err = ctrl.Cancel(fx.tenantUser.ID, b.ID)
	require.NoError(t, err)

	_, err = ctrl.Cancel(fx.tenantUser.ID, b.ID)
	assert.ErrorIs(t, err, ErrBookingNotCancellable)

	// Rejected bookings are terminal too; releasing the room off a rejected
	// booking could clobber a newer reservation.
	b2, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomY.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)
	_, err = ctrl.Decide(fx.ownerUser.ID, b2.ID, models.BookingRejected, "")
	require.NoError(t, err)

	_, err = ctrl.Cancel(fx.tenantUser.ID, b2.ID)
	assert.ErrorIs(t, err, ErrBookingNotCancellable)
	assert.Equal(t, models.BookingRejected, bookingStatus(t, db, b2.ID))
}

func TestCancelWrongTenantLooksLikeNotFound(t *testing.T) {
	_, ctrl, _, fx := setup(t)
	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)

	_, err = ctrl.Cancel(fx.tenantUser2.ID, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingLifecycleEndToEnd(t *testing.T) {
	db, ctrl, _, fx := setup(t)

	b, err := ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.Equal(t, models.RoomReserved, roomStatus(t, db, fx.roomX.ID))

	_, err = ctrl.Decide(fx.ownerUser.ID, b.ID, models.BookingApproved, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoomOccupied, roomStatus(t, db, fx.roomX.ID))
	assert.Equal(t, "X-101", tenantRoomNumber(t, db, fx.tenant.ID))

	_, err = ctrl.Cancel(fx.tenantUser.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, bookingStatus(t, db, b.ID))
	assert.Equal(t, models.RoomAvailable, roomStatus(t, db, fx.roomX.ID))
	assert.Empty(t, tenantRoomNumber(t, db, fx.tenant.ID))

	// The slot is free again.
	_, err = ctrl.Create(fx.tenantUser.ID, CreateInput{RoomID: fx.roomX.ID, MoveInDate: mustMoveIn(t)})
	require.NoError(t, err)
}
