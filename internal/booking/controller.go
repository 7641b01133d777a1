package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/models"
)

var (
	// ErrNotFound covers missing resources and resources the caller does not
	// own; the two are indistinguishable on purpose.
	ErrNotFound = errors.New("booking not found")

	ErrRoomNotAvailable      = errors.New("room is not available")
	ErrActiveBookingExists   = errors.New("tenant already has an active booking")
	ErrBookingNotPending     = errors.New("booking has already been processed")
	ErrBookingNotCancellable = errors.New("booking can no longer be cancelled")
	ErrInvalidDecision       = errors.New("decision must be approved or rejected")
)

// Notifier delivers a best-effort notification. Implementations must not
// block and must not fail the calling transition.
type Notifier interface {
	Notify(userID, title, message, kind string)
}

type CreateInput struct {
	RoomID      string
	MoveInDate  time.Time
	MoveOutDate *time.Time
	Notes       string
}

// Controller owns every mutation of room and booking state. Each transition
// runs as one transaction; notifications happen afterwards and are never
// rolled back.
type Controller struct {
	db       *gorm.DB
	logger   *logrus.Logger
	notifier Notifier
}

func NewController(db *gorm.DB, logger *logrus.Logger, notifier Notifier) *Controller {
	return &Controller{db: db, logger: logger, notifier: notifier}
}

// Create opens a pending booking for the tenant behind userID and reserves
// the room. The reserve step is a conditional update guarded on the room
// still being available, so concurrent requests for one room produce at most
// one winner.
func (c *Controller) Create(userID string, in CreateInput) (*models.Booking, error) {
	var booking models.Booking
	var ownerID string

	err := c.db.Transaction(func(tx *gorm.DB) error {
		var tenant models.Tenant
		if err := tx.Where("user_id = ?", userID).First(&tenant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load tenant profile: %w", err)
		}

		var active int64
		err := tx.Model(&models.Booking{}).
			Where("tenant_id = ? AND status IN ?", tenant.ID,
				[]models.BookingStatus{models.BookingPending, models.BookingApproved}).
			Count(&active).Error
		if err != nil {
			return fmt.Errorf("failed to count active bookings: %w", err)
		}
		if active > 0 {
			return ErrActiveBookingExists
		}

		var room models.Room
		if err := tx.Preload("Property").First(&room, "id = ?", in.RoomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load room: %w", err)
		}

		res := tx.Model(&models.Room{}).
			Where("id = ? AND status = ?", room.ID, models.RoomAvailable).
			Updates(map[string]interface{}{
				"status":       models.RoomReserved,
				"last_updated": time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to reserve room: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotAvailable
		}

		booking = models.Booking{
			TenantID:    tenant.ID,
			RoomID:      room.ID,
			PropertyID:  room.PropertyID,
			Status:      models.BookingPending,
			MoveInDate:  in.MoveInDate,
			MoveOutDate: in.MoveOutDate,
			TenantNotes: in.Notes,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		ownerID = room.Property.OwnerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.notifier.Notify(ownerID, "New booking request",
		fmt.Sprintf("A booking request was placed for room %s, moving in on %s.",
			booking.RoomID, booking.MoveInDate.Format("2006-01-02")),
		"booking_request")

	return &booking, nil
}

// Decide approves or rejects a pending booking on behalf of the property
// owner. Approval marks the room occupied and mirrors its number onto the
// tenant; rejection releases the room.
func (c *Controller) Decide(ownerID, bookingID string, decision models.BookingStatus, notes string) (*models.Booking, error) {
	if decision != models.BookingApproved && decision != models.BookingRejected {
		return nil, ErrInvalidDecision
	}

	var booking models.Booking
	var tenantUserID string

	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Property").First(&booking, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load booking: %w", err)
		}
		if booking.Property.OwnerID != ownerID {
			return ErrNotFound
		}
		if booking.Status != models.BookingPending {
			return ErrBookingNotPending
		}

		var room models.Room
		if err := tx.First(&room, "id = ?", booking.RoomID).Error; err != nil {
			return fmt.Errorf("failed to load room: %w", err)
		}

		updates := map[string]interface{}{"status": decision}
		if notes != "" {
			updates["owner_notes"] = notes
		}
		if err := tx.Model(&booking).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}

		roomStatus := models.RoomAvailable
		if decision == models.BookingApproved {
			roomStatus = models.RoomOccupied
		}
		err := tx.Model(&models.Room{}).Where("id = ?", room.ID).
			Updates(map[string]interface{}{
				"status":       roomStatus,
				"last_updated": time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to update room status: %w", err)
		}

		if decision == models.BookingApproved {
			err := tx.Model(&models.Tenant{}).Where("id = ?", booking.TenantID).
				Update("room_number", room.RoomNumber).Error
			if err != nil {
				return fmt.Errorf("failed to update tenant room number: %w", err)
			}
		}

		var tenant models.Tenant
		if err := tx.First(&tenant, "id = ?", booking.TenantID).Error; err != nil {
			return fmt.Errorf("failed to load tenant: %w", err)
		}
		tenantUserID = tenant.UserID
		booking.Status = decision
		return nil
	})
	if err != nil {
		return nil, err
	}

	title := "Booking approved"
	if decision == models.BookingRejected {
		title = "Booking rejected"
	}
	c.notifier.Notify(tenantUserID, title,
		fmt.Sprintf("Your booking for room %s was %s.", booking.RoomID, decision),
		"booking_decision")

	return &booking, nil
}

// Cancel lets the tenant withdraw a pending or approved booking, releasing
// the room. Rejected and cancelled bookings are terminal. Cancelling an
// approved booking also clears the tenant's mirrored room number.
func (c *Controller) Cancel(userID, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	var ownerID string

	err := c.db.Transaction(func(tx *gorm.DB) error {
		var tenant models.Tenant
		if err := tx.Where("user_id = ?", userID).First(&tenant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load tenant profile: %w", err)
		}

		if err := tx.Preload("Property").First(&booking, "id = ?", bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load booking: %w", err)
		}
		if booking.TenantID != tenant.ID {
			return ErrNotFound
		}
		if booking.Status == models.BookingCancelled || booking.Status == models.BookingRejected {
			return ErrBookingNotCancellable
		}

		wasApproved := booking.Status == models.BookingApproved

		if err := tx.Model(&booking).Update("status", models.BookingCancelled).Error; err != nil {
			return fmt.Errorf("failed to cancel booking: %w", err)
		}

		err := tx.Model(&models.Room{}).Where("id = ?", booking.RoomID).
			Updates(map[string]interface{}{
				"status":       models.RoomAvailable,
				"last_updated": time.Now().UTC(),
			}).Error
		if err != nil {
			return fmt.Errorf("failed to release room: %w", err)
		}

		if wasApproved {
			err := tx.Model(&models.Tenant{}).Where("id = ?", tenant.ID).
				Update("room_number", "").Error
			if err != nil {
				return fmt.Errorf("failed to clear tenant room number: %w", err)
			}
		}

		ownerID = booking.Property.OwnerID
		booking.Status = models.BookingCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.notifier.Notify(ownerID, "Booking cancelled",
		fmt.Sprintf("The booking for room %s was cancelled by the tenant.", booking.RoomID),
		"booking_cancelled")

	return &booking, nil
}
