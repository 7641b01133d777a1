package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/booking"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/geocoding"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/models"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/search"
)

type Handler struct {
	db       *gorm.DB
	logger   *logrus.Logger
	engine   *search.Engine
	bookings *booking.Controller
	geocoder *geocoding.Geocoder
}

func NewHandler(db *gorm.DB, logger *logrus.Logger, engine *search.Engine, bookings *booking.Controller, geocoder *geocoding.Geocoder) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Handler{
		db:       db,
		logger:   logger,
		engine:   engine,
		bookings: bookings,
		geocoder: geocoder,
	}
}

// floatQuery parses an optional numeric query parameter. A malformed value is
// a validation error, never silently dropped. NaN and the infinities parse
// but cannot be JSON-encoded, so they are rejected too.
func floatQuery(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%s must be a finite number", name)
	}
	return &v, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return v, nil
}

// parseDate accepts YYYY-MM-DD first, RFC 3339 as a fallback.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (h *Handler) SearchRooms(c *gin.Context) {
	var f search.Filters
	var err error

	f.Location = c.Query("location")
	f.RoomType = c.Query("roomType")
	f.SortBy = c.Query("sortBy")
	f.SortOrder = c.Query("sortOrder")

	numeric := []struct {
		name string
		dst  **float64
	}{
		{"minRent", &f.MinRent},
		{"maxRent", &f.MaxRent},
		{"latitude", &f.Latitude},
		{"longitude", &f.Longitude},
		{"radius", &f.RadiusKm},
	}
	for _, p := range numeric {
		if *p.dst, err = floatQuery(c, p.name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": p.name})
			return
		}
	}
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "limit"})
		return
	}
	if f.Offset, err = intQuery(c, "offset"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "offset"})
		return
	}

	// The geo path needs a full center; half a coordinate pair is a mistake,
	// not a plain search.
	if (f.Latitude == nil) != (f.Longitude == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude must be supplied together"})
		return
	}
	if f.Latitude != nil && (*f.Latitude < -90 || *f.Latitude > 90) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude must be between -90 and 90", "field": "latitude"})
		return
	}
	if f.Longitude != nil && (*f.Longitude < -180 || *f.Longitude > 180) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "longitude must be between -180 and 180", "field": "longitude"})
		return
	}

	results, err := h.engine.Search(f)
	if err != nil {
		h.logger.WithError(err).Error("Room search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search rooms"})
		return
	}
	c.JSON(http.StatusOK, results)
}

type createBookingRequest struct {
	RoomID      string `json:"room_id" binding:"required"`
	MoveInDate  string `json:"move_in_date" binding:"required"`
	MoveOutDate string `json:"move_out_date"`
	Notes       string `json:"notes"`
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := uuid.Parse(req.RoomID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id must be a valid UUID", "field": "room_id"})
		return
	}

	moveIn, err := parseDate(req.MoveInDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "move_in_date must be YYYY-MM-DD or RFC 3339", "field": "move_in_date"})
		return
	}
	var moveOut *time.Time
	if req.MoveOutDate != "" {
		t, err := parseDate(req.MoveOutDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "move_out_date must be YYYY-MM-DD or RFC 3339", "field": "move_out_date"})
			return
		}
		if t.Before(moveIn) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "move_out_date must not be before move_in_date", "field": "move_out_date"})
			return
		}
		moveOut = &t
	}

	p := CurrentPrincipal(c)
	b, err := h.bookings.Create(p.ID, booking.CreateInput{
		RoomID:      req.RoomID,
		MoveInDate:  moveIn,
		MoveOutDate: moveOut,
		Notes:       req.Notes,
	})
	if err != nil {
		h.bookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Notes    string `json:"notes"`
}

func (h *Handler) DecideBooking(c *gin.Context) {
	bookingID := c.Param("id")
	if _, err := uuid.Parse(bookingID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking id must be a valid UUID"})
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := CurrentPrincipal(c)
	b, err := h.bookings.Decide(p.ID, bookingID, models.BookingStatus(req.Decision), req.Notes)
	if err != nil {
		h.bookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	bookingID := c.Param("id")
	if _, err := uuid.Parse(bookingID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "booking id must be a valid UUID"})
		return
	}

	p := CurrentPrincipal(c)
	b, err := h.bookings.Cancel(p.ID, bookingID)
	if err != nil {
		h.bookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ListBookings returns the caller's bookings: a tenant sees their own, an
// owner sees those against their properties, an admin sees everything.
func (h *Handler) ListBookings(c *gin.Context) {
	p := CurrentPrincipal(c)
	q := h.db.Preload("Room").Order("bookings.created_at DESC")

	switch p.Role {
	case models.RoleTenant:
		var tenant models.Tenant
		if err := h.db.Where("user_id = ?", p.ID).First(&tenant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "tenant profile not found"})
				return
			}
			h.logger.WithError(err).Error("Failed to load tenant profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get bookings"})
			return
		}
		q = q.Where("tenant_id = ?", tenant.ID)
	case models.RoleOwner:
		q = q.Select("bookings.*").
			Joins("JOIN properties ON properties.id = bookings.property_id").
			Where("properties.owner_id = ?", p.ID)
	}

	var bookings []models.Booking
	if err := q.Find(&bookings).Error; err != nil {
		h.logger.WithError(err).Error("Failed to get bookings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get bookings"})
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	p := CurrentPrincipal(c)
	var notifications []models.Notification
	err := h.db.Where("user_id = ?", p.ID).Order("created_at DESC").Find(&notifications).Error
	if err != nil {
		h.logger.WithError(err).Error("Failed to get notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notification id must be a valid UUID"})
		return
	}

	p := CurrentPrincipal(c)
	res := h.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, p.ID).
		Update("read", true)
	if res.Error != nil {
		h.logger.WithError(res.Error).Error("Failed to mark notification read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// TriggerGeocode kicks off a coordinate backfill pass in the background.
func (h *Handler) TriggerGeocode(c *gin.Context) {
	go func() {
		if _, err := geocoding.BackfillPropertyCoordinates(h.db, h.geocoder, h.logger); err != nil {
			h.logger.WithError(err).Error("Coordinate backfill failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "geocoding started"})
}

// bookingError maps controller errors onto the response taxonomy: validation
// 400, unknown/unowned 404, state conflict 409, anything else a generic 500.
func (h *Handler) bookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidDecision):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, booking.ErrRoomNotAvailable),
		errors.Is(err, booking.ErrActiveBookingExists),
		errors.Is(err, booking.ErrBookingNotPending),
		errors.Is(err, booking.ErrBookingNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("Booking operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process booking"})
	}
}
