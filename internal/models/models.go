package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies what a user is allowed to do. Authentication happens at the
// gateway; this service only branches on the role it is handed.
type Role string

const (
	RoleTenant Role = "tenant"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
)

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomOccupied    RoomStatus = "occupied"
	RoomReserved    RoomStatus = "reserved"
	RoomMaintenance RoomStatus = "maintenance"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingApproved  BookingStatus = "approved"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
)

// Active reports whether the booking occupies the tenant's single
// active-booking slot.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingApproved
}

type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255)"`
	Role      Role      `json:"role" gorm:"type:varchar(16)"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type Tenant struct {
	ID     string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID string `json:"user_id" gorm:"uniqueIndex;type:varchar(36)"`

	// RoomNumber mirrors the room of the tenant's currently approved booking.
	// Derived field: written only by the booking controller.
	RoomNumber string `json:"room_number" gorm:"type:varchar(50)"`

	CreatedAt time.Time `json:"created_at"`
	User      User      `json:"-" gorm:"foreignKey:UserID"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type Property struct {
	ID        string   `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID   string   `json:"owner_id" gorm:"index;type:varchar(36)"`
	Address   string   `json:"address"`
	City      string   `json:"city" gorm:"index"`
	State     string   `json:"state"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	// GeocodingAttempted marks properties the geocoder has already tried, so
	// unresolvable addresses are not retried on every backfill pass.
	GeocodingAttempted bool `json:"-" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	Owner     User      `json:"owner" gorm:"foreignKey:OwnerID"`
	Rooms     []Room    `json:"rooms,omitempty" gorm:"foreignKey:PropertyID"`
}

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type Room struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PropertyID    string     `json:"property_id" gorm:"type:varchar(36);uniqueIndex:idx_rooms_property_number"`
	RoomNumber    string     `json:"room_number" gorm:"type:varchar(50);uniqueIndex:idx_rooms_property_number"`
	RoomType      string     `json:"room_type" gorm:"index;type:varchar(50)"`
	RentAmount    float64    `json:"rent_amount" gorm:"index"`
	DepositAmount float64    `json:"deposit_amount"`
	Latitude      *float64   `json:"latitude"`
	Longitude     *float64   `json:"longitude"`
	Status        RoomStatus `json:"status" gorm:"type:varchar(16);default:'available';index"`
	LastUpdated   time.Time  `json:"last_updated"`
	CreatedAt     time.Time  `json:"created_at"`

	Property Property `json:"property,omitempty" gorm:"foreignKey:PropertyID"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.LastUpdated.IsZero() {
		r.LastUpdated = time.Now().UTC()
	}
	return nil
}

type Booking struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID string `json:"tenant_id" gorm:"index;type:varchar(36)"`
	RoomID   string `json:"room_id" gorm:"index;type:varchar(36)"`

	// PropertyID is denormalized from the room so owner-side queries skip a
	// join.
	PropertyID string `json:"property_id" gorm:"index;type:varchar(36)"`

	Status      BookingStatus `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	MoveInDate  time.Time     `json:"move_in_date"`
	MoveOutDate *time.Time    `json:"move_out_date"`
	TenantNotes string        `json:"tenant_notes"`
	OwnerNotes  string        `json:"owner_notes"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	Room     Room     `json:"room,omitempty" gorm:"foreignKey:RoomID"`
	Property Property `json:"-" gorm:"foreignKey:PropertyID"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type Notification struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"index;type:varchar(36)"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type" gorm:"type:varchar(32)"`
	Read      bool      `json:"read" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
