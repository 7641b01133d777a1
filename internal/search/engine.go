package search

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/geo"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/models"
)

// DefaultRadiusKm is applied when a geo search supplies a center but no
// radius.
const DefaultRadiusKm = 10.0

// Filters holds the already-validated search parameters. Numeric fields are
// pointers so "absent" and "zero" stay distinct; the HTTP layer rejects
// malformed values before they get here.
type Filters struct {
	Location  string
	RoomType  string
	MinRent   *float64
	MaxRent   *float64
	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// geoRequested reports whether both center coordinates were supplied.
func (f Filters) geoRequested() bool {
	return f.Latitude != nil && f.Longitude != nil
}

type Center struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type RoomResult struct {
	models.Room
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

type Results struct {
	Rooms    []RoomResult `json:"rooms"`
	Count    int          `json:"count"`
	Center   *Center      `json:"search_center,omitempty"`
	RadiusKm *float64     `json:"radius_km,omitempty"`
}

// Engine ranks available rooms. Equality and range filters run in the store;
// the geo path pulls candidates into memory for distance filtering because
// the store has no spatial functions.
type Engine struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewEngine(db *gorm.DB, logger *logrus.Logger) *Engine {
	return &Engine{db: db, logger: logger}
}

func (e *Engine) Search(f Filters) (*Results, error) {
	if f.geoRequested() {
		return e.searchGeo(f)
	}
	return e.searchPlain(f)
}

func (e *Engine) baseQuery(f Filters) *gorm.DB {
	q := e.db.Model(&models.Room{}).
		Select("rooms.*").
		Joins("JOIN properties ON properties.id = rooms.property_id").
		Preload("Property").
		Preload("Property.Owner").
		Where("rooms.status = ?", models.RoomAvailable)

	if f.RoomType != "" {
		q = q.Where("rooms.room_type = ?", f.RoomType)
	}
	if f.MinRent != nil {
		q = q.Where("rooms.rent_amount >= ?", *f.MinRent)
	}
	if f.MaxRent != nil {
		q = q.Where("rooms.rent_amount <= ?", *f.MaxRent)
	}
	if f.Location != "" {
		pattern := "%" + strings.ToLower(f.Location) + "%"
		q = q.Where(
			"LOWER(properties.city) LIKE ? OR LOWER(properties.state) LIKE ? OR LOWER(properties.address) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	return q
}

// searchPlain delegates ordering and pagination to the store.
func (e *Engine) searchPlain(f Filters) (*Results, error) {
	q := e.baseQuery(f).Order(fmt.Sprintf("rooms.%s %s", sortColumn(f.SortBy), sortDirection(f.SortOrder)))
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rooms []models.Room
	if err := q.Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to query available rooms: %w", err)
	}

	results := make([]RoomResult, 0, len(rooms))
	for _, r := range rooms {
		results = append(results, RoomResult{Room: r})
	}
	return &Results{Rooms: results, Count: len(results)}, nil
}

// searchGeo fetches every candidate matching the non-geo filters, computes
// distances in process and filters by radius. Rooms whose coordinates cannot
// be resolved keep a nil distance and are never excluded by the radius.
func (e *Engine) searchGeo(f Filters) (*Results, error) {
	center := orb.Point{*f.Longitude, *f.Latitude}
	radius := DefaultRadiusKm
	if f.RadiusKm != nil {
		radius = *f.RadiusKm
	}

	var rooms []models.Room
	if err := e.baseQuery(f).Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to query available rooms: %w", err)
	}

	results := make([]RoomResult, 0, len(rooms))
	for _, r := range rooms {
		var dist *float64
		if p := roomPoint(r); p != nil {
			d := geo.Distance(center, *p)
			if d > radius {
				continue
			}
			dist = &d
		}
		results = append(results, RoomResult{Room: r, DistanceKm: dist})
	}

	sortResults(results, f.SortBy, f.SortOrder)
	results = paginate(results, f.Offset, f.Limit)

	e.logger.WithFields(logrus.Fields{
		"candidates": len(rooms),
		"matched":    len(results),
		"radius_km":  radius,
	}).Debug("Geo search completed")

	return &Results{
		Rooms:    results,
		Count:    len(results),
		Center:   &Center{Latitude: *f.Latitude, Longitude: *f.Longitude},
		RadiusKm: &radius,
	}, nil
}

// roomPoint resolves a room's coordinates, falling back to the parent
// property's. Returns nil when neither carries a usable pair.
func roomPoint(r models.Room) *orb.Point {
	if r.Latitude != nil && r.Longitude != nil {
		p := orb.Point{*r.Longitude, *r.Latitude}
		return &p
	}
	if r.Property.Latitude != nil && r.Property.Longitude != nil {
		p := orb.Point{*r.Property.Longitude, *r.Property.Latitude}
		return &p
	}
	return nil
}

// sortColumn maps the public sort key onto an allowlisted column.
func sortColumn(sortBy string) string {
	switch sortBy {
	case "rent":
		return "rent_amount"
	case "deposit":
		return "deposit_amount"
	default:
		return "created_at"
	}
}

func sortDirection(sortOrder string) string {
	if sortOrder == "asc" {
		return "ASC"
	}
	return "DESC"
}

func sortResults(results []RoomResult, sortBy, sortOrder string) {
	if sortBy == "distance" {
		// Always ascending; rooms without a resolvable distance go last.
		sort.SliceStable(results, func(i, j int) bool {
			di, dj := results[i].DistanceKm, results[j].DistanceKm
			if di == nil {
				return false
			}
			if dj == nil {
				return true
			}
			return *di < *dj
		})
		return
	}

	key := func(r RoomResult) float64 {
		switch sortBy {
		case "rent":
			return r.RentAmount
		case "deposit":
			return r.DepositAmount
		default:
			return float64(r.CreatedAt.UnixNano())
		}
	}
	asc := sortOrder == "asc"
	sort.SliceStable(results, func(i, j int) bool {
		if asc {
			return key(results[i]) < key(results[j])
		}
		return key(results[i]) > key(results[j])
	})
}

func paginate(results []RoomResult, offset, limit int) []RoomResult {
	if offset > 0 {
		if offset >= len(results) {
			return []RoomResult{}
		}
		results = results[offset:]
	}
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results
}
