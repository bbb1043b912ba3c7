package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentease/cache"
	"rentease/database"
	"rentease/utils"
	"rentease/validation"
)

const defaultNoticePeriod = 30

type PropertyService struct {
	*core
	analytics *AnalyticsService
}

func boolPtr(b bool) *bool {
	return &b
}

// applyDefaults fills every field the listing form may leave empty
func (s *PropertyService) applyDefaults(p *database.Property) {
	if p.Price.Currency == "" {
		p.Price.Currency = database.DefaultCurrency
	}
	if p.Price.Period == "" {
		p.Price.Period = database.PricePerMonth
	}
	if p.AreaUnit == "" {
		p.AreaUnit = database.AreaUnitSqft
	}
	if p.Address.Country == "" {
		p.Address.Country = database.DefaultCountry
	}
	if p.Status == "" {
		p.Status = database.PropertyAvailable
	}
	if p.AvailableFrom.IsZero() {
		p.AvailableFrom = s.now()
	}
	if p.PgDetails.NoticePeriod == 0 {
		p.PgDetails.NoticePeriod = defaultNoticePeriod
	}
	if p.Rules.NonVegAllowed == nil {
		p.Rules.NonVegAllowed = boolPtr(true)
	}
	if p.Rules.GuestsAllowed == nil {
		p.Rules.GuestsAllowed = boolPtr(true)
	}
	for i := range p.Images {
		p.Images[i].PropertyID = p.ID
		if p.Images[i].Order == 0 {
			p.Images[i].Order = i
		}
	}
}

// Create lists a new property for ownerID
func (s *PropertyService) Create(ctx context.Context, ownerID uuid.UUID, p *database.Property) (*database.Property, error) {
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		owner, err := loadUser(tx, ownerID)
		if err != nil {
			return err
		}
		if owner.Role != database.RoleOwner && owner.Role != database.RoleAdmin {
			return fmt.Errorf("list property: %w", ErrForbidden)
		}

		p.ID = uuid.New()
		p.OwnerID = owner.ID
		p.Owner = nil
		p.Verified, p.VerifiedBy, p.VerifiedAt = false, nil, nil
		p.AverageRating, p.TotalReviews = 0, 0
		p.Views, p.Clicks, p.Inquiries, p.Bookings = 0, 0, 0, 0
		s.applyDefaults(p)
		if p.Status == database.PropertyBooked {
			return invariant("property_booked_manually", "A property becomes Booked only through a confirmed booking")
		}
		if err := validation.Struct(p); err != nil {
			return err
		}
		p.Slug = utils.Slugify(p.Title, p.ID)

		if err := tx.Create(p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{Field: "slug", Message: "A property with this slug already exists"}
			}
			return dbError("create property", err)
		}
		return s.audit(ctx, tx, "Property", p.ID, "create", "", string(p.Status))
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PropertyUpdate carries the editable listing fields; nil means unchanged
type PropertyUpdate struct {
	Title              *string                    `json:"title"`
	Description        *string                    `json:"description"`
	Address            *database.PropertyAddress  `json:"address"`
	PropertyType       *database.PropertyType     `json:"property_type"`
	Bedrooms           *int                       `json:"bedrooms"`
	Bathrooms          *int                       `json:"bathrooms"`
	Balconies          *int                       `json:"balconies"`
	Images             []database.PropertyImage   `json:"images"`
	Floor              *int                       `json:"floor"`
	TotalFloors        *int                       `json:"total_floors"`
	FurnishingStatus   *database.FurnishingStatus `json:"furnishing_status"`
	TotalArea          *float64                   `json:"total_area"`
	AreaUnit           *database.AreaUnit         `json:"area_unit"`
	Amenities          []database.Amenity         `json:"amenities"`
	Price              *database.Price            `json:"price"`
	SecurityDeposit    *float64                   `json:"security_deposit"`
	MaintenanceCharges *float64                   `json:"maintenance_charges"`
	Location           *database.GeoPoint         `json:"location"`
	AvailableFrom      *time.Time                 `json:"available_from"`
	AvailableTo        *time.Time                 `json:"available_to"`
	PgDetails          *database.PgDetails        `json:"pg_details"`
	Rules              *database.Rules            `json:"rules"`
}

func (u PropertyUpdate) apply(p *database.Property) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Address != nil {
		p.Address = *u.Address
	}
	if u.PropertyType != nil {
		p.PropertyType = *u.PropertyType
	}
	if u.Bedrooms != nil {
		p.Bedrooms = u.Bedrooms
	}
	if u.Bathrooms != nil {
		p.Bathrooms = *u.Bathrooms
	}
	if u.Balconies != nil {
		p.Balconies = *u.Balconies
	}
	if u.Floor != nil {
		p.Floor = u.Floor
	}
	if u.TotalFloors != nil {
		p.TotalFloors = u.TotalFloors
	}
	if u.FurnishingStatus != nil {
		p.FurnishingStatus = *u.FurnishingStatus
	}
	if u.TotalArea != nil {
		p.TotalArea = *u.TotalArea
	}
	if u.AreaUnit != nil {
		p.AreaUnit = *u.AreaUnit
	}
	if u.Amenities != nil {
		p.Amenities = u.Amenities
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.SecurityDeposit != nil {
		p.SecurityDeposit = *u.SecurityDeposit
	}
	if u.MaintenanceCharges != nil {
		p.MaintenanceCharges = *u.MaintenanceCharges
	}
	if u.Location != nil {
		p.Location = *u.Location
	}
	if u.AvailableFrom != nil {
		p.AvailableFrom = u.AvailableFrom.UTC()
	}
	if u.AvailableTo != nil {
		to := u.AvailableTo.UTC()
		p.AvailableTo = &to
	}
	if u.PgDetails != nil {
		p.PgDetails = *u.PgDetails
	}
	if u.Rules != nil {
		p.Rules = *u.Rules
	}
}

// canManage reports whether actorID owns p or is an admin
func canManage(tx *gorm.DB, actorID uuid.UUID, p *database.Property) (bool, error) {
	if p.OwnerID == actorID {
		return true, nil
	}
	return isAdmin(tx, actorID)
}

// Update edits a listing. The slug changes only when the title does.
func (s *PropertyService) Update(ctx context.Context, actorID, id uuid.UUID, upd PropertyUpdate) (*database.Property, error) {
	var p database.Property
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, &p, id); err != nil {
			return dbError("load property", err)
		}
		ok, err := canManage(tx, actorID, &p)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("update property: %w", ErrForbidden)
		}

		oldTitle := p.Title
		upd.apply(&p)
		if upd.Images != nil {
			p.Images = upd.Images
		}
		s.applyDefaults(&p)
		if err := validation.Struct(&p); err != nil {
			return err
		}
		if p.Title != oldTitle {
			p.Slug = utils.Slugify(p.Title, p.ID)
		}

		if err := tx.Omit(clause.Associations).Save(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{Field: "slug", Message: "A property with this slug already exists"}
			}
			return dbError("update property", err)
		}
		if upd.Images != nil {
			if err := tx.Where("property_id = ?", p.ID).Delete(&database.PropertyImage{}).Error; err != nil {
				return dbError("replace images", err)
			}
			for i := range p.Images {
				p.Images[i].ID = 0
			}
			if len(p.Images) > 0 {
				if err := tx.Create(&p.Images).Error; err != nil {
					return dbError("replace images", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func withImages(q *gorm.DB) *gorm.DB {
	return q.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order")
	})
}

func (s *PropertyService) Get(ctx context.Context, id uuid.UUID) (*database.Property, error) {
	var p database.Property
	if err := withImages(s.db.WithContext(ctx)).First(&p, "id = ?", id).Error; err != nil {
		return nil, dbError("load property", err)
	}
	return &p, nil
}

func (s *PropertyService) GetBySlug(ctx context.Context, slug string) (*database.Property, error) {
	var p database.Property
	if err := withImages(s.db.WithContext(ctx)).First(&p, "slug = ?", slug).Error; err != nil {
		return nil, dbError("load property", err)
	}
	return &p, nil
}

// SearchQuery filters listings; zero values are ignored
type SearchQuery struct {
	City         string
	PropertyType database.PropertyType
	Status       database.PropertyStatus
	Furnishing   database.FurnishingStatus
	MinPrice     float64
	MaxPrice     float64
	OwnerID      *uuid.UUID
	Page         Page
}

// Search returns one page of matching listings, newest first, and the total
// number of matches.
func (s *PropertyService) Search(ctx context.Context, q SearchQuery) ([]database.Property, int64, error) {
	db := s.db.WithContext(ctx).Model(&database.Property{})
	if q.City != "" {
		db = db.Where("LOWER(address_city) = ?", strings.ToLower(strings.TrimSpace(q.City)))
	}
	if q.PropertyType != "" {
		db = db.Where("property_type = ?", q.PropertyType)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	} else if q.OwnerID == nil {
		db = db.Where("status <> ?", database.PropertyInactive)
	}
	if q.Furnishing != "" {
		db = db.Where("furnishing_status = ?", q.Furnishing)
	}
	if q.MinPrice > 0 {
		db = db.Where("price_amount >= ?", q.MinPrice)
	}
	if q.MaxPrice > 0 {
		db = db.Where("price_amount <= ?", q.MaxPrice)
	}
	if q.OwnerID != nil {
		db = db.Where("owner_id = ?", *q.OwnerID)
	}

	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, dbError("count properties", err)
	}

	var out []database.Property
	if err := withImages(q.Page.apply(db.Order("created_at DESC"))).Find(&out).Error; err != nil {
		return nil, 0, dbError("search properties", err)
	}
	return out, total, nil
}

// NearbyProperty is a listing with its distance from the search point
type NearbyProperty struct {
	Property       database.Property `json:"property"`
	DistanceMeters float64           `json:"distance_meters"`
}

// Nearby returns available listings within radius meters of (lon, lat),
// closest first.
func (s *PropertyService) Nearby(ctx context.Context, lon, lat, radius float64, limit int) ([]NearbyProperty, error) {
	center := database.NewGeoPoint(lon, lat)
	if err := validation.Struct(center); err != nil {
		return nil, err
	}
	if radius <= 0 {
		return nil, validation.Field("radius", "Radius must be positive")
	}
	if limit <= 0 {
		limit = 20
	}

	bound := geo.NewBoundAroundPoint(center.Point(), radius)
	var candidates []database.Property
	err := s.db.WithContext(ctx).
		Where("status = ?", database.PropertyAvailable).
		Where("location_longitude BETWEEN ? AND ?", bound.Min.Lon(), bound.Max.Lon()).
		Where("location_latitude BETWEEN ? AND ?", bound.Min.Lat(), bound.Max.Lat()).
		Find(&candidates).Error
	if err != nil {
		return nil, dbError("nearby properties", err)
	}

	out := make([]NearbyProperty, 0, len(candidates))
	for _, p := range candidates {
		d := geo.DistanceHaversine(center.Point(), p.Location.Point())
		if d <= radius {
			out = append(out, NearbyProperty{Property: p, DistanceMeters: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetStatus moves a listing between Available, Maintenance, Sold and
// Inactive. Booked is set only by booking confirmation.
func (s *PropertyService) SetStatus(ctx context.Context, actorID, id uuid.UUID, status database.PropertyStatus) (*database.Property, error) {
	if !status.Valid() {
		return nil, validation.Field("status", "Not a valid property status")
	}
	if status == database.PropertyBooked {
		return nil, invariant("property_booked_manually", "A property becomes Booked only through a confirmed booking")
	}

	var p database.Property
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, &p, id); err != nil {
			return dbError("load property", err)
		}
		ok, err := canManage(tx, actorID, &p)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("set property status: %w", ErrForbidden)
		}
		if p.Status == status {
			return nil
		}

		from := p.Status
		if err := tx.Model(&p).Update("status", status).Error; err != nil {
			return dbError("set property status", err)
		}
		return s.audit(ctx, tx, "Property", p.ID, "status", string(from), string(status))
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Verify marks a listing as checked by an admin and tells the owner
func (s *PropertyService) Verify(ctx context.Context, adminID, id uuid.UUID) (*database.Property, error) {
	var p database.Property
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		admin, err := isAdmin(tx, adminID)
		if err != nil {
			return err
		}
		if !admin {
			return fmt.Errorf("verify property: %w", ErrForbidden)
		}
		if err := lock(tx, &p, id); err != nil {
			return dbError("load property", err)
		}
		if p.Verified {
			return nil
		}

		p.Verified = true
		p.VerifiedBy = &adminID
		p.VerifiedAt = timePtr(s.now())
		if err := tx.Model(&p).Select("verified", "verified_by", "verified_at").Updates(&p).Error; err != nil {
			return dbError("verify property", err)
		}
		if _, err := s.notify(tx, NotificationInput{
			UserID:   p.OwnerID,
			Type:     "property_verified",
			Title:    "Listing verified",
			Message:  fmt.Sprintf("Your listing %q has been verified.", p.Title),
			Related:  related(database.ResourceProperty, p.ID),
			Channels: []database.Channel{database.ChannelEmail},
		}); err != nil {
			return err
		}
		return s.audit(ctx, tx, "Property", p.ID, "verify", "false", "true")
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save adds the property to the user's saved list; saving twice is a no-op
func (s *PropertyService) Save(ctx context.Context, userID, propertyID uuid.UUID) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := loadUser(tx, userID); err != nil {
			return err
		}
		var p database.Property
		if err := tx.Select("id").First(&p, "id = ?", propertyID).Error; err != nil {
			return dbError("load property", err)
		}
		row := database.SavedProperty{UserID: userID, PropertyID: propertyID, CreatedAt: s.now()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return dbError("save property", err)
		}
		return nil
	})
}

// Unsave removes the property from the user's saved list; removing an
// unsaved property is a no-op.
func (s *PropertyService) Unsave(ctx context.Context, userID, propertyID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Delete(&database.SavedProperty{}).Error
	if err != nil {
		return dbError("unsave property", err)
	}
	return nil
}

// SavedBy lists the ids of users who saved the property
func (s *PropertyService) SavedBy(ctx context.Context, propertyID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&database.SavedProperty{}).
		Where("property_id = ?", propertyID).
		Order("created_at").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, dbError("saved by", err)
	}
	return ids, nil
}

// SavedProperties lists the listings a user saved, most recent first
func (s *PropertyService) SavedProperties(ctx context.Context, userID uuid.UUID) ([]database.Property, error) {
	var out []database.Property
	err := withImages(s.db.WithContext(ctx)).
		Joins("JOIN saved_properties sp ON sp.property_id = properties.id").
		Where("sp.user_id = ?", userID).
		Order("sp.created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, dbError("saved properties", err)
	}
	return out, nil
}

// RecordEngagement bumps the listing counter for event and feeds analytics
func (s *PropertyService) RecordEngagement(ctx context.Context, propertyID uuid.UUID, event cache.Event) error {
	if !event.Valid() {
		return validation.Field("event", fmt.Sprintf("%s is not a valid engagement event", event))
	}

	res := s.db.WithContext(ctx).Model(&database.Property{}).
		Where("id = ?", propertyID).
		UpdateColumn(string(event), gorm.Expr(string(event)+" + ?", 1))
	if res.Error != nil {
		return dbError("record engagement", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("record engagement: %w", ErrNotFound)
	}
	return s.analytics.Track(ctx, propertyID, event, 1)
}
