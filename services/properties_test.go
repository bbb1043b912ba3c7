package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"rentease/cache"
	"rentease/database"
)

func TestCreatePropertyAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)

	p := f.property(owner)

	assert.Equal(t, owner.ID, p.OwnerID)
	assert.Equal(t, database.DefaultCurrency, p.Price.Currency)
	assert.Equal(t, database.PricePerMonth, p.Price.Period)
	assert.Equal(t, database.AreaUnitSqft, p.AreaUnit)
	assert.Equal(t, database.DefaultCountry, p.Address.Country)
	assert.Equal(t, database.PropertyAvailable, p.Status)
	assert.Equal(t, 30, p.PgDetails.NoticePeriod)
	require.NotNil(t, p.Rules.GuestsAllowed)
	assert.True(t, *p.Rules.GuestsAllowed)
	assert.True(t, p.AvailableFrom.Equal(f.clock.Now()))
	assert.Regexp(t, `^spacious-2bhk-in-indiranagar-[0-9a-f]{6}$`, p.Slug)
	assert.Equal(t, float64(1000), p.PricePerDay())
}

func TestCreatePropertyRequiresOwnerRole(t *testing.T) {
	f := newFixture(t)
	tenant := f.user(database.RoleTenant)

	_, err := f.svc.Properties.Create(f.ctx, tenant.ID, listing())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreatePropertyValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)

	p := listing()
	p.Title = "Flat"
	p.Bedrooms = nil
	_, err := f.svc.Properties.Create(f.ctx, owner.ID, p)
	verrs := requireValidation(t, err)

	assert.Equal(t, "Title must be at least 5 characters", verrs.Message("title"))
	assert.Equal(t, "Available-to date is required", verrs.Message("available_to"))
	assert.Equal(t, "Number of bedrooms is required", verrs.Message("bedrooms"))
}

func TestSlugRoundTrip(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	p := f.property(owner)

	got, err := f.svc.Properties.GetBySlug(f.ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "a", got.Images[0].PublicID)

	_, err = f.svc.Properties.GetBySlug(f.ctx, "missing-slug")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRegeneratesSlugOnlyOnTitleChange(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	p := f.property(owner)

	bathrooms := 3
	updated, err := f.svc.Properties.Update(f.ctx, owner.ID, p.ID, PropertyUpdate{Bathrooms: &bathrooms})
	require.NoError(t, err)
	assert.Equal(t, p.Slug, updated.Slug)
	assert.Equal(t, 3, updated.Bathrooms)

	title := "Renovated 2BHK near Metro"
	updated, err = f.svc.Properties.Update(f.ctx, owner.ID, p.ID, PropertyUpdate{
		Title:  &title,
		Images: []database.PropertyImage{{URL: "https://cdn.example.com/c.jpg", PublicID: "c"}},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^renovated-2bhk-near-metro-[0-9a-f]{6}$`, updated.Slug)

	got, err := f.svc.Properties.Get(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Slug, got.Slug)
	require.Len(t, got.Images, 1)
	assert.Equal(t, "c", got.Images[0].PublicID)

	stranger := f.user(database.RoleOwner)
	_, err = f.svc.Properties.Update(f.ctx, stranger.ID, p.ID, PropertyUpdate{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSlugConflict(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	p := f.property(owner)
	other := f.property(owner)

	require.NoError(t, f.db.Model(&database.Property{}).Where("id = ?", other.ID).Update("slug", "taken").Error)
	err := f.db.Model(&database.Property{}).Where("id = ?", p.ID).Update("slug", "taken").Error
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "unique slug index, got %v", err)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	cheap := f.property(owner)
	pricey := listing()
	pricey.Price.Amount = 90000
	pricey.Address.City = "Mumbai"
	to := f.day(200)
	pricey.AvailableTo = &to
	_, err := f.svc.Properties.Create(f.ctx, owner.ID, pricey)
	require.NoError(t, err)

	got, total, err := f.svc.Properties.Search(f.ctx, SearchQuery{City: "bengaluru"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, cheap.ID, got[0].ID)

	got, total, err = f.svc.Properties.Search(f.ctx, SearchQuery{MinPrice: 50000})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Mumbai", got[0].Address.City)

	_, err = f.svc.Properties.SetStatus(f.ctx, owner.ID, cheap.ID, database.PropertyInactive)
	require.NoError(t, err)
	_, total, err = f.svc.Properties.Search(f.ctx, SearchQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total, "inactive listings are hidden")
}

func TestNearby(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)

	near := f.property(owner)
	far := listing()
	far.Location = database.NewGeoPoint(77.7500, 12.9700)
	to := f.day(100)
	far.AvailableTo = &to
	_, err := f.svc.Properties.Create(f.ctx, owner.ID, far)
	require.NoError(t, err)

	got, err := f.svc.Properties.Nearby(f.ctx, 77.6400, 12.9780, 2000, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, near.ID, got[0].Property.ID)
	assert.Less(t, got[0].DistanceMeters, 200.0)

	got, err = f.svc.Properties.Nearby(f.ctx, 77.6400, 12.9780, 20000, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Less(t, got[0].DistanceMeters, got[1].DistanceMeters)

	_, err = f.svc.Properties.Nearby(f.ctx, 200, 12, 1000, 10)
	requireValidation(t, err)
}

func TestSetStatusRejectsManualBooked(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	p := f.property(owner)

	_, err := f.svc.Properties.SetStatus(f.ctx, owner.ID, p.ID, database.PropertyBooked)
	requireInvariant(t, err, "property_booked_manually")
}

func TestVerifyIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	admin := f.admin()
	p := f.property(owner)

	_, err := f.svc.Properties.Verify(f.ctx, owner.ID, p.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	verified, err := f.svc.Properties.Verify(f.ctx, admin.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, admin.ID, *verified.VerifiedBy)

	notes, err := f.svc.Notifications.ListForUser(f.ctx, owner.ID, true, Page{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "property_verified", notes[0].Type)
}

func TestSaveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	tenant := f.user(database.RoleTenant)
	p := f.property(owner)

	require.NoError(t, f.svc.Properties.Save(f.ctx, tenant.ID, p.ID))
	require.NoError(t, f.svc.Properties.Save(f.ctx, tenant.ID, p.ID))

	ids, err := f.svc.Properties.SavedBy(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	saved, err := f.svc.Properties.SavedProperties(f.ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, p.ID, saved[0].ID)

	require.NoError(t, f.svc.Properties.Unsave(f.ctx, tenant.ID, p.ID))
	require.NoError(t, f.svc.Properties.Unsave(f.ctx, tenant.ID, p.ID))
	ids, err = f.svc.Properties.SavedBy(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRecordEngagement(t *testing.T) {
	f := newFixture(t)
	owner := f.user(database.RoleOwner)
	p := f.property(owner)

	require.NoError(t, f.svc.Properties.RecordEngagement(f.ctx, p.ID, cache.EventView))
	require.NoError(t, f.svc.Properties.RecordEngagement(f.ctx, p.ID, cache.EventView))
	require.NoError(t, f.svc.Properties.RecordEngagement(f.ctx, p.ID, cache.EventClick))

	got := f.reloadProperty(p.ID)
	assert.EqualValues(t, 2, got.Views)
	assert.EqualValues(t, 1, got.Clicks)

	var bucket database.Analytics
	require.NoError(t, f.db.Where("property_id = ? AND period = ?", p.ID, database.PeriodDaily).First(&bucket).Error)
	assert.EqualValues(t, 2, bucket.Metrics.Views)
	assert.EqualValues(t, 1, bucket.Metrics.Clicks)

	assert.Error(t, f.svc.Properties.RecordEngagement(f.ctx, p.ID, cache.Event("likes")))
}
