package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentease/database"
	"rentease/validation"
)

type ReviewService struct {
	*core
}

type CreateReviewInput struct {
	BookingID uuid.UUID
	// PropertyID is optional; when set it must be the booking's property
	PropertyID    uuid.UUID
	OverallRating int
	RatingDetails database.RatingDetails
	Title         string
	Comment       string
	Photos        []database.Photo
}

// Create records the tenant's review of a booking and refreshes the
// property's rating in the same transaction.
func (s *ReviewService) Create(ctx context.Context, tenantID uuid.UUID, in CreateReviewInput) (*database.Review, error) {
	var r database.Review
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var b database.Booking
		if err := lock(tx, &b, in.BookingID); err != nil {
			return dbError("load booking", err)
		}
		if b.TenantID != tenantID {
			return invariant("review_tenant", "Only the booking's tenant can review it")
		}
		if in.PropertyID != uuid.Nil && in.PropertyID != b.PropertyID {
			return invariant("review_property", "Review property must match the booking's property")
		}
		if b.Status == database.BookingPending || b.Status == database.BookingCancelled {
			return invariant("review_booking_status", fmt.Sprintf("A %s booking cannot be reviewed", b.Status))
		}

		r = database.Review{
			Base:          database.Base{ID: uuid.New()},
			PropertyID:    b.PropertyID,
			BookingID:     b.ID,
			TenantID:      tenantID,
			OverallRating: in.OverallRating,
			RatingDetails: in.RatingDetails,
			Title:         strings.TrimSpace(in.Title),
			Comment:       strings.TrimSpace(in.Comment),
			Verified:      b.Status == database.BookingCompleted,
			Photos:        in.Photos,
		}
		if err := validation.Struct(&r); err != nil {
			return err
		}

		if err := tx.Create(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return &ConflictError{Field: "booking_id", Message: "This booking has already been reviewed"}
			}
			return dbError("create review", err)
		}

		p, err := s.refreshRating(tx, r.PropertyID)
		if err != nil {
			return err
		}
		_, err = s.notify(tx, NotificationInput{
			UserID:   p.OwnerID,
			Type:     "review_posted",
			Title:    "New review",
			Message:  fmt.Sprintf("%q received a %d star review.", p.Title, r.OverallRating),
			Related:  related(database.ResourceReview, r.ID),
			Priority: database.PriorityLow,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// refreshRating recomputes the property's average rating and review count
func (c *core) refreshRating(tx *gorm.DB, propertyID uuid.UUID) (*database.Property, error) {
	var agg struct {
		Avg   float64
		Count int
	}
	err := tx.Model(&database.Review{}).
		Select("COALESCE(AVG(overall_rating), 0) AS avg, COUNT(*) AS count").
		Where("property_id = ?", propertyID).
		Scan(&agg).Error
	if err != nil {
		return nil, dbError("aggregate ratings", err)
	}

	var p database.Property
	if err := lock(tx, &p, propertyID); err != nil {
		return nil, dbError("load property", err)
	}
	p.AverageRating = math.Round(agg.Avg*10) / 10
	p.TotalReviews = agg.Count
	if err := tx.Model(&p).Select("average_rating", "total_reviews").Updates(&p).Error; err != nil {
		return nil, dbError("update rating", err)
	}
	return &p, nil
}

// Respond stores the property owner's reply to a review
func (s *ReviewService) Respond(ctx context.Context, ownerID, reviewID uuid.UUID, comment string) (*database.Review, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, validation.Field("owner_response.comment", "Response comment is required")
	}

	var r database.Review
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, &r, reviewID); err != nil {
			return dbError("load review", err)
		}
		var p database.Property
		if err := tx.Select("id", "owner_id").First(&p, "id = ?", r.PropertyID).Error; err != nil {
			return dbError("load property", err)
		}
		if p.OwnerID != ownerID {
			return ErrForbidden
		}

		r.OwnerResponse = database.OwnerResponse{Comment: comment, RespondedAt: timePtr(s.now())}
		if err := validation.Struct(&r); err != nil {
			return err
		}
		err := tx.Model(&r).
			Select("owner_response_comment", "owner_response_responded_at").
			Updates(&r).Error
		if err != nil {
			return dbError("respond to review", err)
		}
		_, err = s.notify(tx, NotificationInput{
			UserID:   r.TenantID,
			Type:     "review_response",
			Title:    "The owner replied to your review",
			Message:  comment,
			Related:  related(database.ResourceReview, r.ID),
			Priority: database.PriorityLow,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Feedback counts a reader's helpful or unhelpful vote
func (s *ReviewService) Feedback(ctx context.Context, reviewID uuid.UUID, helpful bool) error {
	col := "unhelpful"
	if helpful {
		col = "helpful"
	}
	res := s.db.WithContext(ctx).Model(&database.Review{}).
		Where("id = ?", reviewID).
		UpdateColumn(col, gorm.Expr(col+" + ?", 1))
	if res.Error != nil {
		return dbError("review feedback", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("review feedback: %w", ErrNotFound)
	}
	return nil
}

// ListForProperty returns a property's reviews, newest first
func (s *ReviewService) ListForProperty(ctx context.Context, propertyID uuid.UUID, page Page) ([]database.Review, error) {
	var out []database.Review
	q := s.db.WithContext(ctx).Where("property_id = ?", propertyID).Order("created_at DESC")
	if err := page.apply(q).Find(&out).Error; err != nil {
		return nil, dbError("list reviews", err)
	}
	return out, nil
}
