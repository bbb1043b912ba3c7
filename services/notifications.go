package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentease/database"
	"rentease/validation"
)

// NotificationInput describes a notification to record
type NotificationInput struct {
	UserID   uuid.UUID
	Type     string
	Title    string
	Message  string
	Related  database.RelatedResource
	Channels []database.Channel
	Priority database.Priority
}

// related builds a typed resource reference
func related(t database.ResourceType, id uuid.UUID) database.RelatedResource {
	return database.RelatedResource{Type: t, ID: &id}
}

// NotificationService records delivery intent and outcome. Sending is done
// by external workers that report back through MarkDelivered.
type NotificationService struct {
	*core
}

// notify writes a notification inside tx. The in-app channel is delivered
// by being stored; every other requested channel waits for a worker.
func (c *core) notify(tx *gorm.DB, in NotificationInput) (*database.Notification, error) {
	now := c.now()
	n := database.Notification{
		Base:     database.Base{ID: uuid.New()},
		UserID:   in.UserID,
		Type:     strings.TrimSpace(in.Type),
		Title:    strings.TrimSpace(in.Title),
		Message:  strings.TrimSpace(in.Message),
		Related:  in.Related,
		Priority: in.Priority,
	}
	if n.Priority == "" {
		n.Priority = database.PriorityMedium
	}

	n.Channels.InApp = database.ChannelDelivery{Requested: true, Sent: true, SentAt: &now}
	for _, ch := range in.Channels {
		d := n.Channels.Delivery(ch)
		if d == nil {
			return nil, validation.Field("channels", fmt.Sprintf("%s is not a valid channel", ch))
		}
		d.Requested = true
	}

	if err := validation.Struct(&n); err != nil {
		return nil, err
	}
	if err := tx.Create(&n).Error; err != nil {
		return nil, dbError("create notification", err)
	}
	return &n, nil
}

// Create records a standalone notification
func (s *NotificationService) Create(ctx context.Context, in NotificationInput) (*database.Notification, error) {
	var n *database.Notification
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := loadUser(tx, in.UserID); err != nil {
			return err
		}
		var err error
		n, err = s.notify(tx, in)
		return err
	})
	return n, err
}

func channelColumn(ch database.Channel, field string) string {
	return "channel_" + string(ch) + "_" + field
}

// MarkDelivered records that a worker sent the notification on ch
func (s *NotificationService) MarkDelivered(ctx context.Context, id uuid.UUID, ch database.Channel, sentAt time.Time) (*database.Notification, error) {
	if !ch.Valid() {
		return nil, validation.Field("channel", fmt.Sprintf("%s is not a valid channel", ch))
	}

	var n database.Notification
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, &n, id); err != nil {
			return dbError("load notification", err)
		}
		d := n.Channels.Delivery(ch)
		if !d.Requested {
			return invariant("channel_not_requested", fmt.Sprintf("Notification was not requested on %s", ch))
		}
		if d.Sent {
			return nil
		}

		at := sentAt.UTC()
		if sentAt.IsZero() {
			at = s.now()
		}
		d.Sent, d.SentAt = true, &at

		return tx.Model(&n).Updates(map[string]interface{}{
			channelColumn(ch, "sent"):    true,
			channelColumn(ch, "sent_at"): at,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// PendingDeliveries lists notifications still waiting to be sent on ch, oldest first
func (s *NotificationService) PendingDeliveries(ctx context.Context, ch database.Channel, limit int) ([]database.Notification, error) {
	if !ch.Valid() {
		return nil, validation.Field("channel", fmt.Sprintf("%s is not a valid channel", ch))
	}
	if limit <= 0 {
		limit = 100
	}

	var out []database.Notification
	err := s.db.WithContext(ctx).
		Where(channelColumn(ch, "requested")+" = ? AND "+channelColumn(ch, "sent")+" = ?", true, false).
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, dbError("pending deliveries", err)
	}
	return out, nil
}

// Get loads one of the user's notifications
func (s *NotificationService) Get(ctx context.Context, userID, id uuid.UUID) (*database.Notification, error) {
	var n database.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, dbError("load notification", err)
	}
	return &n, nil
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&database.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return dbError("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark notification read: %w", ErrNotFound)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user and returns how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Model(&database.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, dbError("mark all read", res.Error)
	}
	return res.RowsAffected, nil
}

// ListForUser returns the user's notifications, newest first
func (s *NotificationService) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page Page) ([]database.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var out []database.Notification
	if err := page.apply(q.Order("created_at DESC")).Find(&out).Error; err != nil {
		return nil, dbError("list notifications", err)
	}
	return out, nil
}

// resolvers maps each resource type to the model its id points into
var resolvers = map[database.ResourceType]func() interface{}{
	database.ResourceBooking:  func() interface{} { return &database.Booking{} },
	database.ResourceProperty: func() interface{} { return &database.Property{} },
	database.ResourcePayment:  func() interface{} { return &database.Payment{} },
	database.ResourceReview:   func() interface{} { return &database.Review{} },
	database.ResourceMessage:  func() interface{} { return &database.Message{} },
	database.ResourceUser:     func() interface{} { return &database.User{} },
}

// Resolve loads the entity a notification refers to. It returns nil when
// the notification has no related resource.
func (s *NotificationService) Resolve(ctx context.Context, n *database.Notification) (interface{}, error) {
	if n.Related.Type == "" || n.Related.ID == nil {
		return nil, nil
	}
	newTarget, ok := resolvers[n.Related.Type]
	if !ok {
		return nil, validation.Field("related_resource.type", fmt.Sprintf("%s is not a valid resource type", n.Related.Type))
	}

	target := newTarget()
	if err := s.db.WithContext(ctx).First(target, "id = ?", *n.Related.ID).Error; err != nil {
		return nil, dbError("resolve "+string(n.Related.Type), err)
	}
	return target, nil
}
