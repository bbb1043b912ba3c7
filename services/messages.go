package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentease/database"
	"rentease/validation"
)

type MessageService struct {
	*core
}

type SendMessageInput struct {
	BookingID   uuid.UUID
	RecipientID uuid.UUID
	Content     string
	// Type is inferred from the attachments when empty
	Type        database.MessageType
	Attachments []database.Attachment
}

// messageType picks image when every attachment is an image, file when
// there are other attachments, text otherwise.
func messageType(attachments []database.Attachment) database.MessageType {
	if len(attachments) == 0 {
		return database.MessageText
	}
	for _, a := range attachments {
		if a.Type != database.AttachmentImage {
			return database.MessageFile
		}
	}
	return database.MessageImage
}

// Send posts a message in a booking's conversation. Sender and recipient
// must be the booking's tenant and the property owner.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, in SendMessageInput) (*database.Message, error) {
	m := database.Message{
		Base:        database.Base{ID: uuid.New()},
		BookingID:   in.BookingID,
		SenderID:    senderID,
		RecipientID: in.RecipientID,
		Content:     strings.TrimSpace(in.Content),
		Type:        in.Type,
		Attachments: in.Attachments,
	}
	if m.Type == "" {
		m.Type = messageType(m.Attachments)
	}
	if err := validation.Struct(&m); err != nil {
		return nil, err
	}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		p, err := parties(tx, in.BookingID)
		if err != nil {
			return err
		}
		if !p.Includes(senderID) || !p.Includes(in.RecipientID) {
			return invariant("message_participants", "Messages can only be exchanged between the booking's tenant and the property owner")
		}

		if err := tx.Create(&m).Error; err != nil {
			return dbError("send message", err)
		}

		preview := m.Content
		if utf8.RuneCountInString(preview) > 120 {
			preview = string([]rune(preview)[:120]) + "..."
		}
		if preview == "" {
			preview = fmt.Sprintf("Sent %d attachment(s)", len(m.Attachments))
		}
		_, err = s.notify(tx, NotificationInput{
			UserID:   m.RecipientID,
			Type:     "message_received",
			Title:    "New message",
			Message:  preview,
			Related:  related(database.ResourceMessage, m.ID),
			Channels: []database.Channel{database.ChannelPush},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Conversation returns a booking's messages in the order they were sent.
// Only the two participants may read it.
func (s *MessageService) Conversation(ctx context.Context, userID, bookingID uuid.UUID, page Page) ([]database.Message, error) {
	db := s.db.WithContext(ctx)
	p, err := parties(db, bookingID)
	if err != nil {
		return nil, err
	}
	if !p.Includes(userID) {
		return nil, ErrForbidden
	}

	var out []database.Message
	q := db.Where("booking_id = ?", bookingID).Order("created_at").Order("id")
	if err := page.apply(q).Find(&out).Error; err != nil {
		return nil, dbError("load conversation", err)
	}
	return out, nil
}

// MarkRead marks a message read by its recipient
func (s *MessageService) MarkRead(ctx context.Context, userID, id uuid.UUID) (*database.Message, error) {
	var m database.Message
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lock(tx, &m, id); err != nil {
			return dbError("load message", err)
		}
		if m.RecipientID != userID {
			return ErrForbidden
		}
		if m.IsRead {
			return nil
		}
		m.IsRead, m.ReadAt = true, timePtr(s.now())
		if err := tx.Model(&m).Select("is_read", "read_at").Updates(&m).Error; err != nil {
			return dbError("mark message read", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UnreadCount is the number of unread messages addressed to userID
func (s *MessageService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&database.Message{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, dbError("count unread", err)
	}
	return n, nil
}
