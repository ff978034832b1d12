package services

import (
	"log"

	"credit-hub-system/models"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

// NotificationService writes in-app notification rows. Notifications are
// fire-and-forget: a failed insert is logged and never fails the
// operation that triggered it.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

func (n *NotificationService) Notify(accountID string, kind models.NotificationKind, msg, link string) {
	notif := models.Notification{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Kind:      kind,
		Message:   msg,
		Link:      link,
	}
	if err := n.DB.Create(&notif).Error; err != nil {
		log.Printf("[NOTIFY] insert failed for %s: %v", accountID, err)
	}
}

// NotifyCredits formats credit amounts with thousands separators
// (1,000 CR, not 1000 CR) before writing the notification.
func (n *NotificationService) NotifyCredits(accountID string, kind models.NotificationKind, format string, args ...interface{}) {
	p := message.NewPrinter(language.English)
	n.Notify(accountID, kind, p.Sprintf(format, args...), "/mypage")
}

// Recent returns the latest notifications for the account, newest first.
func (n *NotificationService) Recent(accountID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	var rows []models.Notification
	err := n.DB.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (n *NotificationService) MarkAllRead(accountID string) error {
	return n.DB.Model(&models.Notification{}).
		Where("account_id = ? AND is_read = ?", accountID, false).
		Update("is_read", true).Error
}
