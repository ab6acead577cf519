package data

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/infrahq/broker/internal/generate"
	"github.com/infrahq/broker/internal/server/models"
	"github.com/infrahq/broker/uid"
)

// maxValueAttempts bounds the retries on a token value collision. The value
// has enough entropy that a retry should never be necessary.
const maxValueAttempts = 3

// CreateConnectionToken stores a new token. A random value is generated for
// the token, replacing any value already set.
func CreateConnectionToken(db *gorm.DB, token *models.ConnectionToken) error {
	if token.ConnectOptions == nil {
		token.ConnectOptions = models.JSONMap{}
	}

	for attempt := 1; ; attempt++ {
		value, err := generate.CryptoRandom(models.ConnectionTokenValueLength, generate.CharsetAlphaNumeric)
		if err != nil {
			return err
		}
		token.Value = value

		// a savepoint keeps a failed insert from aborting the outer transaction
		err = db.Transaction(func(tx *gorm.DB) error {
			return add(tx, token)
		})

		var ucErr UniqueConstraintError
		if errors.As(err, &ucErr) && ucErr.Column == "value" && attempt < maxValueAttempts {
			continue
		}
		if err != nil {
			return fmt.Errorf("create connection token: %w", err)
		}
		return nil
	}
}

func GetConnectionToken(db *gorm.DB, selectors ...SelectorFunc) (*models.ConnectionToken, error) {
	return get[models.ConnectionToken](db, selectors...)
}

func ListConnectionTokens(db *gorm.DB, selectors ...SelectorFunc) ([]models.ConnectionToken, error) {
	return list[models.ConnectionToken](db, selectors...)
}

// ExtendConnectionTokenExpiry sets the expiry of the token with id to
// expiresAt only if that moves it forward. It returns false when the stored
// expiry is already at or past expiresAt, for example after a concurrent
// renewal.
func ExtendConnectionTokenExpiry(db *gorm.DB, id uid.ID, expiresAt time.Time) (bool, error) {
	result := db.Model(&models.ConnectionToken{}).
		Where("id = ? AND expires_at < ?", id, expiresAt).
		Update("expires_at", expiresAt)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	if _, err := GetConnectionToken(db, ByID(id)); err != nil {
		return false, fmt.Errorf("connection token %v: %w", id, err)
	}
	return false, nil
}

// DeactivateConnectionToken sets is_active to false. Deactivating an inactive
// token is not an error.
func DeactivateConnectionToken(db *gorm.DB, id uid.ID) error {
	return db.Model(&models.ConnectionToken{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

// DeactivateUsableConnectionToken deactivates the token only if it is still
// active and unexpired at now, in a single statement. It returns false when
// the token was not usable, which lets exactly one of many concurrent
// callers win.
func DeactivateUsableConnectionToken(db *gorm.DB, id uid.ID, now time.Time) (bool, error) {
	result := db.Model(&models.ConnectionToken{}).
		Where("id = ? AND is_active = ? AND expires_at > ?", id, true, now).
		Update("is_active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ActivateTicketConnectionTokens activates the unexpired tokens that were
// created under the ticket.
func ActivateTicketConnectionTokens(db *gorm.DB, ticketID uid.ID, now time.Time) (int64, error) {
	result := db.Model(&models.ConnectionToken{}).
		Where("from_ticket_id = ? AND expires_at > ?", ticketID, now).
		Update("is_active", true)
	return result.RowsAffected, result.Error
}

// DeleteExpiredConnectionTokens removes the tokens that expired before
// before. The rows are removed, not soft deleted.
func DeleteExpiredConnectionTokens(db *gorm.DB, before time.Time) (int64, error) {
	result := db.Unscoped().
		Where("expires_at < ?", before).
		Delete(&models.ConnectionToken{})
	return result.RowsAffected, result.Error
}
