package data

import (
	"time"

	"gorm.io/gorm"

	"github.com/infrahq/broker/internal/server/models"
	"github.com/infrahq/broker/uid"
)

type SelectorFunc func(db *gorm.DB) *gorm.DB

func ByID(id uid.ID) SelectorFunc {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func ByUserName(name string) SelectorFunc {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_name = ?", name)
	}
}

// ByNotExpired selects tokens that expire after now.
func ByNotExpired(now time.Time) SelectorFunc {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("expires_at > ?", now)
	}
}

// ByUsable selects tokens that are active and expire after now.
func ByUsable(now time.Time) SelectorFunc {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ? AND expires_at > ?", true, now)
	}
}

func ByFromTicketID(ticketID uid.ID) SelectorFunc {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("from_ticket_id = ?", ticketID)
	}
}

func ByTicketState(state models.TicketState) SelectorFunc {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("state = ?", state)
	}
}

func ByRequester(name string) SelectorFunc {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("requester = ?", name)
	}
}
