package data

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/infrahq/broker/internal/server/models"
	"github.com/infrahq/broker/uid"
)

func CreateTicket(db *gorm.DB, ticket *models.Ticket) error {
	if ticket.State == "" {
		ticket.State = models.TicketStatePending
	}
	return add(db, ticket)
}

func GetTicket(db *gorm.DB, selectors ...SelectorFunc) (*models.Ticket, error) {
	return get[models.Ticket](db, selectors...)
}

func ListTickets(db *gorm.DB, selectors ...SelectorFunc) ([]models.Ticket, error) {
	return list[models.Ticket](db, selectors...)
}

// ProcessTicket moves a pending ticket to state. Tickets that are no longer
// pending return ErrTicketProcessed.
func ProcessTicket(db *gorm.DB, id uid.ID, state models.TicketState, processedBy string) (*models.Ticket, error) {
	result := db.Model(&models.Ticket{}).
		Where("id = ? AND state = ?", id, models.TicketStatePending).
		Updates(map[string]interface{}{"state": state, "processed_by": processedBy})
	if result.Error != nil {
		return nil, result.Error
	}

	ticket, err := GetTicket(db, ByID(id))
	if err != nil {
		return nil, err
	}

	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("ticket %v is %v: %w", id, ticket.State, ErrTicketProcessed)
	}

	return ticket, nil
}
