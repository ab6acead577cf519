package access

import (
	"github.com/infrahq/broker/internal/logging"
	"github.com/infrahq/broker/internal/server/data"
	"github.com/infrahq/broker/internal/server/models"
	"github.com/infrahq/broker/uid"
)

const resourceTicket = "ticket"

// ListTickets returns the review tickets in state, or in any state when state
// is empty. Super users see every ticket, other users see their own.
func (b *Broker) ListTickets(rCtx RequestContext, state models.TicketState) ([]models.Ticket, error) {
	user, err := authenticatedUser(rCtx)
	if err != nil {
		return nil, err
	}

	var selectors []data.SelectorFunc
	if !user.IsSuper() {
		selectors = append(selectors, data.ByRequester(user.Name))
	}
	if state != "" {
		selectors = append(selectors, data.ByTicketState(state))
	}
	return data.ListTickets(rCtx.DBTxn, selectors...)
}

// ApproveTicket approves a pending review ticket and activates the unexpired
// connection tokens that were waiting on it.
func (b *Broker) ApproveTicket(rCtx RequestContext, id uid.ID) (*models.Ticket, error) {
	user, err := requireSuper(rCtx, "approve", resourceTicket)
	if err != nil {
		return nil, err
	}

	ticket, err := data.ProcessTicket(rCtx.DBTxn, id, models.TicketStateApproved, user.Name)
	if err != nil {
		return nil, err
	}

	activated, err := data.ActivateTicketConnectionTokens(rCtx.DBTxn, ticket.ID, b.now())
	if err != nil {
		return nil, err
	}

	logging.Debugf("ticket %v approved by %v, activated %d tokens", ticket.ID, user.Name, activated)
	return ticket, nil
}

// RejectTicket rejects a pending review ticket. Tokens waiting on it stay
// inactive.
func (b *Broker) RejectTicket(rCtx RequestContext, id uid.ID) (*models.Ticket, error) {
	user, err := requireSuper(rCtx, "reject", resourceTicket)
	if err != nil {
		return nil, err
	}

	return data.ProcessTicket(rCtx.DBTxn, id, models.TicketStateRejected, user.Name)
}
