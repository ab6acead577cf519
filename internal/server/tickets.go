package server

import (
	"github.com/gin-gonic/gin"

	"github.com/infrahq/broker/api"
	"github.com/infrahq/broker/internal/access"
	"github.com/infrahq/broker/internal/server/models"
)

func (a *API) ListTickets(c *gin.Context, r *api.ListTicketsRequest) (*api.ListResponse[api.Ticket], error) {
	tickets, err := a.server.broker.ListTickets(access.GetRequestContext(c), models.TicketState(r.State))
	if err != nil {
		return nil, err
	}

	return api.NewListResponse(tickets, func(ticket models.Ticket) api.Ticket {
		return *ticket.ToAPI()
	}), nil
}

func (a *API) ApproveTicket(c *gin.Context, r *api.Resource) (*api.Ticket, error) {
	ticket, err := a.server.broker.ApproveTicket(access.GetRequestContext(c), r.ID)
	if err != nil {
		return nil, err
	}
	return ticket.ToAPI(), nil
}

func (a *API) RejectTicket(c *gin.Context, r *api.Resource) (*api.Ticket, error) {
	ticket, err := a.server.broker.RejectTicket(access.GetRequestContext(c), r.ID)
	if err != nil {
		return nil, err
	}
	return ticket.ToAPI(), nil
}
