package models

import (
	"github.com/infrahq/broker/api"
)

type TicketState string

const (
	TicketStatePending  TicketState = "pending"
	TicketStateApproved TicketState = "approved"
	TicketStateRejected TicketState = "rejected"
)

// Ticket is a login review request created when an ACL rule asks for a human
// to approve access to an asset.
type Ticket struct {
	Model

	Requester      string `gorm:"index"`
	AssetID        string
	AssetName      string
	Account        string
	Reviewers      CommaSeparatedStrings
	OrganizationID string

	State       TicketState
	ProcessedBy string
}

func (t *Ticket) ToAPI() *api.Ticket {
	return &api.Ticket{
		ID:          t.ID,
		Created:     api.Time(t.CreatedAt),
		Requester:   t.Requester,
		AssetID:     t.AssetID,
		AssetName:   t.AssetName,
		Account:     t.Account,
		Reviewers:   t.Reviewers,
		State:       string(t.State),
		ProcessedBy: t.ProcessedBy,
	}
}
