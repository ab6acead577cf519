package api

import (
	"github.com/infrahq/broker/internal/validate"
	"github.com/infrahq/broker/uid"
)

type Ticket struct {
	ID          uid.ID   `json:"id"`
	Created     Time     `json:"created"`
	Requester   string   `json:"requester"`
	AssetID     string   `json:"asset"`
	AssetName   string   `json:"assetName"`
	Account     string   `json:"account"`
	Reviewers   []string `json:"reviewers"`
	State       string   `json:"state"`
	ProcessedBy string   `json:"processedBy,omitempty"`
}

type ListTicketsRequest struct {
	State string `form:"state"`
}

func (r ListTicketsRequest) ValidationRules() []validate.ValidationRule {
	return []validate.ValidationRule{
		validate.Enum("state", r.State, []string{"pending", "approved", "rejected"}),
	}
}
