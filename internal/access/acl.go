package access

import (
	"context"
	"fmt"
	"time"

	"github.com/infrahq/broker/internal/server/models"
)

type ACLAction int

const (
	ACLAccept ACLAction = iota
	ACLReject
	ACLReview
)

func (a ACLAction) String() string {
	switch a {
	case ACLAccept:
		return "accept"
	case ACLReject:
		return "reject"
	case ACLReview:
		return "review"
	default:
		return fmt.Sprintf("ACLAction(%d)", int(a))
	}
}

// ParseACLAction converts the text form of an action, as used in policy files.
func ParseACLAction(s string) (ACLAction, error) {
	switch s {
	case "accept":
		return ACLAccept, nil
	case "reject":
		return ACLReject, nil
	case "review":
		return ACLReview, nil
	}
	return 0, fmt.Errorf("unknown acl action %q", s)
}

// ACLRule is a login rule for an asset. Zero NotBefore or NotAfter leave that
// side of the validity window open.
type ACLRule struct {
	Name      string
	Priority  int
	Action    ACLAction
	Reviewers []string
	IsActive  bool
	NotBefore time.Time
	NotAfter  time.Time
}

// ValidAt returns true if the rule is active and now is inside its window.
func (r ACLRule) ValidAt(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if !r.NotBefore.IsZero() && now.Before(r.NotBefore) {
		return false
	}
	if !r.NotAfter.IsZero() && !now.Before(r.NotAfter) {
		return false
	}
	return true
}

// ACLDecision is the outcome of EvaluateACL. Ticket is set only for a review
// decision when the caller asked for a ticket.
type ACLDecision struct {
	Action    ACLAction
	Rule      *ACLRule
	Reviewers []string
	Ticket    *models.Ticket
}

// EvaluateACL applies the first valid ACL rule matching the login. When no
// rule matches the login is accepted. A review rule fails unless createTicket
// is set, in which case exactly one review ticket is created.
func (b *Broker) EvaluateACL(rCtx RequestContext, user string, asset *Asset, account Account, createTicket bool) (*ACLDecision, error) {
	ctx := requestCtx(rCtx)

	rules, err := b.acls.MatchRules(ctx, user, asset, account)
	if err != nil {
		return nil, UpstreamError{Collaborator: "acl", Err: err}
	}

	now := b.now()
	var rule *ACLRule
	for i := range rules {
		if rules[i].ValidAt(now) {
			rule = &rules[i]
			break
		}
	}

	if rule == nil {
		return &ACLDecision{Action: ACLAccept}, nil
	}

	decision := &ACLDecision{Action: rule.Action, Rule: rule, Reviewers: rule.Reviewers}

	switch rule.Action {
	case ACLAccept:
		return decision, nil
	case ACLReject:
		return nil, ErrACLReject
	case ACLReview:
		if !createTicket {
			return nil, ErrACLReviewRequired
		}

		ticket, err := b.tickets.CreateReviewTicket(rCtx, ReviewTicket{
			Requester:      user,
			Asset:          asset,
			Account:        account,
			Reviewers:      rule.Reviewers,
			OrganizationID: asset.OrganizationID,
		})
		if err != nil {
			return nil, fmt.Errorf("create review ticket: %w", err)
		}

		decision.Ticket = ticket
		return decision, nil
	default:
		return nil, fmt.Errorf("unhandled acl action %v in rule %q", rule.Action, rule.Name)
	}
}

func requestCtx(rCtx RequestContext) context.Context {
	if rCtx.Request != nil {
		return rCtx.Request.Context()
	}
	return context.Background()
}
