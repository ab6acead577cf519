package access

import (
	"fmt"
)

// Error is a failure of the token pipeline that is reported to the client with
// a stable machine readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrProtocolInvalid         = &Error{Code: "protocol_invalid", Message: "protocol is not supported by the asset"}
	ErrAccountNotFound         = &Error{Code: "perm_account_invalid", Message: "account not found"}
	ErrPermissionExpired       = &Error{Code: "perm_expired", Message: "permission expired"}
	ErrACLReject               = &Error{Code: "acl_reject", Message: "login to the asset is rejected by an ACL rule"}
	ErrACLReviewRequired       = &Error{Code: "acl_review", Message: "login to the asset requires review, retry with createTicket to request one"}
	ErrTokenExpired            = &Error{Code: "token_expired", Message: "connection token is expired"}
	ErrTokenInactive           = &Error{Code: "token_inactive", Message: "connection token is not active"}
	ErrTokenNotFoundOrNotOwned = &Error{Code: "token_not_found", Message: "connection token not found or expired"}
	ErrAppletSlotUnavailable   = &Error{Code: "applet_slot_unavailable", Message: "no applet account is available"}
)

// UpstreamError is returned when a collaborator (permission, ACL, endpoint
// lookups) fails. It is never retried by the broker.
type UpstreamError struct {
	Collaborator string
	Err          error
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("%v lookup failed: %v", e.Collaborator, e.Err)
}

func (e UpstreamError) Unwrap() error {
	return e.Err
}
