package models

import (
	"fmt"
	"strings"
)

// SelectorKind identifies how an account selector is resolved against the
// accounts a user is permitted to use.
type SelectorKind int

const (
	// SelectorLiteral names a concrete account.
	SelectorLiteral SelectorKind = iota
	// SelectorAll picks any permitted concrete account.
	SelectorAll
	// SelectorInput leaves the username and secret to the client.
	SelectorInput
	// SelectorUser binds the username to the requesting user.
	SelectorUser
)

const (
	AliasAll   = "@ALL"
	AliasInput = "@INPUT"
	AliasUser  = "@USER"
)

func (k SelectorKind) String() string {
	switch k {
	case SelectorLiteral:
		return "literal"
	case SelectorAll:
		return "all"
	case SelectorInput:
		return "input"
	case SelectorUser:
		return "user"
	default:
		return fmt.Sprintf("SelectorKind(%d)", int(k))
	}
}

type AccountSelector struct {
	Kind SelectorKind
	// Name is the account name for a literal selector, or the alias text.
	Name string
}

// ParseAccountSelector converts the account field of a request into a
// selector. Anything that is not a known alias is a literal account name.
func ParseAccountSelector(s string) (AccountSelector, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return AccountSelector{}, fmt.Errorf("account selector is empty")
	case AliasAll:
		return AccountSelector{Kind: SelectorAll, Name: s}, nil
	case AliasInput:
		return AccountSelector{Kind: SelectorInput, Name: s}, nil
	case AliasUser:
		return AccountSelector{Kind: SelectorUser, Name: s}, nil
	}

	return AccountSelector{Kind: SelectorLiteral, Name: s}, nil
}

func (s AccountSelector) String() string {
	return s.Name
}

// IsVirtual is true for selectors that never map to a stored account.
func (s AccountSelector) IsVirtual() bool {
	return s.Kind == SelectorInput || s.Kind == SelectorUser
}
