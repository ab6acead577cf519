package cmd

import (
	"errors"
	"net/http"

	"github.com/infrahq/broker/api"
)

// Error is a user facing error. It should be used for communication, rather
// than a stacktrace.
type Error struct {
	// Short redacted version of OriginalError, required if OriginalError is set
	Cause string

	// OriginalError is the error that bubbled up, used for logging/debugging
	// Only set this if you need it to be printed as part of the user facing 'Message'.
	OriginalError error

	// Human readable message to resolve the error. These should be full sentences.
	Suggestion string
}

// Format is one of the three:
// a) Error: Cause
//
//	OriginalError
//
//	Suggestion
//
// b) Error: Cause
//
//	Suggestion
//
// c) Suggestion
func (e Error) Error() string {
	if e.OriginalError == nil && len(e.Cause) == 0 {
		return e.Suggestion
	}

	output := "Error: " + e.Cause
	if e.OriginalError != nil {
		output += "\n" + e.OriginalError.Error()
	}

	if len(e.Suggestion) > 0 {
		output += "\n\n" + e.Suggestion
	}

	return output
}

func (e Error) Unwrap() error {
	return e.OriginalError
}

var errMissingAccessKey = Error{
	Cause:      "missing access key",
	Suggestion: "Set --access-key or the BROKER_ACCESS_KEY environment variable.",
}

// userFacingError replaces API errors that have a well known fix with an
// Error that explains it.
func userFacingError(err error) error {
	var apiErr api.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.Code {
	case http.StatusUnauthorized:
		return Error{
			Cause:         "the broker rejected the access key",
			OriginalError: err,
			Suggestion:    "Check the access key is configured in the server config file.",
		}
	case http.StatusForbidden:
		return Error{
			Cause:         "missing permissions to run this command",
			OriginalError: err,
			Suggestion:    "Use an access key of a user with the super role.",
		}
	case http.StatusTooManyRequests:
		return Error{
			Cause:         "too many connection tokens requested",
			OriginalError: err,
			Suggestion:    "Wait a minute and try again.",
		}
	}
	return err
}
