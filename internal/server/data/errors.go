package data

import "fmt"

var ErrTicketProcessed = fmt.Errorf("ticket has already been processed")
