package cmd

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/infrahq/broker/api"
	"github.com/infrahq/broker/uid"
)

var testTicketID = uid.ID(7654321)

func TestTicketsListCmd(t *testing.T) {
	fake, flags := setupFakeBroker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/api/tickets")
		writeJSON(w, http.StatusOK, api.ListResponse[api.Ticket]{
			Items: []api.Ticket{{
				ID:        testTicketID,
				Requester: "alice",
				AssetID:   "web",
				AssetName: "web.example.com",
				Account:   "root",
				Reviewers: []string{"terminal", "bob"},
				State:     "pending",
			}},
			Count: 1,
		})
	})

	ctx, bufs := PatchCLI(context.Background())
	err := Run(ctx, append([]string{"tickets", "list"}, flags...)...)
	assert.NilError(t, err)
	assert.Equal(t, fake.requests[0].URL.Query().Get("state"), "pending")

	out := bufs.Stdout.String()
	assert.Assert(t, strings.Contains(out, "REVIEWERS"), out)
	assert.Assert(t, strings.Contains(out, "terminal, bob"), out)
	assert.Assert(t, strings.Contains(out, testTicketID.String()), out)
}

func TestTicketsListCmd_Empty(t *testing.T) {
	fake, flags := setupFakeBroker(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.ListResponse[api.Ticket]{Items: []api.Ticket{}})
	})

	ctx, bufs := PatchCLI(context.Background())
	err := Run(ctx, append([]string{"tickets", "list", "--state", "approved"}, flags...)...)
	assert.NilError(t, err)
	assert.Equal(t, fake.requests[0].URL.Query().Get("state"), "approved")
	assert.Equal(t, bufs.Stdout.String(), "No tickets found\n")
}

func TestTicketsApproveCmd(t *testing.T) {
	fake, flags := setupFakeBroker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.Method, http.MethodPatch)
		assert.Equal(t, r.URL.Path, "/api/tickets/"+testTicketID.String()+"/approve")
		writeJSON(w, http.StatusOK, api.Ticket{
			ID:          testTicketID,
			Requester:   "alice",
			AssetName:   "web.example.com",
			Account:     "root",
			State:       "approved",
			ProcessedBy: "terminal",
		})
	})

	ctx, bufs := PatchCLI(context.Background())
	err := Run(ctx, append([]string{"tickets", "approve", testTicketID.String(), "--yes"}, flags...)...)
	assert.NilError(t, err)
	assert.Equal(t, len(fake.requests), 1)

	expected := "Ticket " + testTicketID.String() + " approved, requested by alice for root@web.example.com\n"
	assert.Equal(t, bufs.Stdout.String(), expected)
}

func TestTicketsRejectCmd_NonInteractiveRequiresYes(t *testing.T) {
	fake, flags := setupFakeBroker(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	ctx, _ := PatchCLI(context.Background())
	err := Run(ctx, append([]string{"tickets", "reject", testTicketID.String(), "--non-interactive"}, flags...)...)
	assert.ErrorContains(t, err, "Confirm with --yes to reject the ticket in non-interactive mode.")
	assert.Equal(t, len(fake.requests), 0)
}

func TestTicketsRejectCmd_AlreadyProcessed(t *testing.T) {
	_, flags := setupFakeBroker(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, api.Error{
			Code:    http.StatusConflict,
			Reason:  "ticket_processed",
			Message: "ticket has already been processed",
		})
	})

	ctx, _ := PatchCLI(context.Background())
	err := Run(ctx, append([]string{"tickets", "reject", testTicketID.String(), "-y"}, flags...)...)
	assert.ErrorContains(t, err, "ticket "+testTicketID.String()+" has already been processed")
}

func TestTicketsApproveCmd_Forbidden(t *testing.T) {
	_, flags := setupFakeBroker(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, api.Error{Code: http.StatusForbidden, Message: "forbidden"})
	})

	ctx, _ := PatchCLI(context.Background())
	err := Run(ctx, append([]string{"tickets", "approve", testTicketID.String(), "--yes"}, flags...)...)
	assert.ErrorContains(t, err, "missing permissions to run this command")
}
