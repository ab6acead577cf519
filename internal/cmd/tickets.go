package cmd

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"

	"github.com/infrahq/broker/api"
)

func newTicketsCmd(cli *CLI) *cobra.Command {
	var options clientOptions

	cmd := &cobra.Command{
		Use:     "tickets",
		Aliases: []string{"ticket"},
		Short:   "Review login tickets",
	}

	addClientFlags(cmd.PersistentFlags(), &options)

	cmd.AddCommand(
		newTicketsListCmd(cli, &options),
		newTicketsProcessCmd(cli, &options, "approve"),
		newTicketsProcessCmd(cli, &options, "reject"))
	return cmd
}

type ticketRow struct {
	ID        string `header:"ID"`
	Requester string `header:"REQUESTER"`
	Asset     string `header:"ASSET"`
	Account   string `header:"ACCOUNT"`
	State     string `header:"STATE"`
	Reviewers string `header:"REVIEWERS"`
}

func newTicketsListCmd(cli *CLI, client *clientOptions) *cobra.Command {
	var format string
	var state string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List review tickets",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(*client)
			if err != nil {
				return err
			}

			tickets, err := c.ListTickets(cmd.Context(), api.ListTicketsRequest{State: state})
			if err != nil {
				return userFacingError(err)
			}

			if format == "json" {
				return cli.printJSON(tickets.Items)
			}

			if tickets.Count == 0 {
				cli.Output("No tickets found")
				return nil
			}

			rows := make([]ticketRow, 0, len(tickets.Items))
			for _, ticket := range tickets.Items {
				rows = append(rows, ticketRow{
					ID:        ticket.ID.String(),
					Requester: ticket.Requester,
					Asset:     ticket.AssetName,
					Account:   ticket.Account,
					State:     ticket.State,
					Reviewers: strings.Join(ticket.Reviewers, ", "),
				})
			}
			cli.Table(rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "pending", "Only list tickets in this state [pending, approved, rejected]")
	addFormatFlag(cmd.Flags(), &format)
	return cmd
}

type ticketsProcessOptions struct {
	Yes            bool
	NonInteractive bool
}

// newTicketsProcessCmd returns the approve or reject command.
func newTicketsProcessCmd(cli *CLI, client *clientOptions, action string) *cobra.Command {
	var options ticketsProcessOptions

	cmd := &cobra.Command{
		Use:   action + " ID",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a pending review ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c, err := newAPIClient(*client)
			if err != nil {
				return err
			}

			if !options.Yes {
				if options.NonInteractive {
					return Error{Suggestion: fmt.Sprintf("Confirm with --yes to %v the ticket in non-interactive mode.", action)}
				}

				confirmed := false
				prompt := &survey.Confirm{Message: fmt.Sprintf("%v ticket %v?", strings.ToUpper(action[:1])+action[1:], id)}
				if err := survey.AskOne(prompt, &confirmed, cli.surveyIO); err != nil {
					return err
				}
				if !confirmed {
					return terminal.InterruptErr
				}
			}

			var ticket *api.Ticket
			if action == "approve" {
				ticket, err = c.ApproveTicket(cmd.Context(), id)
			} else {
				ticket, err = c.RejectTicket(cmd.Context(), id)
			}
			if err != nil {
				if api.ErrorReason(err) == "ticket_processed" {
					return Error{Cause: fmt.Sprintf("ticket %v has already been processed", id)}
				}
				return userFacingError(err)
			}

			cli.Output("Ticket %v %v, requested by %v for %v@%v", ticket.ID, ticket.State, ticket.Requester, ticket.Account, ticket.AssetName)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&options.Yes, "yes", "y", false, "Skip the confirmation prompt")
	addNonInteractiveFlag(cmd.Flags(), &options.NonInteractive)
	return cmd
}
