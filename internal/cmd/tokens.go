package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/cli/browser"
	"github.com/spf13/cobra"

	"github.com/infrahq/broker/api"
)

func newTokensCmd(cli *CLI) *cobra.Command {
	var options clientOptions

	cmd := &cobra.Command{
		Use:     "tokens",
		Aliases: []string{"token"},
		Short:   "Manage connection tokens",
	}

	addClientFlags(cmd.PersistentFlags(), &options)

	cmd.AddCommand(
		newTokensCreateCmd(cli, &options),
		newTokensListCmd(cli, &options),
		newTokensRenewCmd(cli, &options),
		newTokensExpireCmd(cli, &options),
		newTokensExchangeCmd(cli, &options),
		newTokensRevealCmd(cli, &options),
		newTokensClientURLCmd(cli, &options),
		newTokensRDPFileCmd(cli, &options),
		newTokensReleaseCmd(cli, &options))
	return cmd
}

type tokenRow struct {
	ID       string `header:"ID"`
	Asset    string `header:"ASSET"`
	Account  string `header:"ACCOUNT"`
	Protocol string `header:"PROTOCOL"`
	Method   string `header:"CONNECT METHOD"`
	Active   bool   `header:"ACTIVE"`
	Expires  string `header:"EXPIRES"`
}

func newTokenRow(token api.ConnectionToken) tokenRow {
	return tokenRow{
		ID:       token.ID.String(),
		Asset:    token.AssetName,
		Account:  token.Account,
		Protocol: token.Protocol,
		Method:   token.ConnectMethod,
		Active:   token.IsActive,
		Expires:  formatTime(token.Expires),
	}
}

func (c *CLI) printToken(token *api.ConnectionToken, format string) error {
	if format == "json" {
		return c.printJSON(token)
	}

	c.Output("Connection token %v for %v@%v", token.ID, token.Account, token.AssetName)
	c.Output("Value:   %v", token.Value)
	c.Output("Expires: %v", formatTime(token.Expires))
	if !token.IsActive && token.FromTicketID != nil {
		c.Output("The token is waiting for review ticket %v", token.FromTicketID)
	}
	return nil
}

func (c *CLI) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type tokensCreateOptions struct {
	api.CreateConnectionTokenRequest
	Format string
}

func newTokensCreateCmd(cli *CLI, client *clientOptions) *cobra.Command {
	var options tokensCreateOptions

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a connection token",
		Example: `# Create a token to connect to the web asset as root with ssh
$ broker tokens create --asset web --account root --protocol ssh --connect-method ssh`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(*client)
			if err != nil {
				return err
			}

			token, err := c.CreateConnectionToken(cmd.Context(), &options.CreateConnectionTokenRequest)
			if err != nil {
				return userFacingError(err)
			}
			return cli.printToken(token, options.Format)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&options.AssetID, "asset", "", "ID of the asset")
	flags.StringVar(&options.Account, "account", "", "Account name, or one of @INPUT, @USER, @ALL")
	flags.StringVar(&options.Protocol, "protocol", "", "Protocol of the session")
	flags.StringVar(&options.ConnectMethod, "connect-method", "", "Client application used to connect")
	flags.StringVar(&options.User, "user", "", "Owner of the token, requires the super role")
	flags.StringVar(&options.InputUsername, "input-username", "", "Username for @INPUT accounts")
	flags.StringSliceVar(&options.Actions, "actions", nil, "Actions to request, defaults to every granted action")
	flags.BoolVar(&options.CreateTicket, "create-ticket", false, "Request a review ticket when an ACL rule requires one")
	addFormatFlag(flags, &options.Format)
	return cmd
}

func newTokensListCmd(cli *CLI, client *clientOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your connection tokens",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(*client)
			if err != nil {
				return err
			}

			tokens, err := c.ListConnectionTokens(cmd.Context())
			if err != nil {
				return userFacingError(err)
			}

			if format == "json" {
				return cli.printJSON(tokens.Items)
			}

			if tokens.Count == 0 {
				cli.Output("No connection tokens found")
				return nil
			}

			rows := make([]tokenRow, 0, len(tokens.Items))
			for _, token := range tokens.Items {
				rows = append(rows, newTokenRow(token))
			}
			cli.Table(rows)
			return nil
		},
	}

	addFormatFlag(cmd.Flags(), &format)
	return cmd
}

func newTokensRenewCmd(cli *CLI, client *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "renew ID",
		Short: "Extend the expiry of a connection token",
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

			resp, err := c.RenewConnectionToken(cmd.Context(), id)
			if err != nil {
				return userFacingError(err)
			}
			cli.Output("%v", resp.Msg)
			return nil
		},
	}
}

func newTokensExpireCmd(cli *CLI, client *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "expire ID",
		Short: "Deactivate a connection token",
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

			if err := c.ExpireConnectionToken(cmd.Context(), id); err != nil {
				return userFacingError(err)
			}
			cli.Output("Expired connection token %v", id)
			return nil
		},
	}
}

func newTokensExchangeCmd(cli *CLI, client *clientOptions) *cobra.Command {
	var format string
	var createTicket bool

	cmd := &cobra.Command{
		Use:   "exchange ID",
		Short: "Create a new connection token with the login of an existing one",
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

			token, err := c.ExchangeConnectionToken(cmd.Context(), &api.ExchangeConnectionTokenRequest{ID: id, CreateTicket: createTicket})
			if err != nil {
				return userFacingError(err)
			}
			return cli.printToken(token, format)
		},
	}

	cmd.Flags().BoolVar(&createTicket, "create-ticket", false, "Request a review ticket when an ACL rule requires one")
	addFormatFlag(cmd.Flags(), &format)
	return cmd
}

func newTokensRevealCmd(cli *CLI, client *clientOptions) *cobra.Command {
	var keepActive bool

	cmd := &cobra.Command{
		Use:   "reveal ID",
		Short: "Print the secret of a connection token as JSON",
		Long: `Print the secret of a connection token as JSON. The token is deactivated
unless --keep-active is set. Requires the super role.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c, err := newAPIClient(*client)
			if err != nil {
				return err
			}

			expireNow := !keepActive
			secret, err := c.RevealSecret(cmd.Context(), &api.RevealSecretRequest{ID: id, ExpireNow: &expireNow})
			if err != nil {
				return userFacingError(err)
			}
			return cli.printJSON(secret)
		},
	}

	cmd.Flags().BoolVar(&keepActive, "keep-active", false, "Do not deactivate the token")
	return cmd
}

// shim for testing
var openURL = browser.OpenURL

func newTokensClientURLCmd(cli *CLI, client *clientOptions) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "client-url ID",
		Short: "Print the URL that launches the client application of a token",
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

			resp, err := c.ClientURL(cmd.Context(), api.LaunchRequest{ID: id})
			if err != nil {
				return userFacingError(err)
			}

			if open {
				return openURL(resp.URL)
			}
			cli.Output("%v", resp.URL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "Open the URL with the client launcher")
	return cmd
}

func newTokensRDPFileCmd(cli *CLI, client *clientOptions) *cobra.Command {
	var output string
	var request api.LaunchRequest

	cmd := &cobra.Command{
		Use:   "rdp-file ID",
		Short: "Download the remote desktop file of a token",
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

			request.ID = id
			content, err := c.RDPFile(cmd.Context(), request)
			if err != nil {
				return userFacingError(err)
			}

			if output == "" || output == "-" {
				_, err := cli.Stdout.Write(content)
				return err
			}

			if err := os.WriteFile(output, content, 0o600); err != nil {
				return err
			}
			cli.Output("Saved %v", output)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "Write the file to this path instead of stdout")
	flags.StringVar(&request.Width, "width", "", "Desktop width in pixels")
	flags.StringVar(&request.Height, "height", "", "Desktop height in pixels")
	flags.BoolVar(&request.FullScreen, "full-screen", false, "Open the session full screen")
	flags.BoolVar(&request.DrivesRedirect, "drives-redirect", false, "Share local drives when the token allows file transfer")
	return cmd
}

func newTokensReleaseCmd(cli *CLI, client *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release-applet-account ACCOUNT_ID",
		Short: "Release an applet host account reserved for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newAPIClient(*client)
			if err != nil {
				return err
			}

			_, err = c.ReleaseAppletAccount(cmd.Context(), args[0])
			switch {
			case api.ErrorStatusCode(err) == http.StatusBadRequest:
				return Error{Cause: fmt.Sprintf("applet account %v is not reserved", args[0])}
			case err != nil:
				return userFacingError(err)
			}
			cli.Output("Released applet account %v", args[0])
			return nil
		},
	}
}
