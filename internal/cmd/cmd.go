package cmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/infrahq/broker/api"
	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/logging"
	"github.com/infrahq/broker/uid"
)

// Run the main CLI command with the given args. The args should not contain
// the name of the binary (ex: os.Args[1:]).
func Run(ctx context.Context, args ...string) error {
	cli := newCLI(ctx)
	cmd := NewRootCmd(cli)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

type rootOptions struct {
	LogLevel string
	LogFile  string
}

func NewRootCmd(cli *CLI) *cobra.Command {
	cobra.EnableCommandSorting = false

	var options rootOptions
	rootCmd := &cobra.Command{
		Use:               "broker",
		Short:             "Issue and manage connection tokens",
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := flagDefaultsFromEnv("BROKER", cmd.Flags()); err != nil {
				return err
			}
			if err := logging.SetLevel(options.LogLevel); err != nil {
				return err
			}
			if options.LogFile != "" {
				path, err := canonicalPath(options.LogFile)
				if err != nil {
					return err
				}
				logging.UseFileLogger(path)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(
		newServerCmd(),
		newTokensCmd(cli),
		newTicketsCmd(cli),
		newVersionCmd(cli))

	rootCmd.PersistentFlags().StringVar(&options.LogLevel, "log-level", "info", "Show logs when running the command [error, warn, info, debug]")
	rootCmd.PersistentFlags().StringVar(&options.LogFile, "log-file", "", "Write logs to a rotating file instead of stderr")
	return rootCmd
}

// flagDefaultsFromEnv sets every flag that was not set on the command line
// from the environment variable named by prefix and the flag name in upper
// snake case.
func flagDefaultsFromEnv(prefix string, flags *pflag.FlagSet) error {
	var errs []string
	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Changed {
			return
		}
		value, ok := os.LookupEnv(prefix + "_" + strcase.ToScreamingSnake(flag.Name))
		if !ok {
			return
		}
		if err := flag.Value.Set(value); err != nil {
			errs = append(errs, fmt.Sprintf("%v: %v", flag.Name, err))
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %v", strings.Join(errs, ", "))
	}
	return nil
}

type clientOptions struct {
	URL           string
	AccessKey     string
	SkipTLSVerify bool
}

func addClientFlags(flags *pflag.FlagSet, options *clientOptions) {
	flags.StringVar(&options.URL, "url", "http://localhost:8080", "URL of the broker server")
	flags.StringVar(&options.AccessKey, "access-key", "", "Access key (secret)")
	flags.BoolVar(&options.SkipTLSVerify, "skip-tls-verify", false, "Skip verifying the server certificate")
}

// shim for testing
var newAPIClient = func(options clientOptions) (*api.Client, error) {
	if options.AccessKey == "" {
		return nil, errMissingAccessKey
	}

	return &api.Client{
		Name:      "cli",
		Version:   internal.FullVersion(),
		URL:       strings.TrimSuffix(options.URL, "/"),
		AccessKey: options.AccessKey,
		HTTP: http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					//nolint:gosec // We may purposely set insecureskipverify via a flag
					InsecureSkipVerify: options.SkipTLSVerify,
				},
			},
		},
	}, nil
}

func addNonInteractiveFlag(flags *pflag.FlagSet, bind *bool) {
	isNonInteractiveMode := os.Stdin == nil || !term.IsTerminal(int(os.Stdin.Fd()))
	flags.BoolVar(bind, "non-interactive", isNonInteractiveMode, "Disable all prompts for input")
}

func addFormatFlag(flags *pflag.FlagSet, bind *string) {
	flags.StringVar(bind, "format", "", "Output format [json]")
}

func parseID(arg string) (uid.ID, error) {
	id, err := uid.Parse([]byte(arg))
	if err != nil {
		return 0, Error{Cause: fmt.Sprintf("invalid id %q", arg), OriginalError: err}
	}
	return id, nil
}

func formatTime(t api.Time) string {
	if t.Time().IsZero() {
		return "-"
	}
	return t.Time().Local().Format(time.RFC3339)
}
