package cmd

import (
	"context"
	"fmt"

	"github.com/mcuadros/go-defaults"
	"github.com/spf13/cobra"

	"github.com/infrahq/broker/internal/logging"
	"github.com/infrahq/broker/internal/server"
)

func newServerCmd() *cobra.Command {
	defaultOptions := defaultServerOptions()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the broker server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options := defaultServerOptions()
			if err := parseOptions(cmd, &options, "BROKER_SERVER"); err != nil {
				return err
			}

			dbFile, err := canonicalPath(options.DBFile)
			if err != nil {
				return err
			}
			options.DBFile = dbFile

			policyFile, err := canonicalPath(options.PolicyFile)
			if err != nil {
				return err
			}
			options.PolicyFile = policyFile

			logging.Debugf("starting server with policy %v", options.PolicyFile)

			srv, err := server.New(options)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return runServer(cmd.Context(), srv)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config-file", "f", "", "Server configuration file")
	flags.String("policy-file", "", "Policy file with assets, permissions, ACL rules and endpoints")
	flags.String("db-file", defaultOptions.DBFile, "Path to SQLite 3 database")
	flags.String("db-connection-string", "", "PostgreSQL connection string (secret), replaces --db-file")
	flags.Bool("enable-log-sampling", false, "Sample the HTTP access logs of successful GET requests")
	flags.Int("rate-limit", defaultOptions.RateLimit, "Connection tokens a user may create per minute, requires redis")

	flags.String("addr-http", defaultOptions.Addr.HTTP, "Address of the HTTP API listener")
	nestedFlag(flags, "addr-http", "addr.http")
	flags.String("addr-metrics", defaultOptions.Addr.Metrics, "Address of the metrics listener")
	nestedFlag(flags, "addr-metrics", "addr.metrics")
	flags.Duration("request-timeout", defaultOptions.API.RequestTimeout, "Maximum duration of an API request")
	nestedFlag(flags, "request-timeout", "api.requestTimeout")

	flags.Duration("token-expiry", defaultOptions.Tokens.Expiry, "Lifetime of a connection token")
	nestedFlag(flags, "token-expiry", "tokens.expiry")
	flags.StringSlice("no-expire-protocols", defaultOptions.Tokens.NoExpireProtocols, "Protocols whose tokens stay active when the secret is revealed")
	nestedFlag(flags, "no-expire-protocols", "tokens.noExpireProtocols")
	flags.Duration("applet-slot-ttl", 0, "Maximum time an applet account is reserved, defaults to the token expiry")
	nestedFlag(flags, "applet-slot-ttl", "tokens.appletSlotTTL")

	flags.String("redis-host", "", "Redis host, enables shared applet accounts and rate limits")
	nestedFlag(flags, "redis-host", "redis.host")
	flags.Int("redis-port", 6379, "Redis port")
	nestedFlag(flags, "redis-port", "redis.port")
	flags.String("redis-username", "", "Redis username")
	nestedFlag(flags, "redis-username", "redis.username")
	flags.String("redis-password", "", "Redis password (secret)")
	nestedFlag(flags, "redis-password", "redis.password")

	flags.Int("rdp-color-depth", 32, "Color depth of RDP sessions")
	nestedFlag(flags, "rdp-color-depth", "rdp.colorDepth")
	flags.Bool("rdp-disable-audio", false, "Disable audio in RDP sessions")
	nestedFlag(flags, "rdp-disable-audio", "rdp.disableAudio")

	return cmd
}

func defaultServerOptions() server.Options {
	options := server.Options{}
	defaults.SetDefaults(&options)
	options.Redis.Port = 6379
	options.Tokens.NoExpireProtocols = []string{"k8s"}
	return options
}

// shim for testing
var runServer = func(ctx context.Context, srv *server.Server) error {
	return srv.Run(ctx)
}
