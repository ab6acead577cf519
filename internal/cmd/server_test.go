package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/cobra"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"

	"github.com/infrahq/broker/internal/server"
	"github.com/infrahq/broker/internal/server/redis"
)

func TestParseOptions_WithServerOptions(t *testing.T) {
	type testCase struct {
		name        string
		setup       func(t *testing.T, cmd *cobra.Command)
		expectedErr string
		expected    func(t *testing.T) server.Options
	}

	run := func(t *testing.T, tc testCase) {
		cmd := newServerCmd()

		if tc.setup != nil {
			tc.setup(t, cmd)
		}

		options := defaultServerOptions()
		err := parseOptions(cmd, &options, "BROKER_SERVER")
		if tc.expectedErr != "" {
			assert.ErrorContains(t, err, tc.expectedErr)
			return
		}

		assert.NilError(t, err)
		expected := tc.expected(t)
		assert.DeepEqual(t, expected, options, cmpopts.EquateEmpty())
	}

	var testCases = []testCase{
		{
			name:     "defaults",
			expected: serverOptionsWithDefaults,
		},
		{
			name: "config file",
			setup: func(t *testing.T, cmd *cobra.Command) {
				content := `
                    policyFile: /etc/broker/policy.yaml
                    rateLimit: 10
                    addr:
                      http: "127.0.0.1:1455"
                    tokens:
                      expiry: 10m
                      noExpireProtocols: [k8s, ssh]
                    redis:
                      host: redis.local
                    users:
                      - name: terminal
                        accessKey: terminal-access-key-0123
                        role: super`

				dir := fs.NewDir(t, t.Name(),
					fs.WithFile("cfg.yaml", content))
				err := cmd.Flags().Set("config-file", dir.Join("cfg.yaml"))
				assert.NilError(t, err)
			},
			expected: func(t *testing.T) server.Options {
				expected := serverOptionsWithDefaults(t)
				expected.PolicyFile = "/etc/broker/policy.yaml"
				expected.RateLimit = 10
				expected.Addr.HTTP = "127.0.0.1:1455"
				expected.Tokens.Expiry = 10 * time.Minute
				expected.Tokens.NoExpireProtocols = []string{"k8s", "ssh"}
				expected.Redis.Host = "redis.local"
				expected.Users = []server.User{
					{Name: "terminal", AccessKey: "terminal-access-key-0123", Role: "super"},
				}
				return expected
			},
		},
		{
			name: "config filename specified as env var",
			setup: func(t *testing.T, cmd *cobra.Command) {
				content := `
                    addr:
                      metrics: "127.0.0.1:1456"`

				dir := fs.NewDir(t, t.Name(),
					fs.WithFile("cfg.yaml", content))

				t.Setenv("BROKER_SERVER_CONFIG_FILE", dir.Join("cfg.yaml"))
			},
			expected: func(t *testing.T) server.Options {
				expected := serverOptionsWithDefaults(t)
				expected.Addr.Metrics = "127.0.0.1:1456"
				return expected
			},
		},
		{
			name: "env vars",
			setup: func(t *testing.T, cmd *cobra.Command) {
				t.Setenv("BROKER_SERVER_ADDR_HTTP", "127.0.0.1:1455")
				t.Setenv("BROKER_SERVER_DB_CONNECTION_STRING", "host=db.local dbname=broker")
				t.Setenv("BROKER_SERVER_TOKEN_EXPIRY", "2m")
				t.Setenv("BROKER_SERVER_NO_EXPIRE_PROTOCOLS", "k8s,rdp")
				t.Setenv("BROKER_SERVER_RATE_LIMIT", "5")
				t.Setenv("BROKER_SERVER_ENABLE_LOG_SAMPLING", "true")
			},
			expected: func(t *testing.T) server.Options {
				expected := serverOptionsWithDefaults(t)
				expected.Addr.HTTP = "127.0.0.1:1455"
				expected.DBConnectionString = "host=db.local dbname=broker"
				expected.Tokens.Expiry = 2 * time.Minute
				expected.Tokens.NoExpireProtocols = []string{"k8s", "rdp"}
				expected.RateLimit = 5
				expected.EnableLogSampling = true
				return expected
			},
		},
		{
			name: "flags override config file and env vars",
			setup: func(t *testing.T, cmd *cobra.Command) {
				content := `
                    addr:
                      http: "127.0.0.1:1455"
                    rdp:
                      colorDepth: 16`

				dir := fs.NewDir(t, t.Name(),
					fs.WithFile("cfg.yaml", content))
				assert.NilError(t, cmd.Flags().Set("config-file", dir.Join("cfg.yaml")))

				t.Setenv("BROKER_SERVER_ADDR_HTTP", "127.0.0.1:1457")
				assert.NilError(t, cmd.Flags().Set("addr-http", "127.0.0.1:1458"))
				assert.NilError(t, cmd.Flags().Set("applet-slot-ttl", "30s"))
				assert.NilError(t, cmd.Flags().Set("rdp-disable-audio", "true"))
			},
			expected: func(t *testing.T) server.Options {
				expected := serverOptionsWithDefaults(t)
				expected.Addr.HTTP = "127.0.0.1:1458"
				expected.Tokens.AppletSlotTTL = 30 * time.Second
				expected.RDP.ColorDepth = 16
				expected.RDP.DisableAudio = true
				return expected
			},
		},
		{
			name: "missing config file",
			setup: func(t *testing.T, cmd *cobra.Command) {
				assert.NilError(t, cmd.Flags().Set("config-file", "/does/not/exist.yaml"))
			},
			expectedErr: "read config file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			run(t, tc)
		})
	}
}

// serverOptionsWithDefaults returns all the default values.
func serverOptionsWithDefaults(_ *testing.T) server.Options {
	return server.Options{
		DBFile:    "$HOME/.broker/sqlite3.db",
		RateLimit: 60,
		Redis:     redis.Options{Port: 6379},
		Addr: server.ListenerOptions{
			HTTP:    ":8080",
			Metrics: ":9090",
		},
		API: server.APIOptions{RequestTimeout: time.Minute},
		Tokens: server.TokenOptions{
			Expiry:            5 * time.Minute,
			NoExpireProtocols: []string{"k8s"},
			PurgeInterval:     time.Hour,
			PurgeRetention:    24 * time.Hour,
		},
	}
}

func TestServerCmd(t *testing.T) {
	var srv *server.Server
	patchRunServer(t, func(ctx context.Context, s *server.Server) error {
		srv = s
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		return s.Run(ctx)
	})

	dir := fs.NewDir(t, t.Name(),
		fs.WithFile("policy.yaml", "assets: []\n"),
		fs.WithFile("cfg.yaml", `
addr:
  http: "127.0.0.1:0"
  metrics: "127.0.0.1:0"
users:
  - name: terminal
    accessKey: terminal-access-key-0123
    role: super
`))

	ctx, _ := PatchCLI(context.Background())
	err := Run(ctx, "server",
		"--config-file", dir.Join("cfg.yaml"),
		"--policy-file", dir.Join("policy.yaml"),
		"--db-file", dir.Join("sqlite3.db"))
	assert.NilError(t, err)
	assert.Assert(t, srv != nil)
	assert.Assert(t, srv.Addrs.HTTP != nil)
	assert.Assert(t, srv.Addrs.Metrics != nil)
}

func TestServerCmd_MissingPolicyFile(t *testing.T) {
	patchRunServer(t, func(context.Context, *server.Server) error {
		t.Fatal("server should not run")
		return nil
	})

	ctx, _ := PatchCLI(context.Background())
	err := Run(ctx, "server", "--db-file", t.TempDir()+"/sqlite3.db")
	assert.ErrorContains(t, err, "PolicyFile")
}

func patchRunServer(t *testing.T, fn func(context.Context, *server.Server) error) {
	orig := runServer
	runServer = fn
	t.Cleanup(func() {
		runServer = orig
	})
}
