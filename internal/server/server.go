package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/access"
	"github.com/infrahq/broker/internal/applet"
	"github.com/infrahq/broker/internal/connect"
	"github.com/infrahq/broker/internal/logging"
	"github.com/infrahq/broker/internal/policy"
	"github.com/infrahq/broker/internal/repeat"
	"github.com/infrahq/broker/internal/server/data"
	"github.com/infrahq/broker/internal/server/redis"
	"github.com/infrahq/broker/metrics"
)

type Options struct {
	// EnableLogSampling indicates whether or not to sample HTTP access logs.
	// When true, non-error HTTP GET logs will sampled down to 1 every 7 seconds
	// grouped by the request path.
	EnableLogSampling bool

	// DBFile is the path of the SQLite database. It is ignored when
	// DBConnectionString is set.
	DBFile             string `default:"$HOME/.broker/sqlite3.db"`
	DBConnectionString string

	// Redis contains configuration options to the cache server. When no host
	// is set applet slots are held in memory and rate limits are disabled.
	Redis redis.Options

	// RateLimit is the number of tokens a user may create or exchange per
	// minute.
	RateLimit int `default:"60"`

	Config

	Addr   ListenerOptions
	API    APIOptions
	Tokens TokenOptions
	RDP    connect.Options
}

type ListenerOptions struct {
	HTTP    string `default:":8080"`
	Metrics string `default:":9090"`
}

type APIOptions struct {
	RequestTimeout time.Duration `default:"1m"`
}

type TokenOptions struct {
	Expiry            time.Duration `default:"5m"`
	NoExpireProtocols []string
	AppletSlotTTL     time.Duration

	// PurgeInterval is how often tokens that expired more than
	// PurgeRetention ago are deleted. Zero disables the purge.
	PurgeInterval  time.Duration `default:"1h"`
	PurgeRetention time.Duration `default:"24h"`
}

type Server struct {
	options         Options
	db              *gorm.DB
	redis           *redis.Redis
	policy          *policy.Policy
	broker          *access.Broker
	users           *userStore
	slots           access.SlotRegistry
	Addrs           Addrs
	routines        []routine
	metricsRegistry *prometheus.Registry
}

type Addrs struct {
	HTTP    net.Addr
	Metrics net.Addr
}

// New creates a Server, and initializes it. The returned Server is ready to run.
func New(options Options) (*Server, error) {
	server := &Server{options: options}

	if err := server.loadConfig(options.Config); err != nil {
		return nil, fmt.Errorf("configs: %w", err)
	}

	pol, err := policy.Load(options.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	server.policy = pol

	driver, err := newDBDriver(options)
	if err != nil {
		return nil, fmt.Errorf("db driver: %w", err)
	}
	db, err := data.NewDB(driver)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	server.db = db

	r, err := redis.NewRedis(options.Redis)
	if err != nil {
		return nil, err
	}
	server.redis = r

	if err := server.setupBroker(); err != nil {
		return nil, err
	}

	server.metricsRegistry = setupMetrics(server.db, time.Now)

	if err := server.listen(); err != nil {
		return nil, fmt.Errorf("listening: %w", err)
	}

	return server, nil
}

func newDBDriver(options Options) (gorm.Dialector, error) {
	if options.DBConnectionString != "" {
		return data.NewPostgresDriver(options.DBConnectionString)
	}
	return data.NewSQLiteDriver(options.DBFile)
}

// setupBroker wires the policy, the slot registry, and the launch resolver
// into the broker.
func (s *Server) setupBroker() error {
	if s.redis.Enabled() {
		slots, err := redis.NewSlotRegistry(s.redis)
		if err != nil {
			return fmt.Errorf("applet slots: %w", err)
		}
		s.slots = slots
	} else {
		s.slots = applet.NewMemorySlotRegistry()
	}

	registry, err := connect.NewRegistry(append(connect.NativeMethods, s.policy.ConnectMethods()...)...)
	if err != nil {
		return fmt.Errorf("connect methods: %w", err)
	}

	s.broker = access.NewBroker(access.Options{
		TokenExpiry:       s.options.Tokens.Expiry,
		NoExpireProtocols: s.options.Tokens.NoExpireProtocols,
		AppletSlotTTL:     s.options.Tokens.AppletSlotTTL,
	}, access.Collaborators{
		Assets:      s.policy,
		Permissions: s.policy,
		ACLs:        s.policy,
		AppletHosts: s.policy,
		Slots:       s.slots,
		Launcher:    connect.NewResolver(s.options.RDP, registry, s.policy, s.policy),
	})
	return nil
}

// DB returns an instance of a database connection pool that is used by the server.
// It is primarily used by tests to create fixture data.
func (s *Server) DB() *gorm.DB {
	return s.db
}

func (s *Server) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	for i := range s.routines {
		group.Go(s.routines[i].run)
	}

	if interval := s.options.Tokens.PurgeInterval; interval > 0 {
		repeat.Start(ctx, "purge expired connection tokens", interval, s.purgeExpiredTokens)
	}

	logging.Infof("starting broker (%s) - http:%s metrics:%s",
		internal.FullVersion(), s.Addrs.HTTP, s.Addrs.Metrics)

	<-ctx.Done()
	for i := range s.routines {
		s.routines[i].stop()
	}

	err := group.Wait()

	if closer, ok := s.slots.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logging.L.Warn().Err(err).Msg("failed to close applet slot registry")
		}
	}
	if err := s.redis.Close(); err != nil {
		logging.L.Warn().Err(err).Msg("failed to close redis connection")
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logging.L.Warn().Err(err).Msg("failed to close database connection")
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) purgeExpiredTokens(ctx context.Context) error {
	before := time.Now().Add(-s.options.Tokens.PurgeRetention)
	count, err := data.DeleteExpiredConnectionTokens(s.db.WithContext(ctx), before)
	if err != nil {
		return err
	}
	if count > 0 {
		logging.Debugf("purged %d expired connection tokens", count)
	}
	return nil
}

func (s *Server) listen() error {
	gin.SetMode(gin.ReleaseMode)
	router := s.GenerateRoutes(s.metricsRegistry)

	metricsServer := &http.Server{
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		Addr:              s.options.Addr.Metrics,
		Handler:           metrics.NewHandler(s.metricsRegistry),
	}

	var err error
	s.Addrs.Metrics, err = s.setupServer(metricsServer)
	if err != nil {
		return err
	}

	plaintextServer := &http.Server{
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		Addr:              s.options.Addr.HTTP,
		Handler:           router,
	}
	s.Addrs.HTTP, err = s.setupServer(plaintextServer)
	if err != nil {
		return err
	}
	return nil
}

func (s *Server) setupServer(server *http.Server) (net.Addr, error) {
	if server.Addr == "" {
		server.Addr = "127.0.0.1:"
	}
	l, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, err
	}
	logging.Infof("listening on %s", l.Addr().String())

	s.routines = append(s.routines, routine{
		run: func() error {
			err := server.Serve(l)
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		stop: func() {
			_ = server.Close()
		},
	})
	return l.Addr(), nil
}

type routine struct {
	run  func() error
	stop func()
}
