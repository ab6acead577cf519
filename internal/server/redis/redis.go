// Package redis holds the state that is shared by every broker process: applet
// account slots and request rate limits.
package redis

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
}

type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	Options  string
}

// NewRedis returns a client for options. When no host is set the client is
// disabled, and rate limits are not enforced.
func NewRedis(options Options) (*Redis, error) {
	var client *redis.Client

	if len(options.Host) > 0 {
		redisOptions, err := redis.ParseURL(fmt.Sprintf("redis://%s:%d?%s", options.Host, options.Port, options.Options))
		if err != nil {
			return nil, fmt.Errorf("invalid redis options: %w", err)
		}

		redisOptions.Username = options.Username
		redisOptions.Password = options.Password

		client = redis.NewClient(redisOptions)
	}

	return &Redis{
		client: client,
	}, nil
}

// Enabled returns true when a redis host is configured.
func (r *Redis) Enabled() bool {
	return r != nil && r.client != nil
}

func (r *Redis) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}
