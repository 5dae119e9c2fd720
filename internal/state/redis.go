package state

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKey = "relaymcp:health"

// redisStore implements Store backed by a shared Redis instance, so a
// fleet of replicas behind one load balancer agrees on a single reported
// status rather than each reporting its own local view.
type redisStore struct {
	client redis.UniversalClient
	ctx    context.Context
}

// NewRedisStore connects to addr (a bare host:port or a redis:// URL,
// including cluster and sentinel forms) and seeds the key if absent.
func NewRedisStore(addr string) (Store, error) {
	opts, err := parseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	rs := &redisStore{client: client, ctx: ctx}
	b, _ := json.Marshal(Health{Status: "starting"})
	_ = client.SetNX(ctx, redisKey, b, 0).Err()
	return rs, nil
}

func (r *redisStore) Load() Health {
	b, err := r.client.Get(r.ctx, redisKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Health{Status: "starting"}
		}
		return Health{Status: "unknown"}
	}
	var h Health
	if err := json.Unmarshal(b, &h); err != nil {
		return Health{Status: "unknown"}
	}
	return h
}

func (r *redisStore) Store(h Health) {
	b, err := json.Marshal(h)
	if err != nil {
		return
	}
	_ = r.client.Set(r.ctx, redisKey, b, 0).Err()
}

// parseRedisURL parses addr into UniversalOptions supporting single,
// cluster, and sentinel Redis deployments. A bare host:port with no scheme
// is treated as a single-node address.
func parseRedisURL(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	opts := &redis.UniversalOptions{}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}
	opts.Addrs = strings.Split(u.Host, ",")

	q := u.Query()
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	switch u.Scheme {
	case "redis", "rediss":
		if u.Path != "" && u.Path != "/" {
			db, err := strconv.Atoi(strings.TrimPrefix(u.Path, "/"))
			if err != nil {
				return nil, fmt.Errorf("state: invalid redis db: %w", err)
			}
			opts.DB = db
		}
		if u.Scheme == "rediss" {
			opts.TLSConfig = tlsCfg
		}
	case "redis-sentinel", "rediss-sentinel":
		opts.MasterName = strings.TrimPrefix(u.Path, "/")
		if v := q.Get("sentinel_username"); v != "" {
			opts.SentinelUsername = v
		}
		if v := q.Get("sentinel_password"); v != "" {
			opts.SentinelPassword = v
		}
		if u.Scheme == "rediss-sentinel" {
			opts.TLSConfig = tlsCfg
		}
	default:
		return nil, fmt.Errorf("state: invalid redis URL scheme %q", u.Scheme)
	}

	return opts, nil
}
