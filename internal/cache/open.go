package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/kaosmaps/kaos-worker/internal/cache/redisstore"
	"github.com/kaosmaps/kaos-worker/internal/cache/reststore"
)

type Options struct {
	Mode      string // "redis" or "rest"
	RedisAddr string
	RESTURL   string
	RESTToken string
	OpTimeout time.Duration
}

// Open selects and initializes a backend: direct redis when the mode asks
// for it and an address is configured, otherwise the REST backend. The
// returned store is wrapped with the per-op timeout.
func Open(ctx context.Context, o Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch {
	case o.Mode == "redis" && o.RedisAddr != "":
		s, err = redisstore.New(ctx, o.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("open redis backend: %w", err)
		}
	case o.RESTURL != "":
		s, err = reststore.New(o.RESTURL, o.RESTToken)
		if err != nil {
			return nil, fmt.Errorf("open rest backend: %w", err)
		}
	default:
		return nil, ErrUnconfigured
	}
	return WithTimeout(s, o.OpTimeout), nil
}
