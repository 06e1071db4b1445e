// Package redisconn opens the redigo connection a pool uses when its
// redis flag is set, performing the AUTH/SELECT handshake a pool record
// may request before handing the connection back to the core.
package redisconn

import (
	"fmt"

	"github.com/gomodule/redigo/redis"

	"github.com/mini0405/shardproxy/internal/server"
)

// conn adapts a redigo redis.Conn to server.ConnIO, the only shape the
// core's connection selection logic needs.
type conn struct {
	redis.Conn
}

func (c conn) Close() error { return c.Conn.Close() }

// Dialer builds a server.DialFunc bound to one pool record's network
// address, auth password, and db index. network is "tcp" or "unix".
func Dialer(network, address, auth string, db int) server.DialFunc {
	return func() (server.ConnIO, error) {
		c, err := redis.Dial(network, address)
		if err != nil {
			return nil, fmt.Errorf("redisconn: dial %s: %w", address, err)
		}

		if auth != "" {
			if _, err := c.Do("AUTH", auth); err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("redisconn: auth %s: %w", address, err)
			}
		}
		if db != 0 {
			if _, err := c.Do("SELECT", db); err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("redisconn: select db %d on %s: %w", db, address, err)
			}
		}

		return conn{c}, nil
	}
}
