// Package config decodes the YAML pool-record document into the form
// the core needs: a validated []Record, and from there a freshly built
// []*poolcore.Pool. Field names mirror the wire document one-for-one.
package config

import (
	"fmt"
	"net"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mini0405/shardproxy/internal/continuum"
	"github.com/mini0405/shardproxy/internal/hashkit"
	"github.com/mini0405/shardproxy/internal/poolcore"
	"github.com/mini0405/shardproxy/internal/server"
)

// ServerRecord is one `host:port:weight name?` backend entry.
type ServerRecord struct {
	Host   string `mapstructure:"host" yaml:"host"`
	Port   int    `mapstructure:"port" yaml:"port"`
	Weight int    `mapstructure:"weight" yaml:"weight"`
	Name   string `mapstructure:"name" yaml:"name,omitempty"`
}

// Record is one pool's configuration, decoded field-for-field from the
// YAML document.
type Record struct {
	Name               string         `mapstructure:"name" yaml:"name"`
	ListenAddr         string         `mapstructure:"listen" yaml:"listen"`
	SockPerm           string         `mapstructure:"socket_perm" yaml:"socket_perm,omitempty"`
	Distribution       string         `mapstructure:"distribution" yaml:"distribution,omitempty"`
	HashType           string         `mapstructure:"hash" yaml:"hash,omitempty"`
	HashTag            string         `mapstructure:"hash_tag" yaml:"hash_tag,omitempty"`
	TimeoutMillis      int            `mapstructure:"timeout" yaml:"timeout,omitempty"`
	Backlog            int            `mapstructure:"backlog" yaml:"backlog,omitempty"`
	MaxClientConns     int            `mapstructure:"max_client_conns" yaml:"max_client_conns,omitempty"`
	MaxServerConns     int            `mapstructure:"server_connections" yaml:"server_connections,omitempty"`
	ServerRetryMicros  int64          `mapstructure:"server_retry_timeout_us" yaml:"server_retry_timeout_us,omitempty"`
	ServerFailureLimit int            `mapstructure:"server_failure_limit" yaml:"server_failure_limit,omitempty"`
	AutoEjectHosts     bool           `mapstructure:"auto_eject_hosts" yaml:"auto_eject_hosts,omitempty"`
	Preconnect         bool           `mapstructure:"preconnect" yaml:"preconnect,omitempty"`
	Redis              bool           `mapstructure:"redis" yaml:"redis,omitempty"`
	RedisAuth          string         `mapstructure:"redis_auth" yaml:"redis_auth,omitempty"`
	RedisDB            int            `mapstructure:"redis_db" yaml:"redis_db,omitempty"`
	Servers            []ServerRecord `mapstructure:"servers" yaml:"servers"`
}

// document is the top-level shape of the YAML file: a list of pools
// under a single "pools" key.
type document struct {
	Pools []Record `mapstructure:"pools" yaml:"pools"`
}

// Load reads and decodes the pool-record document at path.
func Load(path string) ([]Record, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", poolcore.ErrConfigInvalid, err)
	}
	return doc.Pools, nil
}

// Validate checks a record against the invariants spec.md §7 lists as
// fatal ConfigInvalid conditions: unknown hash or distribution, and
// weight 0 on a non-ketama distribution. Under ketama an unset weight
// is accepted and BuildPool defaults it to 1.
func (r Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: pool record missing name", poolcore.ErrConfigInvalid)
	}
	if r.ListenAddr == "" {
		return fmt.Errorf("%w: pool %q missing listen address", poolcore.ErrConfigInvalid, r.Name)
	}
	dist, err := continuum.ParseDistribution(r.distributionOrDefault())
	if err != nil {
		return fmt.Errorf("%w: pool %q: %v", poolcore.ErrConfigInvalid, r.Name, err)
	}
	if _, err := hashkit.Parse(r.hashOrDefault()); err != nil {
		return fmt.Errorf("%w: pool %q: %v", poolcore.ErrConfigInvalid, r.Name, err)
	}
	if len(r.HashTag) != 0 && len(r.HashTag) != 2 {
		return fmt.Errorf("%w: pool %q hash_tag must be exactly two bytes", poolcore.ErrConfigInvalid, r.Name)
	}
	for _, sr := range r.Servers {
		if sr.Host == "" || sr.Port == 0 {
			return fmt.Errorf("%w: pool %q has a server record missing host/port", poolcore.ErrConfigInvalid, r.Name)
		}
		if sr.Weight == 0 && dist != continuum.Ketama {
			return fmt.Errorf("%w: pool %q server %s:%d has weight 0 under a non-ketama distribution", poolcore.ErrConfigInvalid, r.Name, sr.Host, sr.Port)
		}
	}
	return nil
}

func (r Record) distributionOrDefault() string {
	if r.Distribution == "" {
		return "ketama"
	}
	return r.Distribution
}

func (r Record) hashOrDefault() string {
	if r.HashType == "" {
		return "fnv1a_32"
	}
	return r.HashType
}

// Resolver turns a server record's host:port into a resolved address.
// Implemented by internal/resolve's Cache.Resolve.
type Resolver func(hostport string) (net.Addr, error)

// BuildPool validates r and constructs the poolcore.Pool and its
// server.Server array it describes. index is the pool's stable slot in
// the forthcoming registry.
func BuildPool(index int, r Record, resolve Resolver) (*poolcore.Pool, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	dist, _ := continuum.ParseDistribution(r.distributionOrDefault())
	algo, _ := hashkit.Parse(r.hashOrDefault())

	servers := make([]*server.Server, len(r.Servers))
	for i, sr := range r.Servers {
		addr, err := resolve(fmt.Sprintf("%s:%d", sr.Host, sr.Port))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", poolcore.ErrResolveFailed, err)
		}
		name := sr.Name
		if name == "" {
			name = fmt.Sprintf("%s:%d:%d", sr.Host, sr.Port, sr.Weight)
		}
		servers[i] = server.New(i, index, name, addr, weightOrDefault(sr.Weight))
	}

	hasTag := len(r.HashTag) == 2
	var tagLeft, tagRight byte
	if hasTag {
		tagLeft, tagRight = r.HashTag[0], r.HashTag[1]
	}

	p := poolcore.New(index, r.Name, servers, poolcore.HashSpec{
		Algorithm:    algo,
		Distribution: dist,
		HasTag:       hasTag,
		TagLeft:      tagLeft,
		TagRight:     tagRight,
	})
	p.ListenAddr = r.ListenAddr
	p.SockPerm = r.SockPerm
	p.TimeoutMillis = r.TimeoutMillis
	p.Backlog = r.Backlog
	p.MaxClientConns = r.MaxClientConns
	p.MaxServerConns = maxOrDefault(r.MaxServerConns)
	p.ServerRetryMicros = r.ServerRetryMicros
	p.ServerFailureLimit = r.ServerFailureLimit
	p.AutoEjectHosts = r.AutoEjectHosts
	p.Preconnect = r.Preconnect
	p.Redis = r.Redis
	p.RedisAuth = r.RedisAuth
	p.RedisDB = r.RedisDB
	return p, nil
}

func weightOrDefault(w int) int {
	if w == 0 {
		return 1
	}
	return w
}

func maxOrDefault(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// BuildPools validates and constructs every record in records, in order.
func BuildPools(records []Record, resolve Resolver) ([]*poolcore.Pool, error) {
	pools := make([]*poolcore.Pool, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, r := range records {
		if seen[r.Name] {
			return nil, fmt.Errorf("%w: duplicate pool name %q", poolcore.ErrConfigInvalid, r.Name)
		}
		seen[r.Name] = true

		p, err := BuildPool(i, r, resolve)
		if err != nil {
			return nil, err
		}
		pools = append(pools, p)
	}
	return pools, nil
}

// Dump renders records back to YAML text, used by `proxyd serve
// --dump-config` for operators to inspect the configuration as Load
// decoded it. viper has no "marshal to string"
// path of its own, so this goes straight through yaml.v3.
func Dump(records []Record) (string, error) {
	out, err := yaml.Marshal(document{Pools: records})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
