package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mini0405/shardproxy/internal/registry"
)

// Collector implements prometheus.Collector by pulling a fresh
// poolcore.Pool.Stats snapshot of every registry pool on each scrape
// rather than pushing
// updates through a separate recording path. The pools and servers are
// already the authoritative source of this data, so there is nothing to
// keep in sync.
type Collector struct {
	reg *registry.Registry

	liveServers  *prometheus.Desc
	clientConns  *prometheus.Desc
	continuumLen *prometheus.Desc
	failureCount *prometheus.Desc
	activeReqs   *prometheus.Desc
}

// NewCollector builds a Collector sampling reg on each scrape.
func NewCollector(reg *registry.Registry) *Collector {
	return &Collector{
		reg: reg,
		liveServers: prometheus.NewDesc(
			"proxy_pool_live_servers", "Number of live servers in the pool.",
			[]string{"pool"}, nil),
		clientConns: prometheus.NewDesc(
			"proxy_pool_client_connections", "Client connections currently tracked by the pool.",
			[]string{"pool"}, nil),
		continuumLen: prometheus.NewDesc(
			"proxy_pool_continuum_points", "Number of points in the pool's current continuum.",
			[]string{"pool"}, nil),
		failureCount: prometheus.NewDesc(
			"proxy_server_failure_count", "Consecutive failures recorded against a server.",
			[]string{"pool", "server"}, nil),
		activeReqs: prometheus.NewDesc(
			"proxy_server_active_requests", "In-flight requests against a server.",
			[]string{"pool", "server"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.liveServers
	ch <- c.clientConns
	ch <- c.continuumLen
	ch <- c.failureCount
	ch <- c.activeReqs
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	now := time.Now().UnixMicro()
	for _, p := range c.reg.Pools() {
		st := p.Stats(now)

		ch <- prometheus.MustNewConstMetric(c.liveServers, prometheus.GaugeValue, float64(st.NLiveServers), st.Name)
		ch <- prometheus.MustNewConstMetric(c.clientConns, prometheus.GaugeValue, float64(st.NClientConns), st.Name)
		ch <- prometheus.MustNewConstMetric(c.continuumLen, prometheus.GaugeValue, float64(st.ContinuumLen), st.Name)

		for _, s := range st.Servers {
			ch <- prometheus.MustNewConstMetric(c.failureCount, prometheus.GaugeValue, float64(s.FailureCount), st.Name, s.Name)
			ch <- prometheus.MustNewConstMetric(c.activeReqs, prometheus.GaugeValue, float64(s.ActiveRequests), st.Name, s.Name)
		}
	}
}
