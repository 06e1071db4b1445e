package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mini0405/shardproxy/internal/poolcore"
	"github.com/mini0405/shardproxy/internal/registry"
	"github.com/mini0405/shardproxy/internal/server"
)

// Mount registers the read-only diagnostics surface on mux: /debug/pools
// (a Fold-rendered snapshot), /metrics (Prometheus), and /debug/events
// (a Server-Sent Events stream over bus). None of these mutate core
// state.
func Mount(mux *http.ServeMux, reg *registry.Registry, bus *EventBus) {
	mux.HandleFunc("/debug/pools", poolsHandler(reg))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/events", eventsHandler(bus))
}

// poolNode is the tree shape /debug/pools renders, built by folding the
// registry rather than walking pool.Servers directly, so the rendered
// tree always matches the traversal order stats and shutdown use.
type poolNode struct {
	Name        string       `json:"name"`
	ListenAddr  string       `json:"listen_addr"`
	ReloadState string       `json:"reload_state"`
	Servers     []serverNode `json:"servers"`
}

type serverNode struct {
	Name       string `json:"name"`
	Live       bool   `json:"live"`
	ServerConn int    `json:"server_conn_count"`
}

func poolsHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UnixMicro()

		nodesByPool := map[string]*poolNode{}
		var order []string

		reg.Fold(func(kind registry.ElementKind, pool *poolcore.Pool, element any, acc any) any {
			switch kind {
			case registry.KindPool:
				node := &poolNode{Name: pool.Name, ListenAddr: pool.ListenAddr, ReloadState: pool.ReloadState.String()}
				nodesByPool[pool.Name] = node
				order = append(order, pool.Name)
			case registry.KindServer:
				s := element.(*server.Server)
				nodesByPool[pool.Name].Servers = append(nodesByPool[pool.Name].Servers, serverNode{
					Name:       s.Name,
					Live:       s.Live(now),
					ServerConn: s.NConns(),
				})
			}
			return acc
		}, nil)

		snapshot := make([]*poolNode, 0, len(order))
		for _, name := range order {
			snapshot = append(snapshot, nodesByPool[name])
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func eventsHandler(bus *EventBus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		for _, evt := range bus.Recent(50) {
			payload, _ := json.Marshal(evt)
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		flusher.Flush()

		sub := bus.Subscribe()
		defer bus.Unsubscribe(sub)

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}
