package supporterrpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/overlaycast/supporter-monitor/internal/monitor"
	"github.com/overlaycast/supporter-monitor/internal/rpcjson"
)

// DispatcherConfig bounds the reference Dispatcher's behavior against
// supporter connections.
type DispatcherConfig struct {
	// ProbeTimeout bounds a single Ping call in QueryAllSupporters.
	ProbeTimeout time.Duration

	// PushTimeout bounds a single PushPeerList call in DispatchPeerLists.
	PushTimeout time.Duration

	// MaxConcurrency bounds how many supporters are contacted at once
	// within a single QueryAllSupporters or DispatchPeerLists call.
	MaxConcurrency int

	// DialOptions are appended to every grpc.NewClient call. Tests typically
	// supply grpc.WithTransportCredentials(insecure.NewCredentials()) plus a
	// bufconn dialer.
	DialOptions []grpc.DialOption

	// Metrics, if non-nil, receives DispatchTotal increments for every ping
	// and peer-list push the dispatcher performs. Optional: a nil value
	// just skips the observation, matching monitor.Coordinator's own
	// nil-tolerant *Metrics handling.
	Metrics *monitor.Metrics
}

func (c *DispatcherConfig) withDefaults() *DispatcherConfig {
	out := *c
	if out.ProbeTimeout <= 0 {
		out.ProbeTimeout = 2 * time.Second
	}
	if out.PushTimeout <= 0 {
		out.PushTimeout = 2 * time.Second
	}
	if out.MaxConcurrency <= 0 {
		out.MaxConcurrency = 8
	}
	return &out
}

// GRPCDispatcher implements monitor.Dispatcher over the JSON-codec gRPC
// service defined in this package. It holds one lazily-dialed *grpc.ClientConn
// per supporter, established in RegisterProxy and torn down in
// UnregisterProxy.
type GRPCDispatcher struct {
	log *slog.Logger
	cfg *DispatcherConfig

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

func NewGRPCDispatcher(log *slog.Logger, cfg DispatcherConfig) *GRPCDispatcher {
	return &GRPCDispatcher{
		log:   log,
		cfg:   cfg.withDefaults(),
		conns: make(map[string]*grpc.ClientConn),
	}
}

var _ monitor.Dispatcher = (*GRPCDispatcher)(nil)

func (d *GRPCDispatcher) RegisterProxy(_ context.Context, s *monitor.SupporterRecord) {
	// The supporter's RPC endpoint is at port+1 by wire contract, not the
	// port recorded on the supporter record itself (spec §6).
	target := fmt.Sprintf("%s:%d", s.Host(), s.Port()+1)

	dialOpts := d.cfg.DialOptions
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcjson.Name)))

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		if d.log != nil {
			d.log.Error("supporterrpc: failed to establish proxy", "supporter", s.ID(), "target", target, "error", err)
		}
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[s.ID()] = conn
}

func (d *GRPCDispatcher) UnregisterProxy(_ context.Context, s *monitor.SupporterRecord) {
	d.mu.Lock()
	conn, ok := d.conns[s.ID()]
	delete(d.conns, s.ID())
	d.mu.Unlock()

	if ok {
		_ = conn.Close()
	}
}

func (d *GRPCDispatcher) connFor(id string) (*grpc.ClientConn, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn, ok := d.conns[id]
	return conn, ok
}

// recordDispatch observes a ping or peer-list-push outcome against
// DispatchTotal{result}, per spec §6. A nil Metrics is a no-op.
func (d *GRPCDispatcher) recordDispatch(result string) {
	if d.cfg.Metrics == nil {
		return
	}
	d.cfg.Metrics.DispatchTotal.WithLabelValues(result).Inc()
}

// QueryAllSupporters pings every supporter concurrently, bounded by
// cfg.MaxConcurrency, reporting anything unreachable or explicitly not
// alive as dead via markDead. Grounded on the bounded fan-out pattern used
// for probing many targets at once (channel-backed semaphore + WaitGroup).
func (d *GRPCDispatcher) QueryAllSupporters(ctx context.Context, supporters []*monitor.SupporterRecord, markDead func(*monitor.SupporterRecord)) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.cfg.MaxConcurrency)

	for _, s := range supporters {
		s := s
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			conn, ok := d.connFor(s.ID())
			if !ok {
				d.recordDispatch("error")
				markDead(s)
				return
			}

			pingCtx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
			defer cancel()

			var resp PingResponse
			if err := conn.Invoke(pingCtx, methodPing, &PingRequest{}, &resp); err != nil {
				if d.log != nil {
					d.log.Warn("supporterrpc: ping failed, marking supporter dead", "supporter", s.ID(), "error", err)
				}
				d.recordDispatch("error")
				markDead(s)
				return
			}
			if !resp.Alive {
				d.recordDispatch("error")
				markDead(s)
				return
			}
			d.recordDispatch("ok")
		}()
	}
	wg.Wait()
}

// DispatchPeerLists pushes the current roster of every dirty supporter.
// Failures are logged and swallowed, never returned, per spec §7.
func (d *GRPCDispatcher) DispatchPeerLists(ctx context.Context, supporters []*monitor.SupporterRecord) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, d.cfg.MaxConcurrency)

	for _, s := range supporters {
		if !s.ConsumeDirty() {
			continue
		}
		s := s
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			conn, ok := d.connFor(s.ID())
			if !ok {
				if d.log != nil {
					d.log.Warn("supporterrpc: no proxy for supporter, dropping push", "supporter", s.ID())
				}
				d.recordDispatch("error")
				return
			}

			peers := s.Peers()
			req := &PushPeerListRequest{
				SupporterID: s.ID(),
				Peers:       make([]PeerEntry, 0, len(peers)),
			}
			for _, p := range peers {
				req.Peers = append(req.Peers, PeerEntry{PeerID: p.ID(), IP: p.IP(), Port: p.Port()})
			}

			pushCtx, cancel := context.WithTimeout(ctx, d.cfg.PushTimeout)
			defer cancel()

			var resp PushPeerListResponse
			if err := conn.Invoke(pushCtx, methodPushPeerList, req, &resp); err != nil {
				if d.log != nil {
					d.log.Error("supporterrpc: push peer list failed", "supporter", s.ID(), "error", err)
				}
				d.recordDispatch("error")
				return
			}
			d.recordDispatch("ok")
		}()
	}
	wg.Wait()
}
