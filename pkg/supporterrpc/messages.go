package supporterrpc

// serviceName is the gRPC service path segment used in Invoke and in the
// hand-written ServiceDesc registered against the server.
const serviceName = "supportermonitor.SupporterService"

const (
	methodPing         = "/" + serviceName + "/Ping"
	methodPushPeerList = "/" + serviceName + "/PushPeerList"
)

// PingRequest probes a supporter for liveness.
type PingRequest struct{}

// PingResponse reports whether the supporter considers itself able to serve
// peers. A transport-level error (dial failure, deadline exceeded) is
// treated as equivalent to Alive == false by the dispatcher.
type PingResponse struct {
	Alive bool `json:"alive"`
}

// PeerEntry is the wire form of monitor.PeerListEntry.
type PeerEntry struct {
	PeerID string `json:"peer_id"`
	IP     string `json:"ip"`
	Port   int    `json:"port"`
}

// PushPeerListRequest carries a supporter's full current roster. It is
// always a complete replacement, never a delta, matching spec §6.
type PushPeerListRequest struct {
	SupporterID string      `json:"supporter_id"`
	Peers       []PeerEntry `json:"peers"`
}

type PushPeerListResponse struct{}
