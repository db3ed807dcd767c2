// Package ingress is the gRPC front door peers (via the overlay/tracker)
// speak to reach the coordinator. It is pure adaptation: every RPC forwards
// directly to a monitor.Coordinator method and performs no business logic
// of its own.
package ingress

const serviceName = "supportermonitor.IngressService"

const (
	methodRegisterPeer   = "/" + serviceName + "/RegisterPeer"
	methodUnregisterPeer = "/" + serviceName + "/UnregisterPeer"
	methodPeerMessage    = "/" + serviceName + "/PeerMessage"
)

type RegisterPeerRequest struct {
	PeerID string `json:"peer_id"`
	IP     string `json:"ip"`
	Port   int    `json:"port"`
	Role   int    `json:"role"`
}

type RegisterPeerResponse struct {
	Accepted bool `json:"accepted"`
}

type UnregisterPeerRequest struct {
	PeerID string `json:"peer_id"`
}

type UnregisterPeerResponse struct{}

type PeerMessageRequest struct {
	PeerID string `json:"peer_id"`
	Kind   string `json:"kind"`
}

type PeerMessageResponse struct{}
