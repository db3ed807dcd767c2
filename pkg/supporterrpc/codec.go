// Package supporterrpc is the reference transport between the coordinator
// and the supporters it dispatches to. No .proto-generated stubs exist for
// this wire protocol, so the service is registered and invoked directly
// against google.golang.org/grpc using a JSON codec registered under the
// "json" content-subtype, rather than the default proto codec.
package supporterrpc

import (
	_ "github.com/overlaycast/supporter-monitor/internal/rpcjson"
)
