// Package rpcjson provides the JSON grpc/encoding.Codec shared by every
// in-process gRPC service (pkg/supporterrpc, internal/ingress): no
// .proto-generated stubs exist for either wire protocol, so both register
// and invoke services directly against google.golang.org/grpc using plain
// Go structs marshaled with encoding/json instead of proto.Message.
package rpcjson

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype both services register their codec under and
// request via grpc.CallContentSubtype.
const Name = "json"

func init() {
	encoding.RegisterCodec(codec{})
}

type codec struct{}

func (codec) Name() string { return Name }

func (codec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpcjson: marshal: %w", err)
	}
	return b, nil
}

func (codec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpcjson: unmarshal: %w", err)
	}
	return nil
}
