package query

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec is a grpc-go wire codec that marshals request/response structs
// as JSON. It is registered as the "json" content-subtype so this
// package's hand-wired ServiceDesc doesn't need protoc-generated
// proto.Message implementations to satisfy grpc's default proto codec.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
