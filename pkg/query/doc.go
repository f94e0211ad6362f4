/*
Package query implements the read-only Query RPC surface of spec §6:
KeyValue (with an optional ICS-23 proof) and PrefixValue, both served
against the storage engine's latest committed Snapshot, over gRPC.

No .proto toolchain runs as part of building this repo, so the request and
response types here are plain Go structs rather than protoc-generated
messages; the gRPC service description (pkg/query/service.go) is wired by
hand the same way protoc-gen-go-grpc would generate it, and the wire codec
is JSON (registered via google.golang.org/grpc/encoding) rather than
protobuf binary. The transport, service registration, and RPC semantics are
still the real grpc-go library end to end — only the payload encoding
differs from a protoc-generated service, and only because protoc cannot be
invoked here.

This package intentionally does not implement the component-specific query
services spec §6 lists (auction/dex/IBC/tendermint-proxy): those carry
business logic explicitly out of scope (spec.md §1). RegisterAdditional
is the seam a concrete node binary would use to add them.
*/
package query
