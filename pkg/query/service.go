package query

import (
	"context"

	"github.com/penumbra-zone/cnidarium-core/pkg/store"
	"google.golang.org/grpc"
)

// LatestSnapshotter is implemented by *store.Engine; kept as an interface
// so tests can serve a fixed Snapshot without opening a real Engine.
type LatestSnapshotter interface {
	Latest() *store.Snapshot
}

// Server implements the Query RPC surface against whatever Snapshot
// Snapshots.Latest() currently returns.
type Server struct {
	Snapshots LatestSnapshotter
}

func NewServer(snapshots LatestSnapshotter) *Server {
	return &Server{Snapshots: snapshots}
}

func (s *Server) KeyValue(ctx context.Context, req *KeyValueRequest) (*KeyValueResponse, error) {
	snap := s.Snapshots.Latest()
	if req.WithProof {
		value, proof, err := snap.GetWithProof(req.Key)
		if err != nil {
			return nil, err
		}
		return &KeyValueResponse{Value: value, Version: snap.Version(), Proof: proof}, nil
	}
	value, err := snap.Get(req.Key)
	if err != nil {
		return nil, err
	}
	return &KeyValueResponse{Value: value, Version: snap.Version()}, nil
}

func (s *Server) PrefixValue(ctx context.Context, req *PrefixValueRequest) (*PrefixValueResponse, error) {
	snap := s.Snapshots.Latest()
	resp := &PrefixValueResponse{Version: snap.Version()}
	err := snap.PrefixIterate(req.Prefix, func(key string, value []byte) bool {
		resp.Entries = append(resp.Entries, KV{Key: key, Value: append([]byte{}, value...)})
		return true
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// serviceName is the fully-qualified gRPC service name this package
// exposes, matching the naming convention a "cnidarium.v1.QueryService"
// .proto package would generate.
const serviceName = "cnidarium.v1.QueryService"

// ServiceDesc is the gRPC service description, hand-wired the way
// protoc-gen-go-grpc would generate it, since no .proto toolchain runs as
// part of building this repo (see doc.go).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*queryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "KeyValue", Handler: keyValueHandler},
		{MethodName: "PrefixValue", Handler: prefixValueHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "query/service.proto",
}

// queryServer is the interface grpc.ServiceDesc.HandlerType documents;
// *Server satisfies it.
type queryServer interface {
	KeyValue(context.Context, *KeyValueRequest) (*KeyValueResponse, error)
	PrefixValue(context.Context, *PrefixValueRequest) (*PrefixValueResponse, error)
}

func keyValueHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(KeyValueRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(queryServer).KeyValue(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/KeyValue"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(queryServer).KeyValue(ctx, req.(*KeyValueRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func prefixValueHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(PrefixValueRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(queryServer).PrefixValue(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/PrefixValue"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(queryServer).PrefixValue(ctx, req.(*PrefixValueRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// RegisterAdditional is the seam a concrete node binary uses to register
// the component-specific query services spec §6 lists (auction/dex/IBC/
// tendermint-proxy) alongside this one; their business logic is out of
// scope here (spec.md §1).
func RegisterAdditional(grpcServer *grpc.Server, desc *grpc.ServiceDesc, impl interface{}) {
	grpcServer.RegisterService(desc, impl)
}
