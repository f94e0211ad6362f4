package query

import (
	"fmt"
	"net"

	"github.com/penumbra-zone/cnidarium-core/pkg/log"
	"google.golang.org/grpc"
)

// Listen starts a plain (non-TLS) gRPC server exposing the Query RPC
// surface on addr, grounded on the teacher's pkg/api/server.go
// grpc.NewServer/RegisterService/Serve wiring, minus the mTLS layer: the
// ACME/TLS front-end is an explicit collaborator spec.md places out of
// scope for this repo.
func Listen(addr string, snapshots LatestSnapshotter) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&ServiceDesc, NewServer(snapshots))

	go func() {
		log.WithComponent("query").Info().Str("addr", addr).Msg("query RPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.WithComponent("query").Error().Err(err).Msg("query RPC server stopped")
		}
	}()

	return grpcServer, nil
}
