package rpc

import (
	"fmt"
	"net"

	"github.com/nexum-io/nexum/common/logger"
	"google.golang.org/grpc"
)

// Server wraps the gRPC listener with graceful shutdown
type Server struct {
	grpc *grpc.Server
	port int
	log  *logger.Logger
}

// NewServer creates the engine's gRPC server
func NewServer(port int, impl NexumServer, log *logger.Logger) *Server {
	srv := grpc.NewServer(grpc.ForceServerCodec(Codec{}))
	srv.RegisterService(&ServiceDesc, impl)

	return &Server{
		grpc: srv,
		port: port,
		log:  log,
	}
}

// Start begins serving; it returns when the listener fails or the server
// is stopped
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen on :%d: %w", s.port, err)
	}

	s.log.Info("grpc server starting", "addr", lis.Addr().String(), "service", serviceName)
	return s.grpc.Serve(lis)
}

// Stop drains in-flight RPCs and stops the server
func (s *Server) Stop() {
	s.log.Info("grpc server stopping")
	s.grpc.GracefulStop()
}
