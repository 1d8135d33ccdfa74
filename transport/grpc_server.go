package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// grpcServer gRPC 服务器实现
type grpcServer struct {
	server    *grpc.Server
	tlsConfig *tls.Config
	address   string
	listener  net.Listener
	health    *health.Server
	mu        sync.RWMutex
	services  []serviceDesc
}

type serviceDesc struct {
	desc *grpc.ServiceDesc
	impl interface{}
}

// NewGRPCServer 创建 gRPC 服务器
// 自带标准健康检查服务，网关存活状态可被外部探测
func NewGRPCServer(tlsConfig *tls.Config) GRPCServer {
	return &grpcServer{
		tlsConfig: tlsConfig,
		health:    health.NewServer(),
		services:  make([]serviceDesc, 0),
	}
}

// RegisterService 注册 gRPC 服务（启动前调用）
func (s *grpcServer) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.services = append(s.services, serviceDesc{
		desc: desc,
		impl: impl,
	})
}

// Start 启动 gRPC 服务器
func (s *grpcServer) Start(addr string) error {
	s.mu.Lock()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = lis
	s.address = addr

	opts := []grpc.ServerOption{}

	// 添加 TLS 凭证（如果配置）
	if s.tlsConfig != nil {
		creds := credentials.NewTLS(s.tlsConfig)
		opts = append(opts, grpc.Creds(creds))
	}

	s.server = grpc.NewServer(opts...)

	// 健康检查服务先注册，再注册业务服务
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	for _, svc := range s.services {
		s.server.RegisterService(svc.desc, svc.impl)
	}

	s.mu.Unlock()

	// 启动服务器（阻塞）
	if err := s.server.Serve(lis); err != nil {
		return fmt.Errorf("gRPC server failed: %w", err)
	}

	return nil
}

// Stop 停止 gRPC 服务器（优雅关闭）
func (s *grpcServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	// 先下线健康状态，再等待现有 RPC 完成
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.server.GracefulStop()

	return nil
}
