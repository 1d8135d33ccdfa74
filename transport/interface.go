package transport

import (
	"net/http"

	"google.golang.org/grpc"
)

// HTTPServer HTTP/REST API 服务器（管理面默认）
type HTTPServer interface {
	// Start 启动 HTTP 服务器
	Start(addr string, handler http.Handler) error
	// Stop 停止服务器
	Stop() error
	// RegisterMiddleware 注册中间件
	RegisterMiddleware(mw func(http.Handler) http.Handler)
}

// GRPCServer gRPC 服务器（管理面可选）
type GRPCServer interface {
	// Start 启动 gRPC 服务器
	Start(addr string) error
	// Stop 停止服务器
	Stop() error
	// RegisterService 注册 gRPC 服务
	RegisterService(desc *grpc.ServiceDesc, impl interface{})
}
