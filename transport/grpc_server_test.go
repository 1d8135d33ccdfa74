package transport

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestNewGRPCServer(t *testing.T) {
	server := NewGRPCServer(nil)
	if server == nil {
		t.Fatal("NewGRPCServer returned nil")
	}
}

func TestGRPCServer_RegisterService(t *testing.T) {
	server := NewGRPCServer(nil).(*grpcServer)

	// 注册一个空服务（仅测试接口）
	server.RegisterService(nil, nil)

	if len(server.services) != 1 {
		t.Errorf("Expected 1 service, got %d", len(server.services))
	}
}

func TestGRPCServer_HealthCheck(t *testing.T) {
	server := NewGRPCServer(nil)

	go func() {
		if err := server.Start("127.0.0.1:18082"); err != nil {
			t.Logf("Server stopped: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)
	defer server.Stop()

	conn, err := grpc.Dial("127.0.0.1:18082",
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING, got %s", resp.Status)
	}
}

func TestGRPCServer_StopWithoutStart(t *testing.T) {
	server := NewGRPCServer(nil)

	// 停止未启动的服务器（应该不报错）
	if err := server.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
