package engine

import (
	"testing"

	"github.com/houzhh15/zt-core/firewall"
	"github.com/houzhh15/zt-core/logging"
	"github.com/houzhh15/zt-core/policy"
	"github.com/houzhh15/zt-core/response"
	"github.com/houzhh15/zt-core/session"
	"github.com/houzhh15/zt-core/trust"
)

// strongContext 构造一个综合分足够放行的上下文
func strongContext() *trust.Context {
	return &trust.Context{
		Device: trust.DeviceAssertion{
			DeviceID:    "dev-1",
			SignedByMDM: true,
			Antivirus:   trust.AntivirusUpToDate,
		},
		User: trust.UserAssertion{
			UserID:       "alice",
			AuthMethod:   trust.AuthMFA,
			MFASatisfied: true,
		},
	}
}

func newTestGateway(t *testing.T) (*Gateway, *firewall.RuleStore, *session.Monitor) {
	t.Helper()

	store, err := firewall.NewRuleStore(nil)
	if err != nil {
		t.Fatalf("NewRuleStore failed: %v", err)
	}
	monitor := session.NewMonitor(nil, nil, logging.Nop())

	engine := policy.NewEngine(nil)
	if err := policy.RegisterBaselineRules(engine, nil); err != nil {
		t.Fatalf("RegisterBaselineRules failed: %v", err)
	}

	gw, err := NewGateway(&GatewayConfig{
		Verifier:   trust.NewVerifier(nil),
		Policies:   engine,
		Filter:     firewall.NewPacketFilter(store, logging.Nop()),
		Dispatcher: response.NewDispatcher(store, nil, logging.Nop()),
		Monitor:    monitor,
		Logger:     logging.Nop(),
	})
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}
	return gw, store, monitor
}

func TestProcessPacket_MaliciousBlockedAndEnforced(t *testing.T) {
	gw, store, _ := newTestGateway(t)

	result, err := gw.ProcessPacket(&PacketRequest{
		SessionID: "sess-1",
		Context:   strongContext(),
		Packet: &firewall.Packet{
			SrcIP: "192.168.1.50", DstIP: "8.8.8.8", Protocol: "TCP", Port: 443,
			AIPred: "malicious", AIConfidence: 0.93,
		},
		Bytes: 1500,
	})
	if err != nil {
		t.Fatalf("ProcessPacket failed: %v", err)
	}

	if result.Decision.Action != firewall.DecisionDeny {
		t.Errorf("Expected deny, got %s", result.Decision.Action)
	}
	if result.Decision.Reason != "AI detected malicious" {
		t.Errorf("Unexpected reason: %s", result.Decision.Reason)
	}

	// 执法：源地址被自动封禁
	if !store.HasRule("auto_block_192.168.1.50") {
		t.Error("Expected auto block rule after deny")
	}

	// 拒绝的流量不进入会话监控
	if result.Session != nil {
		t.Error("Expected no session update on deny")
	}
}

func TestProcessPacket_AllowedFeedsSession(t *testing.T) {
	gw, store, monitor := newTestGateway(t)

	if err := store.AddRule(&firewall.PacketRule{
		ID: "allow-dns", SrcIP: "*", DstIP: "8.8.8.8",
		Protocol: "UDP", Port: "53", Action: firewall.RuleAllow,
	}); err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	result, err := gw.ProcessPacket(&PacketRequest{
		SessionID: "sess-1",
		Context:   strongContext(),
		Packet: &firewall.Packet{
			SrcIP: "10.0.0.5", DstIP: "8.8.8.8", Protocol: "UDP", Port: 53,
			AIPred: "benign", AIConfidence: 0.99,
		},
		Bytes: 512,
	})
	if err != nil {
		t.Fatalf("ProcessPacket failed: %v", err)
	}

	if result.Decision.Action != firewall.DecisionAllow {
		t.Fatalf("Expected allow, got %s", result.Decision.Action)
	}
	if result.Trust == nil || !result.Trust.Allow {
		t.Error("Expected trust verdict to allow")
	}
	if result.Decision.Packet.TrustScore != result.Trust.Score {
		t.Error("Expected trust score attached to packet")
	}

	if result.Session == nil {
		t.Fatal("Expected session snapshot on allow")
	}
	if result.Session.CumulativeBytes != 512 || result.Session.EventCount != 1 {
		t.Errorf("Expected session fed with event, got %+v", result.Session)
	}

	snap := monitor.CheckSession("sess-1")
	if snap.Status != session.StatusActive {
		t.Errorf("Expected active session, got %s", snap.Status)
	}
}

func TestProcessPacket_DefaultDenyWithoutRules(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	result, err := gw.ProcessPacket(&PacketRequest{
		Context: strongContext(),
		Packet: &firewall.Packet{
			SrcIP: "10.0.0.5", DstIP: "8.8.8.8", Protocol: "TCP", Port: 80,
		},
	})
	if err != nil {
		t.Fatalf("ProcessPacket failed: %v", err)
	}
	if result.Decision.Action != firewall.DecisionDeny {
		t.Errorf("Expected default deny, got %s", result.Decision.Action)
	}
}

func TestProcessPacket_NilInputs(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	if _, err := gw.ProcessPacket(nil); err == nil {
		t.Error("Expected error for nil request")
	}
	if _, err := gw.ProcessPacket(&PacketRequest{}); err == nil {
		t.Error("Expected error for nil packet")
	}
}

func TestEvaluateAccess_HighTrustAllowed(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	result, err := gw.EvaluateAccess(strongContext(), &policy.Resource{ResourceID: "db-1"})
	if err != nil {
		t.Fatalf("EvaluateAccess failed: %v", err)
	}
	if result.Action != policy.ActionAllow {
		t.Errorf("Expected allow for high trust, got %s (rule %s)", result.Action, result.Rule)
	}
}

func TestEvaluateAccess_LowTrustDenied(t *testing.T) {
	gw, _, _ := newTestGateway(t)

	weak := &trust.Context{
		Device: trust.DeviceAssertion{DeviceID: "dev-2"},
		User:   trust.UserAssertion{UserID: "mallory", AuthMethod: trust.AuthPassword},
	}

	result, err := gw.EvaluateAccess(weak, &policy.Resource{ResourceID: "db-1"})
	if err != nil {
		t.Fatalf("EvaluateAccess failed: %v", err)
	}
	if result.Action != policy.ActionDeny {
		t.Errorf("Expected deny for low trust, got %s (rule %s)", result.Action, result.Rule)
	}
}

func TestNewGateway_RequiresCoreComponents(t *testing.T) {
	if _, err := NewGateway(nil); err == nil {
		t.Error("Expected error for nil config")
	}
	if _, err := NewGateway(&GatewayConfig{Verifier: trust.NewVerifier(nil)}); err == nil {
		t.Error("Expected error without packet filter")
	}
}
