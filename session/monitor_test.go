package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/houzhh15/zt-core/logging"
	"github.com/houzhh15/zt-core/trust"
)

const mib = 1024 * 1024

func newTestMonitor() *Monitor {
	return NewMonitor(nil, nil, logging.Nop())
}

func TestCreateSession(t *testing.T) {
	m := newTestMonitor()

	snap := m.CreateSession("s1", &trust.Context{TrustScore: 0.7})
	if snap.Status != StatusActive {
		t.Errorf("Expected active, got %s", snap.Status)
	}
	if snap.CumulativeBytes != 0 || snap.EventCount != 0 {
		t.Error("Expected zeroed counters")
	}
	if snap.Context == nil || snap.Context.TrustScore != 0.7 {
		t.Error("Expected context snapshot")
	}
	if snap.CreatedAt.IsZero() {
		t.Error("Expected creation time")
	}
}

func TestUpdateSession_Counters(t *testing.T) {
	m := newTestMonitor()
	m.CreateSession("s1", nil)

	for i := 0; i < 5; i++ {
		m.UpdateSession("s1", &Event{
			SrcIP:     "10.0.0.1",
			DstIP:     "8.8.8.8",
			Bytes:     100,
			DstPort:   443,
			EventType: "flow",
		})
	}

	snap := m.CheckSession("s1")
	if snap.EventCount != 5 {
		t.Errorf("Expected 5 events, got %d", snap.EventCount)
	}
	if snap.CumulativeBytes != 500 {
		t.Errorf("Expected 500 bytes, got %d", snap.CumulativeBytes)
	}
	if snap.Status != StatusActive {
		t.Errorf("Expected active, got %s", snap.Status)
	}
}

func TestUpdateSession_ImplicitCreate(t *testing.T) {
	m := newTestMonitor()

	// 未知会话自动创建，不报错
	snap := m.UpdateSession("ghost", &Event{DstIP: "1.1.1.1", Bytes: 10})
	if snap.Status != StatusActive {
		t.Errorf("Expected active, got %s", snap.Status)
	}
	if snap.EventCount != 1 {
		t.Errorf("Expected 1 event, got %d", snap.EventCount)
	}
	if snap.Context != nil {
		t.Error("Expected empty context for implicit session")
	}
}

func TestHighDataTransferAnomaly(t *testing.T) {
	m := newTestMonitor()
	m.CreateSession("s1", nil)

	// 101 × 1 MiB > 100 MiB
	var snap *Snapshot
	for i := 0; i < 101; i++ {
		snap = m.UpdateSession("s1", &Event{DstIP: "8.8.8.8", Bytes: mib})
	}

	if snap.Status != StatusSuspicious {
		t.Errorf("Expected suspicious, got %s", snap.Status)
	}
	if len(snap.Alerts) == 0 {
		t.Fatal("Expected at least one alert")
	}
	if snap.Alerts[0].Reason != AlertHighDataTransfer {
		t.Errorf("Expected %s alert, got %s", AlertHighDataTransfer, snap.Alerts[0].Reason)
	}
	if snap.CumulativeBytes <= 100*mib {
		t.Errorf("Expected cumulative bytes above threshold, got %d", snap.CumulativeBytes)
	}
}

func TestManyUniqueDestinationsAnomaly(t *testing.T) {
	m := newTestMonitor()
	m.CreateSession("s1", nil)

	// 最近 50 条窗口事件中 21 个不同目的地址
	var snap *Snapshot
	for i := 0; i < 21; i++ {
		snap = m.UpdateSession("s1", &Event{
			DstIP: fmt.Sprintf("10.1.0.%d", i),
			Bytes: 1,
		})
	}

	if snap.Status != StatusSuspicious {
		t.Errorf("Expected suspicious, got %s", snap.Status)
	}
	found := false
	for _, a := range snap.Alerts {
		if a.Reason == AlertManyUniqueDestinations {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected %s alert, got %v", AlertManyUniqueDestinations, snap.Alerts)
	}
}

func TestUniqueDestinations_OnlyRecentWindowCounts(t *testing.T) {
	m := NewMonitor(&MonitorConfig{
		UniqueDstWindow: 50,
		UniqueDstLimit:  20,
	}, nil, logging.Nop())
	m.CreateSession("s1", nil)

	// 15 个不同地址后改为向同一地址发送 50 条，将多样性冲出统计窗口
	for i := 0; i < 15; i++ {
		m.UpdateSession("s1", &Event{DstIP: fmt.Sprintf("10.2.0.%d", i), Bytes: 1})
	}
	var snap *Snapshot
	for i := 0; i < 50; i++ {
		snap = m.UpdateSession("s1", &Event{DstIP: "10.2.0.100", Bytes: 1})
	}

	if snap.Status != StatusActive {
		t.Errorf("Expected active when diversity aged out, got %s", snap.Status)
	}
}

func TestBothAnomaliesOnSameUpdate(t *testing.T) {
	m := NewMonitor(&MonitorConfig{
		BytesThreshold: 100,
		UniqueDstLimit: 3,
	}, nil, logging.Nop())
	m.CreateSession("s1", nil)

	for i := 0; i < 3; i++ {
		m.UpdateSession("s1", &Event{DstIP: fmt.Sprintf("10.3.0.%d", i), Bytes: 1})
	}
	// 这次更新同时越过字节阈值与目的地址阈值
	snap := m.UpdateSession("s1", &Event{DstIP: "10.3.0.99", Bytes: 1000})

	reasons := make(map[string]bool)
	for _, a := range snap.Alerts {
		reasons[a.Reason] = true
	}
	if !reasons[AlertHighDataTransfer] || !reasons[AlertManyUniqueDestinations] {
		t.Errorf("Expected both alerts on same update, got %v", snap.Alerts)
	}
}

func TestCheckSession_QuarantineEscalationOnRead(t *testing.T) {
	m := NewMonitor(&MonitorConfig{
		BytesThreshold: 100,
	}, nil, logging.Nop())
	m.CreateSession("s1", nil)

	// 两次越阈值更新产生两条告警；升级只在读取时发生
	snap := m.UpdateSession("s1", &Event{DstIP: "8.8.8.8", Bytes: 200})
	snap = m.UpdateSession("s1", &Event{DstIP: "8.8.8.8", Bytes: 200})
	if snap.Status != StatusSuspicious {
		t.Fatalf("Expected suspicious before read, got %s", snap.Status)
	}
	if len(snap.Alerts) < 2 {
		t.Fatalf("Expected 2 alerts, got %d", len(snap.Alerts))
	}

	checked := m.CheckSession("s1")
	if checked.Status != StatusQuarantined {
		t.Errorf("Expected quarantined on check, got %s", checked.Status)
	}

	// 再次读取保持 quarantined
	if again := m.CheckSession("s1"); again.Status != StatusQuarantined {
		t.Errorf("Expected quarantined to stick, got %s", again.Status)
	}
}

func TestCheckSession_NotFound(t *testing.T) {
	m := newTestMonitor()

	snap := m.CheckSession("nope")
	if snap.Status != StatusNotFound {
		t.Errorf("Expected not_found, got %s", snap.Status)
	}
	if snap.SessionID != "nope" {
		t.Errorf("Expected session id echoed, got %s", snap.SessionID)
	}
}

func TestEndSession_Idempotent(t *testing.T) {
	m := newTestMonitor()
	m.CreateSession("s1", nil)

	m.EndSession("s1")
	snap := m.CheckSession("s1")
	if snap.Status != StatusEnded {
		t.Fatalf("Expected ended, got %s", snap.Status)
	}
	if snap.EndedAt.IsZero() {
		t.Error("Expected end time recorded")
	}

	// 重复结束与结束未知会话都不得 panic
	m.EndSession("s1")
	m.EndSession("never-existed")

	if snap := m.CheckSession("s1"); snap.Status != StatusEnded {
		t.Errorf("Expected status to remain ended, got %s", snap.Status)
	}
}

func TestEndedSessionNotQuarantinedOnRead(t *testing.T) {
	m := NewMonitor(&MonitorConfig{BytesThreshold: 100}, nil, logging.Nop())
	m.CreateSession("s1", nil)
	m.UpdateSession("s1", &Event{DstIP: "8.8.8.8", Bytes: 200})
	m.UpdateSession("s1", &Event{DstIP: "8.8.8.8", Bytes: 200})
	m.EndSession("s1")

	if snap := m.CheckSession("s1"); snap.Status != StatusEnded {
		t.Errorf("Expected ended to be terminal, got %s", snap.Status)
	}
}

func TestSlidingWindowCapacity(t *testing.T) {
	m := NewMonitor(&MonitorConfig{WindowSize: 10}, nil, logging.Nop())
	m.CreateSession("s1", nil)

	for i := 0; i < 25; i++ {
		m.UpdateSession("s1", &Event{DstIP: "8.8.8.8", Bytes: 1})
	}

	sh := m.shard("s1")
	sh.mu.RLock()
	s := sh.sessions["s1"]
	sh.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window.Len() != 10 {
		t.Errorf("Expected window capped at 10, got %d", s.window.Len())
	}
	// 累计计数不受窗口淘汰影响
	if s.eventCount != 25 {
		t.Errorf("Expected 25 events counted, got %d", s.eventCount)
	}
}

func TestMonitorConcurrentUpdates(t *testing.T) {
	m := newTestMonitor()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", g%4)
			for i := 0; i < 100; i++ {
				m.UpdateSession(id, &Event{DstIP: "8.8.8.8", Bytes: 1})
				m.CheckSession(id)
			}
		}(g)
	}
	wg.Wait()

	var total int64
	for _, snap := range m.ActiveSessions() {
		total += snap.EventCount
	}
	if total != 800 {
		t.Errorf("Expected 800 total events, got %d", total)
	}
}
