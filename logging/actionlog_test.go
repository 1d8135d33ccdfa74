package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileActionLogger_Sync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")

	al, err := NewFileActionLogger(path, Nop(), nil)
	if err != nil {
		t.Fatalf("NewFileActionLogger failed: %v", err)
	}

	if err := al.LogAction("block_ip", map[string]interface{}{"ip": "10.0.0.5"}); err != nil {
		t.Errorf("LogAction failed: %v", err)
	}
	if err := al.LogAction("alert", map[string]interface{}{"message": "Blocked malicious packet"}); err != nil {
		t.Errorf("LogAction failed: %v", err)
	}

	if err := al.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := ReadActions(path)
	if err != nil {
		t.Fatalf("ReadActions failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != "block_ip" {
		t.Errorf("Expected action block_ip, got %s", entries[0].Action)
	}
	if entries[0].Data["ip"] != "10.0.0.5" {
		t.Errorf("Expected data.ip=10.0.0.5, got %v", entries[0].Data["ip"])
	}

	// 时间戳为 UTC 且按写入顺序排列
	if entries[0].Timestamp.After(entries[1].Timestamp) {
		t.Error("Expected entries ordered by write time")
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("Expected non-zero timestamp")
	}
}

func TestFileActionLogger_Async(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")

	al, err := NewFileActionLogger(path, Nop(), &ActionLogOptions{BufferSize: 64})
	if err != nil {
		t.Fatalf("NewFileActionLogger failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		if err := al.LogAction("isolate_host", map[string]interface{}{"host": "192.168.1.50"}); err != nil {
			t.Errorf("LogAction failed: %v", err)
		}
	}

	// Close 排空队列后所有条目必须已落盘
	if err := al.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := ReadActions(path)
	if err != nil {
		t.Fatalf("ReadActions failed: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("Expected 10 entries after close, got %d", len(entries))
	}
}

func TestFileActionLogger_AppendAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")

	al, err := NewFileActionLogger(path, Nop(), nil)
	if err != nil {
		t.Fatalf("NewFileActionLogger failed: %v", err)
	}
	al.LogAction("allow", map[string]interface{}{"src_ip": "10.0.0.1"})
	al.Close()

	// 重新打开后追加，不得截断既有记录
	al, err = NewFileActionLogger(path, Nop(), nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	al.LogAction("allow", map[string]interface{}{"src_ip": "10.0.0.2"})
	al.Close()

	entries, err := ReadActions(path)
	if err != nil {
		t.Fatalf("ReadActions failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 entries after reopen, got %d", len(entries))
	}
}

func TestReadActions_StrictParsing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")

	content := `{"timestamp":"2026-01-02T15:04:05Z","action":"alert","data":{"message":"ok"}}
this is not json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// 畸形行必须导致错误，而不是被静默跳过
	if _, err := ReadActions(path); err == nil {
		t.Error("Expected error for malformed line, got nil")
	}
}

func TestReadActions_MissingAction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")

	content := `{"timestamp":"2026-01-02T15:04:05Z","data":{}}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := ReadActions(path); err == nil {
		t.Error("Expected error for entry without action, got nil")
	}
}

func TestActionEntry_TimestampUTC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")

	al, err := NewFileActionLogger(path, Nop(), nil)
	if err != nil {
		t.Fatalf("NewFileActionLogger failed: %v", err)
	}
	before := time.Now().UTC()
	al.LogAction("alert", nil)
	after := time.Now().UTC()
	al.Close()

	entries, err := ReadActions(path)
	if err != nil {
		t.Fatalf("ReadActions failed: %v", err)
	}
	ts := entries[0].Timestamp
	if ts.Before(before.Add(-time.Second)) || ts.After(after.Add(time.Second)) {
		t.Errorf("Timestamp %v outside expected range [%v, %v]", ts, before, after)
	}
}
