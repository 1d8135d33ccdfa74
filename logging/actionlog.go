package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ActionEntry 动作日志条目
// 字段形状（timestamp/action/data）是与下游事件分析方的兼容契约，不可变更
type ActionEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Data      map[string]interface{} `json:"data"`
}

// ActionLogger 动作日志记录器接口
// 响应调度器通过它落盘每一次执法动作，形成审计轨迹
type ActionLogger interface {
	LogAction(action string, data map[string]interface{}) error
	Close() error
}

// FileActionLogger 基于文件的动作日志记录器
// 仅追加写入，单条一行 JSON；写入由互斥锁串行化以保持时间戳顺序
type FileActionLogger struct {
	path   string
	file   *os.File
	logger Logger

	mu sync.Mutex

	// 异步模式下的有界队列；nil 表示同步写入
	queue chan *ActionEntry
	done  chan struct{}
}

// ActionLogOptions 动作日志配置
type ActionLogOptions struct {
	// BufferSize > 0 时启用异步写入，队列满则丢弃并告警，
	// 保证决策路径永不被日志 IO 阻塞
	BufferSize int
}

// NewFileActionLogger 创建动作日志记录器
func NewFileActionLogger(path string, logger Logger, opts *ActionLogOptions) (*FileActionLogger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create action log dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open action log file: %w", err)
	}

	if logger == nil {
		logger = Nop()
	}

	a := &FileActionLogger{
		path:   path,
		file:   f,
		logger: logger,
	}

	if opts != nil && opts.BufferSize > 0 {
		a.queue = make(chan *ActionEntry, opts.BufferSize)
		a.done = make(chan struct{})
		go a.drain()
	}

	return a, nil
}

// LogAction 追加一条动作记录，时间戳取 UTC 当前时间
func (a *FileActionLogger) LogAction(action string, data map[string]interface{}) error {
	e := &ActionEntry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Data:      data,
	}

	if a.queue != nil {
		select {
		case a.queue <- e:
		default:
			a.logger.Warn("Action log queue full, entry dropped",
				"action", action,
			)
		}
		return nil
	}

	return a.write(e)
}

// drain 异步模式的后台写入循环
func (a *FileActionLogger) drain() {
	for e := range a.queue {
		if err := a.write(e); err != nil {
			a.logger.Warn("Action log write failed",
				"action", e.Action,
				"error", err.Error(),
			)
		}
	}
	close(a.done)
}

// write 序列化并落盘单条记录
func (a *FileActionLogger) write(e *ActionEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal action entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write action entry: %w", err)
	}

	return nil
}

// Close 关闭记录器，异步模式下先排空队列
func (a *FileActionLogger) Close() error {
	if a.queue != nil {
		close(a.queue)
		<-a.done
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// ReadActions 严格解析动作日志文件
// 任何无法解析的行都视为错误返回，消费方不做宽松回退
func ReadActions(path string) ([]*ActionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open action log: %w", err)
	}
	defer f.Close()

	var entries []*ActionEntry
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e ActionEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("malformed action log line %d: %w", lineNo, err)
		}
		if e.Action == "" {
			return nil, fmt.Errorf("malformed action log line %d: missing action", lineNo)
		}
		entries = append(entries, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read action log: %w", err)
	}

	return entries, nil
}
