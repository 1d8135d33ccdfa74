package session

// eventWindow 固定容量的事件滑动窗口
// 环形缓冲实现，满载时先进先出淘汰最旧事件
type eventWindow struct {
	buf  []*Event
	head int // 下一个写入位置
	size int
}

func newEventWindow(capacity int) *eventWindow {
	return &eventWindow{buf: make([]*Event, capacity)}
}

// Append 追加事件，容量已满时覆盖最旧的一条
func (w *eventWindow) Append(e *Event) {
	w.buf[w.head] = e
	w.head = (w.head + 1) % len(w.buf)
	if w.size < len(w.buf) {
		w.size++
	}
}

// Len 当前窗口内事件数
func (w *eventWindow) Len() int {
	return w.size
}

// Cap 窗口容量
func (w *eventWindow) Cap() int {
	return len(w.buf)
}

// Recent 按时间顺序返回最近 n 条事件（n 超过现存数量时返回全部）
func (w *eventWindow) Recent(n int) []*Event {
	if n > w.size {
		n = w.size
	}
	out := make([]*Event, 0, n)
	start := w.head - n
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}
