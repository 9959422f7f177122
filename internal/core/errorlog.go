package core

// ErrorLog keeps the most recent row errors up to a fixed capacity.
type ErrorLog struct {
	buf   []RowError
	next  int
	full  bool
	total int
}

// NewErrorLog returns a log holding at most capacity entries. A capacity
// below one is treated as one.
func NewErrorLog(capacity int) *ErrorLog {
	if capacity < 1 {
		capacity = 1
	}
	return &ErrorLog{buf: make([]RowError, capacity)}
}

// Add appends e, evicting the oldest entry when full.
func (l *ErrorLog) Add(e RowError) {
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	l.total++
}

// Entries returns the retained entries, oldest first.
func (l *ErrorLog) Entries() []RowError {
	if !l.full {
		return append([]RowError(nil), l.buf[:l.next]...)
	}
	out := make([]RowError, 0, len(l.buf))
	out = append(out, l.buf[l.next:]...)
	return append(out, l.buf[:l.next]...)
}

// Total counts every entry ever added, including evicted ones.
func (l *ErrorLog) Total() int { return l.total }

// Reset empties the log.
func (l *ErrorLog) Reset() {
	clear(l.buf)
	l.next = 0
	l.full = false
	l.total = 0
}
