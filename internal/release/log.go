package release

// Log is the ordered, append-only record of notified releases.
//
// Order is notification order. A Log is owned by a single goroutine (the
// poll loop); it is not safe for concurrent use.
type Log struct {
	records []Record
	index   map[string]struct{}
}

// NewLog builds a log from persisted records. Records without a link and
// repeated links are dropped; the first occurrence wins.
func NewLog(records []Record) *Log {
	l := &Log{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]struct{}, len(records)),
	}
	for _, r := range records {
		l.Append(r)
	}
	return l
}

// Contains reports whether link has already been notified.
func (l *Log) Contains(link string) bool {
	if l == nil {
		return false
	}
	_, ok := l.index[link]
	return ok
}

// Append adds r at the end of the log. It returns false (and leaves the log
// unchanged) when r has no link or its link is already present.
func (l *Log) Append(r Record) bool {
	if r.Link == "" || l.Contains(r.Link) {
		return false
	}
	if l.index == nil {
		l.index = map[string]struct{}{}
	}
	l.records = append(l.records, r)
	l.index[r.Link] = struct{}{}
	return true
}

// Truncate drops every record after the first n. It only exists to undo an
// Append whose persistence failed.
func (l *Log) Truncate(n int) {
	if n < 0 || n >= len(l.records) {
		return
	}
	for _, r := range l.records[n:] {
		delete(l.index, r.Link)
	}
	l.records = l.records[:n]
}

func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.records)
}

// Records returns a copy of the log in notification order.
func (l *Log) Records() []Record {
	if l == nil {
		return nil
	}
	return append([]Record(nil), l.records...)
}
