package services

import (
	"sync"

	"literature-flow/application/ports"
)

const maxNotices = 50

// NoticeBuffer collects failure notices until the client drains them.
// The oldest notices are discarded once the buffer is full.
type NoticeBuffer struct {
	mu      sync.Mutex
	notices []ports.Notice
}

// NewNoticeBuffer creates an empty buffer
func NewNoticeBuffer() *NoticeBuffer {
	return &NoticeBuffer{}
}

// Notify implements ports.Notifier
func (b *NoticeBuffer) Notify(notice ports.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, notice)
	if over := len(b.notices) - maxNotices; over > 0 {
		b.notices = append([]ports.Notice(nil), b.notices[over:]...)
	}
}

// Drain returns the pending notices and empties the buffer
func (b *NoticeBuffer) Drain() []ports.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}
