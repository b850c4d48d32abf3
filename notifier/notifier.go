// Package notifier is a disposable fan-out queue for UI-facing signals:
// toast-style notices and pending paint intents. Nothing here is
// authoritative; chain-confirmed state lives in the board package.
package notifier

import (
	"sync"
	"time"
)

// Level classifies a notice for presentation.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
	LevelWarning
)

// Notice is one transient user-facing message.
type Notice struct {
	Level   Level
	Message string
	TxHash  string
	Time    time.Time
}

// Queue fans notices out to subscribers. Slow subscribers drop notices rather
// than block publishers.
type Queue struct {
	mu     sync.Mutex
	subs   map[chan Notice]struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{subs: make(map[chan Notice]struct{})}
}

// Subscribe returns a channel of notices and a cancel func. Cancel is
// idempotent.
func (q *Queue) Subscribe() (<-chan Notice, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch := make(chan Notice, 16)
	if q.closed {
		close(ch)
		return ch, func() {}
	}
	q.subs[ch] = struct{}{}
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			q.mu.Lock()
			if _, ok := q.subs[ch]; ok {
				delete(q.subs, ch)
				close(ch)
			}
			q.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers a notice to every subscriber that has buffer room.
func (q *Queue) Publish(level Level, message string, txHash string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	notice := Notice{Level: level, Message: message, TxHash: txHash, Time: time.Now()}
	for ch := range q.subs {
		select {
		case ch <- notice:
		default:
		}
	}
}

// Close tears down all subscriptions. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for ch := range q.subs {
		delete(q.subs, ch)
		close(ch)
	}
}
