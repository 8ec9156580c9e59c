package application

import (
	"sync"
	"time"
)

// NoticeKind identifies one of the transient notices.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeNewData NoticeKind = "new_data"

	DefaultNoticeTTL = 6 * time.Second
)

var noticeOrder = []NoticeKind{NoticeSuccess, NoticeNewData}

var noticeMessages = map[NoticeKind]string{
	NoticeSuccess: "Registration successful!",
	NoticeNewData: "A new notification received!",
}

// Notice is a visible transient message.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Notices holds the two independent dismissible messages. Each hides itself
// ttl after it was last raised.
type Notices struct {
	clock  Clock
	ttl    time.Duration
	onHide func(NoticeKind)

	mu       sync.Mutex
	visible  map[NoticeKind]bool
	timers   map[NoticeKind]Timer
	tokens   map[NoticeKind]uint64
	watchers map[int]chan []Notice
	nextID   int
}

func newNotices(clock Clock, ttl time.Duration, onHide func(NoticeKind)) *Notices {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &Notices{
		clock:    clock,
		ttl:      ttl,
		onHide:   onHide,
		visible:  make(map[NoticeKind]bool),
		timers:   make(map[NoticeKind]Timer),
		tokens:   make(map[NoticeKind]uint64),
		watchers: make(map[int]chan []Notice),
	}
}

// Raise shows the notice and restarts its auto-dismiss timer.
func (n *Notices) Raise(kind NoticeKind) error {
	if _, ok := noticeMessages[kind]; !ok {
		return ErrUnknownNotice
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.visible[kind] = true
	if t := n.timers[kind]; t != nil {
		t.Stop()
	}
	n.tokens[kind]++
	token := n.tokens[kind]
	n.timers[kind] = n.clock.AfterFunc(n.ttl, func() { n.expire(kind, token) })
	n.broadcastLocked()
	return nil
}

// Dismiss hides the notice. Dismissing a hidden notice is a no-op.
func (n *Notices) Dismiss(kind NoticeKind) error {
	if _, ok := noticeMessages[kind]; !ok {
		return ErrUnknownNotice
	}
	n.mu.Lock()
	hidden := n.hideLocked(kind)
	n.mu.Unlock()
	if hidden && n.onHide != nil {
		n.onHide(kind)
	}
	return nil
}

// Visible returns the shown notices in a stable order.
func (n *Notices) Visible() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotLocked()
}

// Shown reports whether kind is visible.
func (n *Notices) Shown(kind NoticeKind) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visible[kind]
}

// Watch streams the visible set after every change. Slow readers only see
// the latest state. The returned func stops the stream.
func (n *Notices) Watch() (<-chan []Notice, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	ch := make(chan []Notice, 1)
	ch <- n.snapshotLocked()
	n.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if c, ok := n.watchers[id]; ok {
				delete(n.watchers, id)
				close(c)
			}
		})
	}
}

// Close stops the timers and ends every watch stream.
func (n *Notices) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for kind, t := range n.timers {
		t.Stop()
		n.tokens[kind]++
	}
	for id, c := range n.watchers {
		delete(n.watchers, id)
		close(c)
	}
}

func (n *Notices) expire(kind NoticeKind, token uint64) {
	n.mu.Lock()
	if n.tokens[kind] != token {
		n.mu.Unlock()
		return
	}
	hidden := n.hideLocked(kind)
	n.mu.Unlock()
	if hidden && n.onHide != nil {
		n.onHide(kind)
	}
}

func (n *Notices) hideLocked(kind NoticeKind) bool {
	if t := n.timers[kind]; t != nil {
		t.Stop()
		delete(n.timers, kind)
	}
	n.tokens[kind]++
	if !n.visible[kind] {
		return false
	}
	n.visible[kind] = false
	n.broadcastLocked()
	return true
}

func (n *Notices) snapshotLocked() []Notice {
	out := make([]Notice, 0, len(noticeOrder))
	for _, kind := range noticeOrder {
		if n.visible[kind] {
			out = append(out, Notice{Kind: kind, Message: noticeMessages[kind]})
		}
	}
	return out
}

func (n *Notices) broadcastLocked() {
	snap := n.snapshotLocked()
	for _, c := range n.watchers {
		select {
		case <-c:
		default:
		}
		c <- snap
	}
}
