package coop

import "sync"

type NotificationKind string

const (
	NotifyState NotificationKind = "state_updated"
	NotifyWin   NotificationKind = "game_win"
	NotifyError NotificationKind = "error"
)

// Notification is delivered to local observers of a session.
type Notification struct {
	Kind  NotificationKind
	State State
	Err   error
}

const observerBuffer = 8

// observers fans notifications out to subscribers. A subscriber that falls
// behind loses its oldest pending notification, never blocking the sender.
type observers struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Notification
}

func (o *observers) subscribe() (<-chan Notification, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.subs == nil {
		o.subs = make(map[int]chan Notification)
	}
	id := o.nextID
	o.nextID++
	ch := make(chan Notification, observerBuffer)
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
}

func (o *observers) publish(n Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, ch := range o.subs {
		select {
		case ch <- n:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- n:
		default:
		}
	}
}
