package devicesync

import (
	"context"
	"sync"

	"dose-mate/internal/apperrors"
)

// Feed serializa las entregas de una suscripción en su propia goroutine,
// preservando el orden en que el store las produce. Lo usan los adapters de Store.
type Feed struct {
	accountID string
	onChange  func(State)
	onError   func(error)
	stop      func()

	mu        sync.Mutex
	queue     []feedEvent
	cancelled bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

type feedEvent struct {
	state State
	err   error
}

// NewFeed arranca el loop de entrega. stop (opcional) lo llama Cancel una sola vez
// para que el adapter libere lo suyo. Si ctx termina, la suscripción se cancela.
func NewFeed(ctx context.Context, accountID string, onChange func(State), onError func(error), stop func()) *Feed {
	f := &Feed{
		accountID: accountID,
		onChange:  onChange,
		onError:   onError,
		stop:      stop,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go f.run()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				f.Cancel()
			case <-f.done:
			}
		}()
	}
	return f
}

func (f *Feed) Push(s State) {
	f.enqueue(feedEvent{state: s})
}

// Fail entrega err al onError como SubscriptionError.
func (f *Feed) Fail(err error) {
	if err == nil {
		return
	}
	f.enqueue(feedEvent{err: &apperrors.SubscriptionError{AccountID: f.accountID, Err: err}})
}

func (f *Feed) Cancel() {
	f.once.Do(func() {
		f.mu.Lock()
		f.cancelled = true
		f.queue = nil
		stop := f.stop
		f.mu.Unlock()

		close(f.done)
		if stop != nil {
			stop()
		}
	})
}

// OnStop fija el hook de Cancel cuando el adapter necesita referenciar el feed.
// Si ya estaba cancelado, stop corre en el momento.
func (f *Feed) OnStop(stop func()) {
	f.mu.Lock()
	if !f.cancelled {
		f.stop = stop
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Done se cierra al cancelar.
func (f *Feed) Done() <-chan struct{} { return f.done }

func (f *Feed) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *Feed) enqueue(ev feedEvent) {
	f.mu.Lock()
	if f.cancelled {
		f.mu.Unlock()
		return
	}
	f.queue = append(f.queue, ev)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Feed) next() (feedEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelled || len(f.queue) == 0 {
		return feedEvent{}, false
	}
	ev := f.queue[0]
	f.queue = f.queue[1:]
	return ev, true
}

func (f *Feed) run() {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}

		for {
			ev, ok := f.next()
			if !ok {
				break
			}
			if ev.err != nil {
				if f.onError != nil {
					f.onError(ev.err)
				}
				continue
			}
			if f.onChange != nil {
				f.onChange(ev.state)
			}
		}
	}
}
