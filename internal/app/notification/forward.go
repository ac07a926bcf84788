package notification

import (
	"sync"

	"github.com/osa030/podbox/internal/api/playerapi"
	"github.com/osa030/podbox/internal/app/player"
)

// Source publishes player snapshots and lifecycle events.
type Source interface {
	Subscribe(fn func(player.State)) func()
	Events() <-chan player.Event
}

// Forward broadcasts every snapshot and event of src through m. It runs
// until the returned function is called or the event channel closes.
func Forward(src Source, m *Manager) (stop func()) {
	unsubscribe := src.Subscribe(func(s player.State) {
		state := playerapi.FromState(s)
		m.Broadcast(&playerapi.Notification{Type: playerapi.NotificationState, State: &state})
	})

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		events := src.Events()
		for {
			select {
			case <-quit:
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				m.Broadcast(playerapi.FromEvent(e))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			close(quit)
			<-done
		})
	}
}
