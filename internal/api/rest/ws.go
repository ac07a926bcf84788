package rest

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/api/playerapi"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 4096
	wsWriteWait       = 5 * time.Second
	wsPongWait        = 60 * time.Second
	wsPingPeriod      = wsPongWait * 9 / 10
)

var wsUpgrader = &websocket.Upgrader{
	ReadBufferSize:  wsReadBufferSize,
	WriteBufferSize: wsWriteBufferSize,
	// Origins are enforced by the CORS layer in front of the router.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsStream adapts a websocket connection to notification.Stream.
type wsStream struct {
	id   string
	mu   sync.Mutex // one writer at a time
	conn *websocket.Conn
}

func (s *wsStream) Send(n *playerapi.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(n)
}

func (s *wsStream) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// watchPlayer upgrades to a websocket that receives the current snapshot
// followed by every player notification. Incoming messages are discarded.
func (s *Server) watchPlayer(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Err(err).Msg("rest: websocket upgrade failed")
		return
	}
	stream := &wsStream{id: xid.New().String(), conn: conn}
	defer conn.Close()

	subID, err := s.notifier.SubscribeWithInitial(stream, func() *playerapi.Notification {
		state := playerapi.FromState(s.player.State())
		return &playerapi.Notification{Type: playerapi.NotificationInitialState, State: &state}
	})
	if err != nil {
		zlog.Debug().Err(err).Msgf("rest: websocket initial send failed: conn=%s", stream.id)
		return
	}
	defer s.notifier.Unsubscribe(subID)
	zlog.Info().Msgf("rest: websocket watcher connected: conn=%s remote=%s", stream.id, r.RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			zlog.Info().Msgf("rest: websocket watcher disconnected: conn=%s", stream.id)
			return
		case <-s.notifier.Done():
			stream.mu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			stream.mu.Unlock()
			return
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				return
			}
		}
	}
}
