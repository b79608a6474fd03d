package wsstream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // el dispositivo y la UI no mandan Origin consistente
	},
}

// Emit encola un mensaje JSON hacia el cliente. Devuelve false si el mensaje
// se descartó (cliente cerrado o buffer lleno).
type Emit func(v any) bool

// SubscribeFunc engancha la fuente de datos y devuelve cómo soltarla.
type SubscribeFunc func(emit Emit) (cancel func(), err error)

// Serve hace upgrade y bombea mensajes hasta que el cliente cierre.
// Al salir siempre llama al cancel devuelto por subscribe.
func Serve(w http.ResponseWriter, r *http.Request, log *zap.Logger, subscribe SubscribeFunc) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan any, sendBuffer)
	closed := make(chan struct{})

	emit := func(v any) bool {
		select {
		case <-closed:
			return false
		default:
		}
		select {
		case send <- v:
			return true
		default:
			log.Warn("websocket client too slow, dropping message")
			return false
		}
	}

	cancel, err := subscribe(emit)
	if err != nil {
		log.Warn("websocket subscribe failed", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}
	defer cancel()

	go readPump(conn, closed)
	writePump(conn, send, closed, log)
}

// readPump descarta lo que mande el cliente; solo sirve para detectar el cierre y los pongs.
func readPump(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, send <-chan any, closed <-chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case v := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
