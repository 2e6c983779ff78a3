package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SafeWriter serialises writes to a websocket connection. gorilla allows one
// concurrent writer and one concurrent reader per connection.
type SafeWriter struct {
	conn    *websocket.Conn
	mutex   sync.Mutex
	timeout time.Duration
}

func NewSafeWriter(conn *websocket.Conn) *SafeWriter {
	return &SafeWriter{conn: conn, timeout: writeWait}
}

// WriteJSON and WriteMessage fail once the peer has not drained the
// connection within the write timeout.
func (w *SafeWriter) WriteJSON(v any) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

func (w *SafeWriter) WriteMessage(messageType int, data []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(messageType, data)
}

// WriteClose sends a close frame and gives the peer until deadline to answer.
func (w *SafeWriter) WriteClose(code int, text string, deadline time.Time) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (w *SafeWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.conn.Close()
}

// ReadJSON is not guarded; only the connection's read loop may call it.
func (w *SafeWriter) ReadJSON(v any) error {
	return w.conn.ReadJSON(v)
}
