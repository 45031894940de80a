package server

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/towermaze/internal/logger"
)

// Request types a subscriber may send.
const requestLatest = "latest"

// subscriber is one websocket consumer of published mazes.
type subscriber struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
}

func newSubscriber(conn *websocket.Conn, ip string) *subscriber {
	return &subscriber{
		conn: conn,
		ip:   ip,
		send: make(chan []byte, subscriberBuffer),
	}
}

// writePump writes queued frames and periodic pings until the queue is
// closed or a write fails.
func (s *subscriber) writePump(writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug("Subscriber write failed", "ip", s.ip, "error", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// readPump handles requests from the subscriber until the connection fails.
// Blank messages are ignored.
func (s *subscriber) readPump(p *Publisher, maxMessageSize int64, pongWait time.Duration) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Subscriber read failed", "ip", s.ip, "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))

		if reply := s.handleRequest(p, message); reply != nil {
			p.deliver(s, reply)
		}
	}
}

// handleRequest returns the frame to send back for a request, or nil.
func (s *subscriber) handleRequest(p *Publisher, message []byte) []byte {
	if len(bytes.TrimSpace(message)) == 0 {
		return nil
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &req); err != nil {
		return errorFrame("malformed request")
	}

	switch req.Type {
	case requestLatest:
		if frame := p.latestFrame(); frame != nil {
			return frame
		}
		return errorFrame("no maze published")
	default:
		return errorFrame("unknown request type: " + req.Type)
	}
}

func errorFrame(msg string) []byte {
	frame, _ := encodeEnvelope(TypeError, msg)
	return frame
}
