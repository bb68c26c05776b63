package events

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit = 4 * 1024
	pongWait  = 60 * time.Second
)

type subscriber struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	hub  *Hub

	writeMu sync.Mutex
}

// readPump only services control frames; clients never send data on the feed.
func (s *subscriber) readPump() {
	defer s.hub.remove(s)
	s.ws.SetReadLimit(readLimit)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.ws.ReadMessage(); err != nil {
			s.hub.logger.Info("event subscriber disconnected", zap.String("subscriber_id", s.id), zap.Error(err))
			return
		}
	}
}

func (s *subscriber) writePump() {
	defer s.ws.Close()
	for msg := range s.send {
		if err := s.write(websocket.TextMessage, msg); err != nil {
			s.hub.remove(s)
			return
		}
	}
	_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (s *subscriber) ping() error {
	return s.write(websocket.PingMessage, []byte("ping"))
}

func (s *subscriber) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(s.hub.writeTimeout))
	return s.ws.WriteMessage(messageType, data)
}
