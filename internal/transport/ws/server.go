package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests and hands each connection to handle,
// which runs on the request goroutine and owns the Conn until it returns.
type Server struct {
	handle func(*Conn)
	log    *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(handle func(*Conn), logger *log.Logger) *Server {
	return &Server{
		handle: handle,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		wsConn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Printf("upgrade %s: %v", r.RemoteAddr, err)
			return
		}
		conn := newConn(wsConn)
		defer conn.Close()
		s.handle(conn)
	}
}
