package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rileyhilliard/pxd/internal/api"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts clients without an Origin header (CLIs, scripts) and
// pages served from the API's own host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// overviewSocket pushes the system overview on connect and then every
// server.push_interval until the client goes away.
func (s *Server) overviewSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.cfg.PushInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	push := time.NewTicker(interval)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	s.log.Debug("overview push: client %s connected", c.ClientIP())
	for {
		ov, err := s.agg.SystemOverview(ctx)
		env := api.Success(ov)
		if err != nil {
			env = api.Failure(err)
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(env); err != nil {
			s.log.Debug("overview push: %v", err)
			return
		}

	wait:
		for {
			select {
			case <-closed:
				s.log.Debug("overview push: client %s left", c.ClientIP())
				return
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-push.C:
				break wait
			}
		}
	}
}
