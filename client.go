/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	sendBuffer     = 32
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Client is one websocket connection. room and closed are guarded by the
// gateway's lock.
type Client struct {
	conn     *websocket.Conn
	send     chan any
	identity Identity

	room   string
	closed bool
}

func newClient(conn *websocket.Conn, id Identity) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan any, sendBuffer),
		identity: id,
	}
}

func newUpgrader(cfg *Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.allowsOrigin(r.Header.Get("Origin"))
		},
	}
}

func (c *Client) dispatch(g *Gateway, msg ClientMessage) error {
	var err error

	switch msg.Type {
	case "create":
		_, err = g.Create(c, c.identity, msg.Category)
	case "join":
		_, err = g.Join(c, c.identity, msg.RoomCode)
	case "start":
		_, err = g.Start(c, c.identity, g.roomOf(c, msg.RoomCode))
	case "answer":
		if msg.Answer == "" {
			return fmt.Errorf("%w: answer is required", errBadMessage)
		}
		elapsed := time.Duration(msg.Elapsed * float64(time.Second))
		_, err = g.Answer(c, c.identity, g.roomOf(c, msg.RoomCode), msg.Answer, elapsed)
	case "end_round":
		_, err = g.EndRound(c, c.identity, g.roomOf(c, msg.RoomCode))
	case "leave":
		code := g.roomOf(c, msg.RoomCode)
		if code == "" {
			return errNotInRoom
		}
		_, err = g.Leave(c, c.identity, code)
	case "chat":
		err = g.Chat(c, msg.Message)
	case "react":
		err = g.React(c, msg.Emoji)
	default:
		err = fmt.Errorf("%w: unknown message type %q", errBadMessage, msg.Type)
	}

	return err
}

func (c *Client) readPump(g *Gateway) {
	defer func() {
		g.Disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && !errors.Is(err, websocket.ErrCloseSent) {
				logf(g.cfg, "WS: Read from %s ended: %v", c.identity.DisplayName, err)
			}
			return
		}

		if err := c.dispatch(g, msg); err != nil {
			g.reject(c, err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWebsocket upgrades the request and, when the route names a room,
// joins it straight away.
func serveWebsocket(cfg *Config, g *Gateway, ids *Resolver) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, err := ids.Resolve(w, r)
		if err != nil {
			writeError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			logf(cfg, "WS: Upgrade for %s failed: %v", realIP(r), err)
			return
		}

		logf(cfg, "WS: %s connected from %s", id.DisplayName, realIP(r))

		c := newClient(conn, id)
		g.Welcome(c)

		if code := ps.ByName("code"); code != "" {
			if _, err := g.Join(c, id, code); err != nil {
				g.reject(c, err)
			}
		}

		go c.writePump()
		c.readPump(g)
	}
}
