/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/Seednode/factbuster/games"
)

const (
	publishTimeout = 5 * time.Second
	maxChatLength  = 200
	maxEmojiLength = 8
)

// Gateway fans game events out to the connections in each room and runs
// the round clocks. Every operation holds mu for its whole duration, and
// may call into the coordinator while doing so; the coordinator never
// calls back, so the lock order is always gateway first.
type Gateway struct {
	cfg   *Config
	ctx   context.Context
	coord *games.Coordinator
	reg   *games.Registry
	clock clockwork.Clock
	sink  ResultSink

	mu     sync.Mutex
	groups map[string]map[*Client]bool
	rounds map[string]*roundClock
}

func NewGateway(ctx context.Context, cfg *Config, coord *games.Coordinator, clock clockwork.Clock, sink ResultSink) *Gateway {
	if sink == nil {
		sink = logSink{cfg: cfg}
	}

	return &Gateway{
		cfg:    cfg,
		ctx:    ctx,
		coord:  coord,
		reg:    coord.Registry(),
		clock:  clock,
		sink:   sink,
		groups: make(map[string]map[*Client]bool),
		rounds: make(map[string]*roundClock),
	}
}

func (g *Gateway) sendLocked(c *Client, msg any) {
	if c == nil || c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		// Too slow to keep up; its pumps will notice and disconnect it.
		g.dropLocked(c)
	}
}

func (g *Gateway) broadcastLocked(code string, msg any, exceptID string) {
	for c := range g.groups[code] {
		if exceptID != "" && c.identity.ID == exceptID {
			continue
		}
		g.sendLocked(c, msg)
	}
}

func (g *Gateway) attachLocked(c *Client, code string) {
	if c == nil {
		return
	}

	members := g.groups[code]
	if members == nil {
		members = make(map[*Client]bool)
		g.groups[code] = members
	}
	members[c] = true
	c.room = code
}

func (g *Gateway) detachLocked(c *Client) {
	if members := g.groups[c.room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(g.groups, c.room)
		}
	}
	c.room = ""
}

// leavePreviousLocked moves c out of the room it is attached to before it
// enters code. Its player leaves that room too, unless another of their
// connections is still there.
func (g *Gateway) leavePreviousLocked(c *Client, code string) {
	if c == nil || c.room == "" || c.room == code {
		return
	}

	prev := c.room
	g.detachLocked(c)

	if g.connectedLocked(prev, c.identity.ID) {
		return
	}
	if dep := g.reg.LeaveRoom(prev, c.identity.ID); dep != nil {
		g.departedLocked(dep)
	}
}

// dropLocked stops delivering to c. The room it was in is kept so that
// the disconnect which follows can still leave it.
func (g *Gateway) dropLocked(c *Client) {
	if c.closed {
		return
	}

	if members := g.groups[c.room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(g.groups, c.room)
		}
	}

	c.closed = true
	close(c.send)
}

func (g *Gateway) connectedLocked(code, playerID string) bool {
	for c := range g.groups[code] {
		if c.identity.ID == playerID {
			return true
		}
	}
	return false
}

// closeRoomLocked stops the room's clock and disconnects everyone still
// attached to it.
func (g *Gateway) closeRoomLocked(code string) {
	g.stopRoundLocked(code)

	for c := range g.groups[code] {
		c.room = ""
		g.dropLocked(c)
	}
	delete(g.groups, code)
}

func (g *Gateway) reject(c *Client, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sendLocked(c, newErrorMessage(err))
}

func (g *Gateway) roomOf(c *Client, code string) string {
	if code = strings.TrimSpace(code); code != "" {
		return code
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return c.room
}

// Welcome sends a new connection its session details.
func (g *Gateway) Welcome(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sendLocked(c, SessionInfoMessage{
		Type:        "session_info",
		PlayerID:    c.identity.ID,
		DisplayName: c.identity.DisplayName,
		IsGuest:     c.identity.Guest,
	})
}

// Create opens a room hosted by id. When c is non-nil it is attached to
// the new room.
func (g *Gateway) Create(c *Client, id Identity, category string) (*games.Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, err := g.reg.CreateRoom(id.ID, id.DisplayName, category)
	if err != nil {
		return nil, err
	}

	g.leavePreviousLocked(c, room.RoomCode)
	g.attachLocked(c, room.RoomCode)
	g.sendLocked(c, RoomMessage{Type: "room_created", Room: room})

	logf(g.cfg, "ROOM: %s created by %s (%s)", room.RoomCode, id.DisplayName, room.Category)

	return room, nil
}

// Join adds id to a room. A player who is already a member may only
// attach a further connection, and only while the room is still waiting.
func (g *Gateway) Join(c *Client, id Identity, code string) (*games.Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room := g.reg.GetRoom(code)
	if room == nil {
		return nil, fmt.Errorf("room %s: %w", code, games.ErrNotFound)
	}
	code = room.RoomCode

	joined := false
	if _, member := room.Player(id.ID); member {
		if c == nil || c.room == code || room.State != games.StateWaiting {
			return nil, fmt.Errorf("%s in room %s: %w", id.ID, code, games.ErrAlreadyJoined)
		}
	} else {
		var err error
		if room, err = g.reg.JoinRoom(code, id.ID, id.DisplayName); err != nil {
			return nil, err
		}
		joined = true
	}

	g.leavePreviousLocked(c, code)
	g.attachLocked(c, code)
	g.sendLocked(c, RoomMessage{Type: "room_joined", Room: room})

	if joined {
		g.broadcastLocked(code, PlayerJoinedMessage{
			Type:        "player_joined",
			PlayerID:    id.ID,
			DisplayName: id.DisplayName,
			Room:        room,
		}, id.ID)

		logf(g.cfg, "ROOM: %s joined %s", id.DisplayName, code)
	}

	return room, nil
}

func (g *Gateway) Start(c *Client, id Identity, code string) (*games.Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, question, err := g.coord.StartGame(code, id.ID)
	if err != nil {
		return nil, err
	}

	g.startRoundLocked(room.RoomCode, room.CurrentRound)
	g.broadcastLocked(room.RoomCode, GameStartedMessage{
		Type:        "game_started",
		Round:       room.CurrentRound,
		TotalRounds: room.TotalRounds,
		TimeLimit:   int(g.cfg.roundTime / time.Second),
		Question:    question,
		Room:        room,
	}, "")

	logf(g.cfg, "GAME: %s started with %d players", room.RoomCode, len(room.Players))

	return room, nil
}

func (g *Gateway) Answer(c *Client, id Identity, code, option string, elapsed time.Duration) (*games.AnswerResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	code = roomKey(code)
	if g.inIntermissionLocked(code) {
		return nil, errIntermission
	}

	res, err := g.coord.SubmitAnswer(code, id.ID, option, elapsed)
	if err != nil {
		return nil, err
	}

	g.sendLocked(c, AnswerResultMessage{Type: "answer_result", AnswerResult: res})
	g.broadcastLocked(code, PlayerAnsweredMessage{
		Type:           "player_answered",
		PlayerID:       res.Record.PlayerID,
		DisplayName:    res.Record.DisplayName,
		ElapsedSeconds: res.Record.ElapsedSeconds,
	}, id.ID)

	g.finishIfAnsweredLocked(code, res.Record.Round)

	return res, nil
}

// EndRound lets the host cut the current round short.
func (g *Gateway) EndRound(c *Client, id Identity, code string) (*games.RoundOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	code = roomKey(code)
	if g.inIntermissionLocked(code) {
		return nil, errIntermission
	}

	out, err := g.coord.EndRound(code, id.ID)
	if err != nil {
		return nil, err
	}

	g.afterRoundLocked(out)

	return out, nil
}

func (g *Gateway) Leave(c *Client, id Identity, code string) (*games.Departure, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	dep := g.reg.LeaveRoom(code, id.ID)
	if dep == nil {
		return nil, fmt.Errorf("room %s: %w", code, errNotInRoom)
	}

	code = dep.Room.RoomCode

	left := SimpleMessage{Type: "left", RoomCode: code, Message: "You left the room."}

	notified := false
	for member := range g.groups[code] {
		if member.identity.ID == id.ID {
			g.detachLocked(member)
			g.sendLocked(member, left)
			notified = notified || member == c
		}
	}
	if !notified {
		g.sendLocked(c, left)
	}

	g.departedLocked(dep)

	return dep, nil
}

// Disconnect is called once a connection's read loop ends. A player with
// no other connection left in the room leaves it.
func (g *Gateway) Disconnect(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	code := c.room
	if code != "" {
		g.detachLocked(c)
	}
	g.dropLocked(c)

	if code == "" || g.connectedLocked(code, c.identity.ID) {
		return
	}

	if dep := g.reg.LeaveRoom(code, c.identity.ID); dep != nil {
		g.departedLocked(dep)
	}
}

func (g *Gateway) departedLocked(dep *games.Departure) {
	code := dep.Room.RoomCode

	logf(g.cfg, "ROOM: %s left %s", dep.Player.DisplayName, code)

	if dep.Closed {
		g.closeRoomLocked(code)
		logf(g.cfg, "ROOM: %s closed, no players left", code)
		return
	}

	g.broadcastLocked(code, PlayerLeftMessage{
		Type:        "player_left",
		PlayerID:    dep.Player.ID,
		DisplayName: dep.Player.DisplayName,
		NewHostID:   dep.NewHostID,
		Room:        dep.Room,
	}, "")

	if dep.Room.State == games.StatePlaying {
		g.finishIfAnsweredLocked(code, dep.Room.CurrentRound)
	}
}

// Chat relays a line of text from c to everyone in its room, c included.
func (g *Gateway) Chat(c *Client, text string) error {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return fmt.Errorf("%w: message is required", errBadMessage)
	case utf8.RuneCountInString(text) > maxChatLength:
		return fmt.Errorf("%w: message is longer than %d characters", errBadMessage, maxChatLength)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if c.room == "" {
		return errNotInRoom
	}

	g.broadcastLocked(c.room, ChatMessage{
		Type:        "chat",
		PlayerID:    c.identity.ID,
		DisplayName: c.identity.DisplayName,
		Message:     text,
		SentAt:      g.clock.Now().UTC(),
	}, "")

	return nil
}

// React relays a short emoji reaction from c to everyone in its room.
func (g *Gateway) React(c *Client, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiLength {
		return fmt.Errorf("%w: reaction must be between 1 and %d characters", errBadMessage, maxEmojiLength)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if c.room == "" {
		return errNotInRoom
	}

	g.broadcastLocked(c.room, ReactionMessage{
		Type:        "reaction",
		PlayerID:    c.identity.ID,
		DisplayName: c.identity.DisplayName,
		Emoji:       emoji,
		SentAt:      g.clock.Now().UTC(),
	}, "")

	return nil
}

// roomKey spells a user supplied code the way the registry stores it.
func roomKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Reap removes rooms that never started within the room timeout.
func (g *Gateway) Reap() []string {
	codes := g.reg.ReapInactive(g.cfg.roomTimeout)

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, code := range codes {
		g.broadcastLocked(code, SimpleMessage{
			Type:     "room_closed",
			RoomCode: code,
			Message:  "The room was closed after being idle for too long.",
		}, "")
		g.closeRoomLocked(code)

		logf(g.cfg, "ROOM: %s reaped after %s idle", code, g.cfg.roomTimeout)
	}

	return codes
}

func (g *Gateway) reaperLoop(ctx context.Context) {
	ticker := g.clock.NewTicker(g.cfg.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			g.Reap()
		}
	}
}

// Shutdown stops every round clock and disconnects all clients.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for code := range g.rounds {
		g.stopRoundLocked(code)
	}
	for code := range g.groups {
		g.closeRoomLocked(code)
	}
}
