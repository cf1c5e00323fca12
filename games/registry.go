/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 64
)

// entry owns one room. Its mutex serializes every mutation of that room;
// the registry lock only guards the map itself and is always taken first.
type entry struct {
	mu     sync.Mutex
	room   *Room
	round  []AnswerRecord
	closed bool
}

func (e *entry) answered(playerID string) bool {
	for _, a := range e.round {
		if a.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Departure describes a player leaving a room.
type Departure struct {
	Player    Player
	Room      *Room
	Closed    bool
	NewHostID string
}

type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*entry

	rules   Rules
	clock   clockwork.Clock
	log     zerolog.Logger
	newCode func() string
}

type Option func(*Registry)

func WithRules(rules Rules) Option {
	return func(r *Registry) {
		r.rules = rules
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithCodeGenerator replaces the random room code source. Collisions are
// still detected and retried.
func WithCodeGenerator(gen func() string) Option {
	return func(r *Registry) {
		r.newCode = gen
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:   make(map[string]*entry),
		rules:   DefaultRules(),
		clock:   clockwork.NewRealClock(),
		log:     zerolog.Nop(),
		newCode: RandomCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RandomCode generates a crypto-random uppercase alphanumeric room code.
func RandomCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, codeLength)
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(out)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Registry) lookup(code string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.rooms[code]
}

// withRoom runs fn while holding the room's lock.
func (r *Registry) withRoom(code string, fn func(e *entry) error) error {
	code = normalizeCode(code)

	e := r.lookup(code)
	if e == nil {
		return fmt.Errorf("room %s: %w", code, ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("room %s: %w", code, ErrNotFound)
	}
	return fn(e)
}

func (r *Registry) remove(code string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[code] == e {
		delete(r.rooms, code)
	}
}

func (r *Registry) CreateRoom(hostID, hostName, category string) (*Room, error) {
	if hostID == "" {
		return nil, fmt.Errorf("%w: missing host id", ErrInvalidArgument)
	}
	if category == "" {
		category = DefaultCategory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code := normalizeCode(r.newCode())
	for attempts := 1; r.rooms[code] != nil; attempts++ {
		if attempts >= maxCodeAttempts {
			return nil, fmt.Errorf("unable to allocate a free room code after %d attempts", attempts)
		}
		code = normalizeCode(r.newCode())
	}

	room := &Room{
		RoomCode:   code,
		HostID:     hostID,
		HostName:   hostName,
		Category:   category,
		MaxPlayers: r.rules.MaxPlayers,
		Players: []Player{{
			ID:          hostID,
			DisplayName: hostName,
			IsHost:      true,
		}},
		State:       StateWaiting,
		TotalRounds: r.rules.TotalRounds,
		CreatedAt:   r.clock.Now(),
	}
	r.rooms[code] = &entry{room: room}

	r.log.Info().
		Str("room", code).
		Str("host", hostName).
		Str("category", category).
		Msg("room created")

	return room.clone(), nil
}

func (r *Registry) JoinRoom(code, playerID, displayName string) (*Room, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: missing player id", ErrInvalidArgument)
	}

	var snapshot *Room
	err := r.withRoom(code, func(e *entry) error {
		room := e.room

		switch {
		case room.State != StateWaiting:
			return fmt.Errorf("room %s is %s: %w", room.RoomCode, room.State, ErrInvalidState)
		case len(room.Players) >= room.MaxPlayers:
			return fmt.Errorf("room %s: %w", room.RoomCode, ErrRoomFull)
		case room.playerIndex(playerID) >= 0:
			return fmt.Errorf("room %s: %w", room.RoomCode, ErrAlreadyJoined)
		}

		room.Players = append(room.Players, Player{
			ID:          playerID,
			DisplayName: displayName,
		})

		r.log.Info().
			Str("room", room.RoomCode).
			Str("player", displayName).
			Int("players", len(room.Players)).
			Msg("player joined")

		snapshot = room.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// LeaveRoom removes a player. It returns nil when the room or the player is
// unknown. A room whose last player leaves is removed from the registry;
// when the host leaves, the earliest joined remaining player becomes host.
func (r *Registry) LeaveRoom(code, playerID string) *Departure {
	var (
		dep   *Departure
		empty *entry
	)

	_ = r.withRoom(code, func(e *entry) error {
		room := e.room

		i := room.playerIndex(playerID)
		if i < 0 {
			return nil
		}

		removed := room.Players[i]
		room.Players = append(room.Players[:i], room.Players[i+1:]...)
		dep = &Departure{Player: removed.clone()}

		if len(room.Players) == 0 {
			e.closed = true
			empty = e
			dep.Closed = true
			dep.Room = room.clone()

			r.log.Info().Str("room", room.RoomCode).Msg("room emptied")
			return nil
		}

		if removed.IsHost {
			room.Players[0].IsHost = true
			room.HostID = room.Players[0].ID
			room.HostName = room.Players[0].DisplayName
			dep.NewHostID = room.HostID

			r.log.Info().
				Str("room", room.RoomCode).
				Str("host", room.HostName).
				Msg("host handed over")
		}

		r.log.Info().
			Str("room", room.RoomCode).
			Str("player", removed.DisplayName).
			Int("players", len(room.Players)).
			Msg("player left")

		dep.Room = room.clone()
		return nil
	})

	if empty != nil {
		r.remove(dep.Room.RoomCode, empty)
	}

	return dep
}

// GetRoom returns a snapshot of the room, or nil.
func (r *Registry) GetRoom(code string) *Room {
	var snapshot *Room
	_ = r.withRoom(code, func(e *entry) error {
		snapshot = e.room.clone()
		return nil
	})
	return snapshot
}

func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entry, 0, len(r.rooms))
	for _, e := range r.rooms {
		out = append(out, e)
	}
	return out
}

// ListWaitingRooms returns the rooms still accepting players, oldest first.
func (r *Registry) ListWaitingRooms() []*Room {
	var rooms []*Room
	for _, e := range r.entries() {
		e.mu.Lock()
		if !e.closed && e.room.State == StateWaiting {
			rooms = append(rooms, e.room.clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].RoomCode < rooms[j].RoomCode
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	return rooms
}

// ReapInactive deletes rooms that are still waiting for players after
// threshold, and returns their codes.
func (r *Registry) ReapInactive(threshold time.Duration) []string {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []string
	for code, e := range r.rooms {
		e.mu.Lock()
		if e.room.State == StateWaiting && now.Sub(e.room.CreatedAt) > threshold {
			e.closed = true
			delete(r.rooms, code)
			reaped = append(reaped, code)
		}
		e.mu.Unlock()
	}

	sort.Strings(reaped)
	for _, code := range reaped {
		r.log.Info().Str("room", code).Msg("reaped inactive room")
	}

	return reaped
}

// Len reports the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
