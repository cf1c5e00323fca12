/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"time"

	"github.com/Seednode/factbuster/games"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string  `json:"type"`                // "create", "join", "start", "answer", "end_round", "leave", "chat", "react"
	RoomCode string  `json:"room_code,omitempty"` // everything but create, chat and react; defaults to the joined room
	Category string  `json:"category,omitempty"`  // create
	Answer   string  `json:"answer,omitempty"`    // answer
	Elapsed  float64 `json:"elapsed,omitempty"`   // answer, in seconds
	Message  string  `json:"message,omitempty"`   // chat
	Emoji    string  `json:"emoji,omitempty"`     // react
}

// Messages sent to clients

// SessionInfoMessage is sent once, right after the connection opens.
type SessionInfoMessage struct {
	Type        string `json:"type"` // "session_info"
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// RoomMessage acknowledges a create or join to the connection that asked.
type RoomMessage struct {
	Type string      `json:"type"` // "room_created" or "room_joined"
	Room *games.Room `json:"room"`
}

type PlayerJoinedMessage struct {
	Type        string      `json:"type"` // "player_joined"
	PlayerID    string      `json:"player_id"`
	DisplayName string      `json:"display_name"`
	Room        *games.Room `json:"room"`
}

type GameStartedMessage struct {
	Type        string          `json:"type"` // "game_started"
	Round       int             `json:"round"`
	TotalRounds int             `json:"total_rounds"`
	TimeLimit   int             `json:"time_limit"`
	Question    *games.Question `json:"question"`
	Room        *games.Room     `json:"room"`
}

// PlayerAnsweredMessage tells everyone else that a player answered, but
// not whether they were right.
type PlayerAnsweredMessage struct {
	Type           string  `json:"type"` // "player_answered"
	PlayerID       string  `json:"player_id"`
	DisplayName    string  `json:"display_name"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// AnswerResultMessage goes only to the player who answered.
type AnswerResultMessage struct {
	Type string `json:"type"` // "answer_result"
	*games.AnswerResult
}

type TimeRemainingMessage struct {
	Type    string `json:"type"` // "time_remaining"
	Round   int    `json:"round"`
	Seconds int    `json:"seconds"`
}

type RoundFinishedMessage struct {
	Type string `json:"type"` // "round_finished"
	*games.RoundOutcome
}

type RoundStartedMessage struct {
	Type        string          `json:"type"` // "round_started"
	Round       int             `json:"round"`
	TotalRounds int             `json:"total_rounds"`
	TimeLimit   int             `json:"time_limit"`
	Question    *games.Question `json:"question"`
}

type PlayerLeftMessage struct {
	Type        string      `json:"type"` // "player_left"
	PlayerID    string      `json:"player_id"`
	DisplayName string      `json:"display_name"`
	NewHostID   string      `json:"new_host_id,omitempty"`
	Room        *games.Room `json:"room"`
}

type ChatMessage struct {
	Type        string    `json:"type"` // "chat"
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
}

type ReactionMessage struct {
	Type        string    `json:"type"` // "reaction"
	PlayerID    string    `json:"player_id"`
	DisplayName string    `json:"display_name"`
	Emoji       string    `json:"emoji"`
	SentAt      time.Time `json:"sent_at"`
}

// SimpleMessage is for generic notifications ("left", "room_closed")
type SimpleMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code,omitempty"`
	Message  string `json:"message"`
}

// ErrorMessage is sent only to the connection whose request failed.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    "error",
		Code:    errorCode(err),
		Message: err.Error(),
	}
}
