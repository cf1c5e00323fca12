/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid room state")
	ErrForbidden        = errors.New("only the host may do that")
	ErrRoomFull         = errors.New("room is full")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrAlreadyJoined    = errors.New("player already in room")
	ErrNoActiveQuestion = errors.New("no active question")
	ErrAlreadyAnswered  = errors.New("already answered this round")
	ErrInvalidArgument  = errors.New("invalid argument")
)
