/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/factbuster/games"
)

var (
	errIntermission = errors.New("round is over, wait for the next question")
	errNotInRoom    = errors.New("not in a room")
	errBadMessage   = errors.New("malformed message")
	errUnauthorized = errors.New("unauthorized")
)

// setupLogging points the global logger at out and returns it. Verbose
// output includes debug events from the game engine.
func setupLogging(cfg *Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.WarnLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: logDate}).
		Level(level).
		With().
		Timestamp().
		Logger()

	return log.Logger
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Info().Msgf(format, args...)
}

func logErr(err error, msg string) {
	log.Error().Err(err).Msg(msg)
}

// errorCode names an error for clients, which should not have to parse
// the human readable message.
func errorCode(err error) string {
	switch {
	case errors.Is(err, games.ErrNotFound):
		return "not_found"
	case errors.Is(err, games.ErrForbidden):
		return "forbidden"
	case errors.Is(err, games.ErrRoomFull):
		return "room_full"
	case errors.Is(err, games.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, games.ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, games.ErrAlreadyAnswered):
		return "already_answered"
	case errors.Is(err, games.ErrNoActiveQuestion):
		return "no_active_question"
	case errors.Is(err, games.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, games.ErrInvalidArgument), errors.Is(err, errBadMessage):
		return "bad_request"
	case errors.Is(err, errIntermission):
		return "intermission"
	case errors.Is(err, errNotInRoom):
		return "not_in_room"
	case errors.Is(err, errUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
