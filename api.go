/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/factbuster/games"
)

const maxBodySize = 4096

type createRequest struct {
	Category string `json:"category"`
}

type answerRequest struct {
	Answer    string  `json:"answer"`
	TimeSpent float64 `json:"time_spent"`
}

// LobbyRoom is what the public room list shows about a waiting room.
type LobbyRoom struct {
	RoomCode    string    `json:"room_code"`
	HostName    string    `json:"host_name"`
	Category    string    `json:"category"`
	PlayerCount int       `json:"player_count"`
	MaxPlayers  int       `json:"max_players"`
	CreatedAt   time.Time `json:"created_at"`
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, games.ErrNotFound), errors.Is(err, errNotInRoom):
		return http.StatusNotFound
	case errors.Is(err, games.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, games.ErrInvalidArgument), errors.Is(err, errBadMessage):
		return http.StatusBadRequest
	case errors.Is(err, games.ErrRoomFull),
		errors.Is(err, games.ErrAlreadyJoined),
		errors.Is(err, games.ErrInvalidState),
		errors.Is(err, games.ErrNotEnoughPlayers),
		errors.Is(err, games.ErrNoActiveQuestion),
		errors.Is(err, games.ErrAlreadyAnswered),
		errors.Is(err, errIntermission):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logErr(err, "unable to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusCode(err)
	if status == http.StatusInternalServerError {
		logErr(err, "request failed")
	}

	writeJSON(w, status, map[string]any{
		"success": false,
		"code":    errorCode(err),
		"message": err.Error(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadMessage, err)
	}

	return nil
}

// apiHandler resolves the caller before handing over to fn.
func apiHandler(cfg *Config, ids *Resolver, fn func(http.ResponseWriter, *http.Request, httprouter.Params, Identity)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		id, err := ids.Resolve(w, r)
		if err != nil {
			writeError(w, err)
			return
		}

		fn(w, r, ps, id)

		logf(cfg, "SERVE: %s %s for %s (%s) in %s",
			r.Method,
			r.URL.Path,
			id.DisplayName,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveListRooms(g *Gateway) func(http.ResponseWriter, *http.Request, httprouter.Params, Identity) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ Identity) {
		rooms := g.reg.ListWaitingRooms()

		lobby := make([]LobbyRoom, 0, len(rooms))
		for _, room := range rooms {
			lobby = append(lobby, LobbyRoom{
				RoomCode:    room.RoomCode,
				HostName:    room.HostName,
				Category:    room.Category,
				PlayerCount: len(room.Players),
				MaxPlayers:  room.MaxPlayers,
				CreatedAt:   room.CreatedAt,
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "games": lobby})
	}
}

func serveCreateRoom(g *Gateway) func(http.ResponseWriter, *http.Request, httprouter.Params, Identity) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, id Identity) {
		var req createRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		room, err := g.Create(nil, id, req.Category)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "room": room})
	}
}

func serveGetRoom(g *Gateway) func(http.ResponseWriter, *http.Request, httprouter.Params, Identity) {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, _ Identity) {
		room := g.reg.GetRoom(ps.ByName("code"))
		if room == nil {
			writeError(w, fmt.Errorf("room %s: %w", ps.ByName("code"), games.ErrNotFound))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "room": room})
	}
}

func serveJoinRoom(g *Gateway) func(http.ResponseWriter, *http.Request, httprouter.Params, Identity) {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id Identity) {
		room, err := g.Join(nil, id, ps.ByName("code"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "room": room})
	}
}

func serveLeaveRoom(g *Gateway) func(http.ResponseWriter, *http.Request, httprouter.Params, Identity) {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id Identity) {
		dep, err := g.Leave(nil, id, ps.ByName("code"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"room_closed": dep.Closed,
			"new_host_id": dep.NewHostID,
		})
	}
}

func serveStartGame(g *Gateway) func(http.ResponseWriter, *http.Request, httprouter.Params, Identity) {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id Identity) {
		room, err := g.Start(nil, id, ps.ByName("code"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"room":     room,
			"question": room.CurrentQuestion,
		})
	}
}

func serveSubmitAnswer(g *Gateway) func(http.ResponseWriter, *http.Request, httprouter.Params, Identity) {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id Identity) {
		var req answerRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Answer == "" {
			writeError(w, fmt.Errorf("%w: answer is required", errBadMessage))
			return
		}

		elapsed := time.Duration(req.TimeSpent * float64(time.Second))

		res, err := g.Answer(nil, id, ps.ByName("code"), req.Answer, elapsed)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"is_correct":     res.IsCorrect,
			"points":         res.Points,
			"score":          res.Score,
			"correct_option": res.CorrectOption,
			"explanation":    res.Explanation,
		})
	}
}

// serveRoundResults shows the answers given so far this round, but only to
// a player who has already answered it.
func serveRoundResults(g *Gateway) func(http.ResponseWriter, *http.Request, httprouter.Params, Identity) {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id Identity) {
		code := ps.ByName("code")

		results, err := g.coord.RoundResults(code)
		if err != nil {
			writeError(w, err)
			return
		}

		if !slices.ContainsFunc(results, func(a games.AnswerRecord) bool { return a.PlayerID == id.ID }) {
			writeError(w, fmt.Errorf("round results in room %s before answering: %w", code, games.ErrInvalidState))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
	}
}

func serveEndRound(g *Gateway) func(http.ResponseWriter, *http.Request, httprouter.Params, Identity) {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id Identity) {
		out, err := g.EndRound(nil, id, ps.ByName("code"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "outcome": out})
	}
}

func registerAPI(cfg *Config, mux *httprouter.Router, g *Gateway, ids *Resolver) {
	api := cfg.prefix + "/api"

	mux.GET(api+"/rooms", apiHandler(cfg, ids, serveListRooms(g)))
	mux.POST(api+"/rooms", apiHandler(cfg, ids, serveCreateRoom(g)))
	mux.GET(api+"/rooms/:code", apiHandler(cfg, ids, serveGetRoom(g)))
	mux.POST(api+"/rooms/:code/join", apiHandler(cfg, ids, serveJoinRoom(g)))
	mux.POST(api+"/rooms/:code/leave", apiHandler(cfg, ids, serveLeaveRoom(g)))
	mux.POST(api+"/rooms/:code/start", apiHandler(cfg, ids, serveStartGame(g)))
	mux.POST(api+"/rooms/:code/answer", apiHandler(cfg, ids, serveSubmitAnswer(g)))
	mux.POST(api+"/rooms/:code/end-round", apiHandler(cfg, ids, serveEndRound(g)))
	mux.GET(api+"/rooms/:code/results", apiHandler(cfg, ids, serveRoundResults(g)))

	mux.GET(api+"/rooms/:code/qr", serveQR(cfg, g))
	mux.GET(api+"/rooms/:code/ws", serveWebsocket(cfg, g, ids))
	mux.GET(api+"/ws", serveWebsocket(cfg, g, ids))
}
