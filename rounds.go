/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Seednode/factbuster/games"
)

// roundClock is the timer currently running for a room: either the
// countdown of round, or the intermission before it.
type roundClock struct {
	round        int
	intermission bool
	cancel       context.CancelFunc
}

func (g *Gateway) stopRoundLocked(code string) {
	if rc := g.rounds[code]; rc != nil {
		rc.cancel()
		delete(g.rounds, code)
	}
}

func (g *Gateway) inIntermissionLocked(code string) bool {
	rc := g.rounds[code]
	return rc != nil && rc.intermission
}

// startRoundLocked replaces whatever clock the room had with a countdown
// for round.
func (g *Gateway) startRoundLocked(code string, round int) {
	g.stopRoundLocked(code)

	ctx, cancel := context.WithCancel(g.ctx)
	g.rounds[code] = &roundClock{round: round, cancel: cancel}

	deadline := g.clock.Now().Add(g.cfg.roundTime)
	ticker := g.clock.NewTicker(time.Second)

	go g.countdown(ctx, code, round, deadline, ticker)
}

func (g *Gateway) countdown(ctx context.Context, code string, round int, deadline time.Time, ticker clockwork.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		remaining := deadline.Sub(g.clock.Now())

		g.mu.Lock()
		if ctx.Err() != nil {
			g.mu.Unlock()
			return
		}

		if remaining <= 0 {
			g.finishRoundLocked(code, round)
			g.mu.Unlock()
			return
		}

		g.broadcastLocked(code, TimeRemainingMessage{
			Type:    "time_remaining",
			Round:   round,
			Seconds: int(math.Ceil(remaining.Seconds())),
		}, "")
		g.mu.Unlock()
	}
}

func (g *Gateway) finishRoundLocked(code string, round int) {
	out, ok, err := g.coord.EndRoundIfCurrent(code, round)
	if err != nil || !ok {
		return
	}

	g.afterRoundLocked(out)
}

func (g *Gateway) finishIfAnsweredLocked(code string, round int) {
	all, err := g.coord.AllAnswered(code)
	if err != nil || !all {
		return
	}

	g.finishRoundLocked(code, round)
}

func (g *Gateway) afterRoundLocked(out *games.RoundOutcome) {
	code := out.RoomCode

	g.stopRoundLocked(code)
	if !out.GameFinished {
		g.intermissionLocked(code, out.NextRound)
	}

	g.broadcastLocked(code, RoundFinishedMessage{Type: "round_finished", RoundOutcome: out}, "")

	if out.GameFinished {
		winner := "nobody"
		if out.Winner != nil {
			winner = out.Winner.DisplayName
		}
		logf(g.cfg, "GAME: %s finished, won by %s", code, winner)

		go g.publish(newGameResults(out, g.clock.Now()))
	}
}

// intermissionLocked pauses before round begins. Answers are refused
// until it does.
func (g *Gateway) intermissionLocked(code string, round int) {
	ctx, cancel := context.WithCancel(g.ctx)
	rc := &roundClock{round: round, intermission: true}

	timer := g.clock.AfterFunc(g.cfg.intermission, func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		if ctx.Err() != nil || g.rounds[code] != rc {
			return
		}

		room := g.reg.GetRoom(code)
		if room == nil || room.State != games.StatePlaying || room.CurrentRound != round {
			g.stopRoundLocked(code)
			return
		}

		g.startRoundLocked(code, round)
		g.broadcastLocked(code, RoundStartedMessage{
			Type:        "round_started",
			Round:       round,
			TotalRounds: room.TotalRounds,
			TimeLimit:   int(g.cfg.roundTime / time.Second),
			Question:    room.CurrentQuestion,
		}, "")
	})

	rc.cancel = func() {
		cancel()
		timer.Stop()
	}
	g.rounds[code] = rc
}

func (g *Gateway) publish(results GameResults) {
	ctx, cancel := context.WithTimeout(g.ctx, publishTimeout)
	defer cancel()

	if err := g.sink.Publish(ctx, results); err != nil {
		logErr(err, "unable to publish game results")
	}
}
