/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Seednode/factbuster/games"
)

// GameResults is the record of a finished game handed to a ResultSink.
type GameResults struct {
	RoomCode   string     `json:"room_code"`
	Category   string     `json:"category"`
	Rounds     int        `json:"rounds"`
	FinishedAt time.Time  `json:"finished_at"`
	WinnerID   string     `json:"winner_id,omitempty"`
	Standings  []Standing `json:"standings"`
}

type Standing struct {
	Rank        int    `json:"rank"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Correct     int    `json:"correct"`
}

func newGameResults(out *games.RoundOutcome, finishedAt time.Time) GameResults {
	res := GameResults{
		RoomCode:   out.RoomCode,
		Rounds:     out.Round,
		FinishedAt: finishedAt.UTC(),
		Standings:  make([]Standing, 0, len(out.Standings)),
	}
	if out.Room != nil {
		res.Category = out.Room.Category
	}
	if out.Winner != nil {
		res.WinnerID = out.Winner.ID
	}

	for i, p := range out.Standings {
		correct := 0
		for _, a := range p.AnswerLog {
			if a.IsCorrect {
				correct++
			}
		}

		res.Standings = append(res.Standings, Standing{
			Rank:        i + 1,
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			Correct:     correct,
		})
	}

	return res
}

// ResultSink receives finished games.
type ResultSink interface {
	Publish(ctx context.Context, results GameResults) error
	Close() error
}

type logSink struct {
	cfg *Config
}

func (s logSink) Publish(_ context.Context, results GameResults) error {
	logf(s.cfg, "GAME: Room %s finished after %d rounds, winner %s", results.RoomCode, results.Rounds, results.WinnerID)

	return nil
}

func (logSink) Close() error {
	return nil
}

type natsSink struct {
	nc      *nats.Conn
	subject string
}

func newNATSSink(url, subject string) (*natsSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("factbuster"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	return &natsSink{nc: nc, subject: subject}, nil
}

func (s *natsSink) Publish(ctx context.Context, results GameResults) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}

	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish results for room %s: %w", results.RoomCode, err)
	}

	return s.nc.FlushWithContext(ctx)
}

func (s *natsSink) Close() error {
	return s.nc.Drain()
}

func newResultSink(cfg *Config) (ResultSink, error) {
	if cfg.natsURL == "" {
		return logSink{cfg: cfg}, nil
	}

	return newNATSSink(cfg.natsURL, cfg.natsSubject)
}
