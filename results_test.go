/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Seednode/factbuster/games"
)

func TestNewGameResults(t *testing.T) {
	finished := time.Date(2026, 3, 4, 12, 30, 0, 0, time.FixedZone("CET", 3600))

	bea := games.Player{ID: "bea", DisplayName: "Bea", Score: 19, AnswerLog: []games.AnswerRecord{
		{Round: 1, IsCorrect: true, Points: 10},
		{Round: 2, IsCorrect: true, Points: 9},
	}}
	abe := games.Player{ID: "abe", DisplayName: "Abe", IsHost: true, Score: 10, AnswerLog: []games.AnswerRecord{
		{Round: 1, IsCorrect: true, Points: 10},
		{Round: 2, IsCorrect: false},
	}}

	out := &games.RoundOutcome{
		RoomCode:     testRoom,
		Round:        2,
		GameFinished: true,
		Standings:    []games.Player{bea, abe},
		Winner:       &bea,
		Room:         &games.Room{RoomCode: testRoom, Category: "history"},
	}

	want := GameResults{
		RoomCode:   testRoom,
		Category:   "history",
		Rounds:     2,
		FinishedAt: finished.UTC(),
		WinnerID:   "bea",
		Standings: []Standing{
			{Rank: 1, PlayerID: "bea", DisplayName: "Bea", Score: 19, Correct: 2},
			{Rank: 2, PlayerID: "abe", DisplayName: "Abe", Score: 10, Correct: 1},
		},
	}

	if diff := cmp.Diff(want, newGameResults(out, finished)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestResultSinkSelection(t *testing.T) {
	sink, err := newResultSink(&Config{})
	if err != nil {
		t.Fatalf("newResultSink: %v", err)
	}
	if _, ok := sink.(logSink); !ok {
		t.Errorf("sink without a nats url is %T, want logSink", sink)
	}

	if _, err := newResultSink(&Config{natsURL: "nats://127.0.0.1:1", natsSubject: "x"}); err == nil {
		t.Error("connecting to a closed port succeeded")
	}
}
