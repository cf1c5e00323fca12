/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const (
	basePoints = 10
	minPoints  = 1
	decayEvery = 10 * time.Second
)

// Points scores one answer: 10 points, minus one for every full ten
// seconds taken, never below one for a correct answer.
func Points(correct bool, elapsed time.Duration) int {
	if !correct {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return max(basePoints-int(elapsed/decayEvery), minPoints)
}

type AnswerResult struct {
	Record        AnswerRecord `json:"record"`
	IsCorrect     bool         `json:"is_correct"`
	Points        int          `json:"points"`
	Score         int          `json:"score"`
	CorrectOption string       `json:"correct_option"`
	Explanation   string       `json:"explanation"`
}

type RoundOutcome struct {
	RoomCode      string         `json:"room_code"`
	Round         int            `json:"round"`
	Question      *Question      `json:"question,omitempty"`
	CorrectOption string         `json:"correct_option,omitempty"`
	Explanation   string         `json:"explanation,omitempty"`
	Results       []AnswerRecord `json:"results"`
	GameFinished  bool           `json:"game_finished"`
	NextRound     int            `json:"next_round,omitempty"`
	NextQuestion  *Question      `json:"next_question,omitempty"`
	Standings     []Player       `json:"standings,omitempty"`
	Winner        *Player        `json:"winner,omitempty"`
	Room          *Room          `json:"room"`
}

// Coordinator drives rooms through waiting, playing and finished.
type Coordinator struct {
	reg  *Registry
	bank *Bank
	log  zerolog.Logger
}

func NewCoordinator(reg *Registry, bank *Bank) *Coordinator {
	return &Coordinator{
		reg:  reg,
		bank: bank,
		log:  reg.log,
	}
}

func (c *Coordinator) Registry() *Registry {
	return c.reg
}

func (c *Coordinator) StartGame(code, requesterID string) (*Room, *Question, error) {
	var (
		snapshot *Room
		question *Question
	)

	err := c.reg.withRoom(code, func(e *entry) error {
		room := e.room

		switch {
		case requesterID != room.HostID:
			return fmt.Errorf("start room %s: %w", room.RoomCode, ErrForbidden)
		case room.State != StateWaiting:
			return fmt.Errorf("start room %s while %s: %w", room.RoomCode, room.State, ErrInvalidState)
		case len(room.Players) < c.reg.rules.MinPlayers:
			return fmt.Errorf("start room %s with %d players: %w", room.RoomCode, len(room.Players), ErrNotEnoughPlayers)
		}

		question = c.bank.Random()

		room.State = StatePlaying
		room.CurrentRound = 1
		room.CurrentQuestion = question
		e.round = nil

		c.log.Info().
			Str("room", room.RoomCode).
			Int("players", len(room.Players)).
			Msg("game started")

		snapshot = room.clone()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return snapshot, question, nil
}

func (c *Coordinator) SubmitAnswer(code, playerID, option string, elapsed time.Duration) (*AnswerResult, error) {
	var result *AnswerResult

	err := c.reg.withRoom(code, func(e *entry) error {
		room := e.room

		i := room.playerIndex(playerID)
		switch {
		case i < 0:
			return fmt.Errorf("player %s in room %s: %w", playerID, room.RoomCode, ErrNotFound)
		case room.State != StatePlaying:
			return fmt.Errorf("answer in room %s while %s: %w", room.RoomCode, room.State, ErrInvalidState)
		case room.CurrentQuestion == nil:
			return fmt.Errorf("room %s: %w", room.RoomCode, ErrNoActiveQuestion)
		case e.answered(playerID):
			return fmt.Errorf("player %s round %d: %w", playerID, room.CurrentRound, ErrAlreadyAnswered)
		}

		if elapsed < 0 {
			elapsed = 0
		}

		q := room.CurrentQuestion
		correct := option == q.CorrectOption
		points := Points(correct, elapsed)

		player := &room.Players[i]
		record := AnswerRecord{
			PlayerID:       player.ID,
			DisplayName:    player.DisplayName,
			Round:          room.CurrentRound,
			QuestionID:     q.ID,
			Question:       q.Text,
			ChosenOption:   option,
			CorrectOption:  q.CorrectOption,
			IsCorrect:      correct,
			Points:         points,
			ElapsedSeconds: elapsed.Seconds(),
		}

		player.Score += points
		player.AnswerLog = append(player.AnswerLog, record)
		e.round = append(e.round, record)

		c.log.Debug().
			Str("room", room.RoomCode).
			Str("player", player.DisplayName).
			Int("round", room.CurrentRound).
			Bool("correct", correct).
			Int("points", points).
			Msg("answer submitted")

		result = &AnswerResult{
			Record:        record,
			IsCorrect:     correct,
			Points:        points,
			Score:         player.Score,
			CorrectOption: q.CorrectOption,
			Explanation:   q.Explanation,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// EndRound ends the current round on behalf of the host.
func (c *Coordinator) EndRound(code, requesterID string) (*RoundOutcome, error) {
	var outcome *RoundOutcome

	err := c.reg.withRoom(code, func(e *entry) error {
		room := e.room

		switch {
		case requesterID != room.HostID:
			return fmt.Errorf("end round in room %s: %w", room.RoomCode, ErrForbidden)
		case room.State != StatePlaying:
			return fmt.Errorf("end round in room %s while %s: %w", room.RoomCode, room.State, ErrInvalidState)
		}

		outcome = c.endRoundLocked(e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

// EndRoundIfCurrent ends round only if it is still the room's current
// round. It reports false, without error, when someone else already ended
// it; whichever caller gets there first wins.
func (c *Coordinator) EndRoundIfCurrent(code string, round int) (*RoundOutcome, bool, error) {
	var outcome *RoundOutcome

	err := c.reg.withRoom(code, func(e *entry) error {
		if e.room.State != StatePlaying || e.room.CurrentRound != round {
			return nil
		}

		outcome = c.endRoundLocked(e)
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return outcome, outcome != nil, nil
}

func (c *Coordinator) endRoundLocked(e *entry) *RoundOutcome {
	room := e.room

	out := &RoundOutcome{
		RoomCode: room.RoomCode,
		Round:    room.CurrentRound,
		Question: room.CurrentQuestion,
		Results:  slices.Clone(e.round),
	}
	if out.Results == nil {
		out.Results = []AnswerRecord{}
	}
	if q := room.CurrentQuestion; q != nil {
		out.CorrectOption = q.CorrectOption
		out.Explanation = q.Explanation
	}

	e.round = nil

	if room.CurrentRound+1 > room.TotalRounds {
		standings := make([]Player, len(room.Players))
		for i, p := range room.Players {
			standings[i] = p.clone()
		}
		sort.SliceStable(standings, func(i, j int) bool {
			return standings[i].Score > standings[j].Score
		})

		room.State = StateFinished
		room.CurrentQuestion = nil
		room.FinalStandings = standings
		if len(standings) > 0 {
			winner := standings[0].clone()
			room.Winner = &winner
		}

		out.GameFinished = true
		out.Standings = room.clone().FinalStandings
		if room.Winner != nil {
			w := room.Winner.clone()
			out.Winner = &w
		}

		c.log.Info().
			Str("room", room.RoomCode).
			Int("rounds", room.TotalRounds).
			Str("winner", room.Winner.DisplayName).
			Msg("game finished")
	} else {
		room.CurrentRound++
		room.CurrentQuestion = c.bank.Random()

		out.NextRound = room.CurrentRound
		out.NextQuestion = room.CurrentQuestion

		c.log.Debug().
			Str("room", room.RoomCode).
			Int("round", room.CurrentRound).
			Msg("round advanced")
	}

	out.Room = room.clone()
	return out
}

// AllAnswered reports whether every player currently in the room has
// answered the current round.
func (c *Coordinator) AllAnswered(code string) (bool, error) {
	var all bool

	err := c.reg.withRoom(code, func(e *entry) error {
		if e.room.State != StatePlaying || e.room.CurrentQuestion == nil {
			return nil
		}

		for _, p := range e.room.Players {
			if !e.answered(p.ID) {
				return nil
			}
		}
		all = true
		return nil
	})

	return all, err
}

// RoundResults returns the answers collected so far in the current round.
func (c *Coordinator) RoundResults(code string) ([]AnswerRecord, error) {
	var results []AnswerRecord

	err := c.reg.withRoom(code, func(e *entry) error {
		results = slices.Clone(e.round)
		return nil
	})

	return results, err
}
