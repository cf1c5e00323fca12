/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"time"
)

type State string

const (
	StateWaiting  State = "waiting"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

const DefaultCategory = "general-knowledge"

// Rules bound the shape of every room a registry creates.
type Rules struct {
	MaxPlayers  int
	MinPlayers  int
	TotalRounds int
}

func DefaultRules() Rules {
	return Rules{
		MaxPlayers:  4,
		MinPlayers:  2,
		TotalRounds: 10,
	}
}

// AnswerRecord is one player's answer to one round.
type AnswerRecord struct {
	PlayerID       string  `json:"player_id"`
	DisplayName    string  `json:"display_name"`
	Round          int     `json:"round"`
	QuestionID     int     `json:"question_id"`
	Question       string  `json:"question"`
	ChosenOption   string  `json:"chosen_option"`
	CorrectOption  string  `json:"correct_option"`
	IsCorrect      bool    `json:"is_correct"`
	Points         int     `json:"points"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

type Player struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	IsHost      bool           `json:"is_host"`
	Score       int            `json:"score"`
	AnswerLog   []AnswerRecord `json:"answer_log"`
}

func (p Player) clone() Player {
	p.AnswerLog = append([]AnswerRecord(nil), p.AnswerLog...)
	return p
}

// Room is a snapshot of one match. Registry and Coordinator never hand out
// the copy they mutate.
type Room struct {
	RoomCode        string    `json:"room_code"`
	HostID          string    `json:"host_id"`
	HostName        string    `json:"host_name"`
	Category        string    `json:"category"`
	MaxPlayers      int       `json:"max_players"`
	Players         []Player  `json:"players"`
	State           State     `json:"state"`
	CurrentRound    int       `json:"current_round"`
	TotalRounds     int       `json:"total_rounds"`
	CurrentQuestion *Question `json:"current_question,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	FinalStandings  []Player  `json:"final_standings,omitempty"`
	Winner          *Player   `json:"winner,omitempty"`
}

func (r *Room) clone() *Room {
	c := *r

	c.Players = make([]Player, len(r.Players))
	for i, p := range r.Players {
		c.Players[i] = p.clone()
	}

	if r.FinalStandings != nil {
		c.FinalStandings = make([]Player, len(r.FinalStandings))
		for i, p := range r.FinalStandings {
			c.FinalStandings[i] = p.clone()
		}
	}

	if r.Winner != nil {
		w := r.Winner.clone()
		c.Winner = &w
	}

	return &c
}

func (r *Room) playerIndex(id string) int {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// Player returns a copy of the player with the given id.
func (r *Room) Player(id string) (Player, bool) {
	i := r.playerIndex(id)
	if i < 0 {
		return Player{}, false
	}
	return r.Players[i].clone(), true
}

