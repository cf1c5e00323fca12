/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestions []byte

// Question is a multiple-choice item. CorrectOption is never serialized
// with the question itself; it travels only inside answer results.
type Question struct {
	ID            int      `json:"id" yaml:"id"`
	Text          string   `json:"question" yaml:"question"`
	Options       []string `json:"options" yaml:"options"`
	CorrectOption string   `json:"-" yaml:"correct"`
	Explanation   string   `json:"-" yaml:"explanation"`
}

// Bank is a fixed, read-only set of questions.
type Bank struct {
	questions []Question
	pick      func(n int) int
}

// DefaultBank returns the embedded general knowledge bank.
func DefaultBank() *Bank {
	b, err := LoadBank(defaultQuestions)
	if err != nil {
		panic("embedded question bank: " + err.Error())
	}
	return b
}

// LoadBankFile reads a question bank from a YAML file.
func LoadBankFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	b, err := LoadBank(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func LoadBank(data []byte) (*Bank, error) {
	var qs []Question
	if err := yaml.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if len(qs) == 0 {
		return nil, errors.New("question bank is empty")
	}

	seen := make(map[int]bool, len(qs))
	for _, q := range qs {
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		seen[q.ID] = true

		if q.Text == "" || len(q.Options) < 2 {
			return nil, fmt.Errorf("question %d needs text and at least two options", q.ID)
		}
		if !slices.Contains(q.Options, q.CorrectOption) {
			return nil, fmt.Errorf("question %d: correct option %q is not among its options", q.ID, q.CorrectOption)
		}
	}

	return &Bank{questions: qs, pick: rand.IntN}, nil
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// Random draws uniformly, with replacement.
func (b *Bank) Random() *Question {
	return &b.questions[b.pick(len(b.questions))]
}
