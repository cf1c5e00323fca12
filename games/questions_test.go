/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const testQuestions = `
- id: 1
  question: What is the capital of France?
  options: [London, Berlin, Paris, Madrid]
  correct: Paris
  explanation: Paris is the capital of France.
- id: 2
  question: How many sides does a hexagon have?
  options: ["5", "6", "7", "8"]
  correct: "6"
  explanation: A hexagon has six sides.
`

// testBank cycles through its questions in order.
func testBank(t *testing.T) *Bank {
	t.Helper()

	b, err := LoadBank([]byte(testQuestions))
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}

	next := 0
	b.pick = func(n int) int {
		i := next % n
		next++
		return i
	}
	return b
}

func TestDefaultBank(t *testing.T) {
	b := DefaultBank()

	if b.Len() != 15 {
		t.Fatalf("default bank has %d questions, want 15", b.Len())
	}

	for _, q := range b.questions {
		if len(q.Options) != 4 {
			t.Errorf("question %d has %d options, want 4", q.ID, len(q.Options))
		}

		unique := slices.Clone(q.Options)
		slices.Sort(unique)
		if len(slices.Compact(unique)) != len(q.Options) {
			t.Errorf("question %d repeats an option: %v", q.ID, q.Options)
		}
	}
}

func TestRandomStaysInBank(t *testing.T) {
	b := DefaultBank()

	for range 200 {
		q := b.Random()
		if !slices.ContainsFunc(b.questions, func(o Question) bool { return o.ID == q.ID }) {
			t.Fatalf("Random returned question %d outside the bank", q.ID)
		}
	}
}

func TestLoadBankRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "[]", "empty"},
		{"not yaml", "{{{", "parse"},
		{"duplicate ids", "- {id: 1, question: a, options: [x, y], correct: x}\n- {id: 1, question: b, options: [x, y], correct: y}", "duplicate"},
		{"too few options", "- {id: 1, question: a, options: [x], correct: x}", "at least two"},
		{"correct not offered", "- {id: 1, question: a, options: [x, y], correct: z}", "not among"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadBank([]byte(tc.data))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("LoadBank error = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadBankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	if err := os.WriteFile(path, []byte(testQuestions), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := LoadBankFile(path)
	if err != nil {
		t.Fatalf("LoadBankFile: %v", err)
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}

	if _, err := LoadBankFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadBankFile on a missing file succeeded")
	}
}

func TestQuestionJSONHidesAnswer(t *testing.T) {
	q := testBank(t).Random()

	data, err := json.Marshal(q)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "correct") || strings.Contains(string(data), q.Explanation) {
		t.Errorf("question JSON leaks the answer: %s", data)
	}
}
