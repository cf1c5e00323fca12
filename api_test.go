/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Seednode/factbuster/games"
)

const testSecret = "correct-horse-battery-staple"

func signToken(t *testing.T, secret, sub, name string) string {
	t.Helper()

	claims := jwt.MapClaims{"name": name}
	if sub != "" {
		claims["sub"] = sub
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func newTestAPI(t *testing.T) (http.Handler, *Gateway) {
	t.Helper()

	cfg := testConfig()
	cfg.allowGuests = false
	cfg.jwtSecret = testSecret
	cfg.corsOrigins = []string{"https://play.example"}

	g, _, _ := newTestGateway(t, cfg)
	return newHandler(cfg, g), g
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s returned invalid JSON: %v", method, path, err)
		}
	}
	return rec, out
}

func TestAPIRequiresToken(t *testing.T) {
	h, _ := newTestAPI(t)

	rec, body := call(t, h, http.MethodGet, "/api/rooms", "", nil)
	if rec.Code != http.StatusUnauthorized || body["code"] != "unauthorized" {
		t.Errorf("anonymous request = %d %v, want 401 unauthorized", rec.Code, body)
	}

	forged := signToken(t, "some-other-secret", "alice", "Alice")
	if rec, _ := call(t, h, http.MethodGet, "/api/rooms", forged, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token = %d, want 401", rec.Code)
	}
}

func TestAPIRoomLifecycle(t *testing.T) {
	h, g := newTestAPI(t)
	alice := signToken(t, testSecret, "alice", "Alice")
	bob := signToken(t, testSecret, "bob", "Bob")

	rec, body := call(t, h, http.MethodPost, "/api/rooms", alice, map[string]string{"category": "science"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %v, want 201", rec.Code, body)
	}
	room := body["room"].(map[string]any)
	if room["room_code"] != testRoom || room["host_name"] != "Alice" || room["category"] != "science" {
		t.Errorf("created room = %v", room)
	}

	_, body = call(t, h, http.MethodGet, "/api/rooms", bob, nil)
	if lobby := body["games"].([]any); len(lobby) != 1 {
		t.Errorf("lobby lists %d rooms, want 1", len(lobby))
	}

	if rec, body := call(t, h, http.MethodPost, "/api/rooms/room01/join", bob, nil); rec.Code != http.StatusOK {
		t.Fatalf("join = %d %v, want 200", rec.Code, body)
	}
	if rec, _ := call(t, h, http.MethodPost, "/api/rooms/ROOM01/join", bob, nil); rec.Code != http.StatusConflict {
		t.Errorf("second join = %d, want 409", rec.Code)
	}

	if rec, _ := call(t, h, http.MethodPost, "/api/rooms/ROOM01/start", bob, nil); rec.Code != http.StatusForbidden {
		t.Errorf("start by a non-host = %d, want 403", rec.Code)
	}
	rec, body = call(t, h, http.MethodPost, "/api/rooms/ROOM01/start", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start = %d %v, want 200", rec.Code, body)
	}
	if q := body["question"].(map[string]any); q["correct"] != nil || q["question"] == "" {
		t.Errorf("start revealed or lost the question: %v", q)
	}

	correct := g.reg.GetRoom(testRoom).CurrentQuestion.CorrectOption

	rec, body = call(t, h, http.MethodPost, "/api/rooms/ROOM01/answer", alice, answerRequest{Answer: correct, TimeSpent: 2})
	if rec.Code != http.StatusOK || body["is_correct"] != true || body["points"] != float64(10) {
		t.Errorf("answer = %d %v, want 200 correct for 10 points", rec.Code, body)
	}

	if rec, body := call(t, h, http.MethodPost, "/api/rooms/ROOM01/answer", alice, answerRequest{Answer: correct}); rec.Code != http.StatusConflict || body["code"] != "already_answered" {
		t.Errorf("second answer = %d %v, want 409 already_answered", rec.Code, body)
	}
	if rec, _ := call(t, h, http.MethodPost, "/api/rooms/ROOM01/answer", bob, answerRequest{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty answer = %d, want 400", rec.Code)
	}

	if rec, _ := call(t, h, http.MethodGet, "/api/rooms/ROOM01/results", bob, nil); rec.Code != http.StatusConflict {
		t.Errorf("results before answering = %d, want 409", rec.Code)
	}
	rec, body = call(t, h, http.MethodGet, "/api/rooms/ROOM01/results", alice, nil)
	if results := body["results"].([]any); rec.Code != http.StatusOK || len(results) != 1 {
		t.Errorf("results after answering = %d %v, want alice's answer", rec.Code, body)
	}

	rec, body = call(t, h, http.MethodPost, "/api/rooms/ROOM01/end-round", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("end round = %d %v, want 200", rec.Code, body)
	}
	if out := body["outcome"].(map[string]any); out["correct_option"] != correct || out["next_round"] != float64(2) {
		t.Errorf("outcome = %v, want %q revealed and round 2 next", out, correct)
	}

	rec, body = call(t, h, http.MethodPost, "/api/rooms/ROOM01/leave", alice, nil)
	if rec.Code != http.StatusOK || body["new_host_id"] != "bob" {
		t.Errorf("leave = %d %v, want bob promoted", rec.Code, body)
	}

	if rec, _ := call(t, h, http.MethodGet, "/api/rooms/NOPE99", bob, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown room = %d, want 404", rec.Code)
	}
}

func TestAPIQRCode(t *testing.T) {
	h, g := newTestAPI(t)

	if _, err := g.Create(nil, player("alice"), ""); err != nil {
		t.Fatal(err)
	}

	rec, _ := call(t, h, http.MethodGet, "/api/rooms/ROOM01/qr", "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr = %d %s, want 200 image/png", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("qr body is not a PNG")
	}

	if rec, _ := call(t, h, http.MethodGet, "/api/rooms/NOPE99/qr", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("qr for unknown room = %d, want 404", rec.Code)
	}
}

func TestHealthAndCORS(t *testing.T) {
	h, _ := newTestAPI(t)

	rec, body := call(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || body["status"] != "ok" || body["rooms"] != float64(0) {
		t.Errorf("healthz = %d %v", rec.Code, body)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/rooms", nil)
	req.Header.Set("Origin", "https://play.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://play.example" {
		t.Errorf("preflight allowed origin %q, want https://play.example", got)
	}
}

func TestAPIGuestCannotPoseAsHost(t *testing.T) {
	cfg := testConfig()
	g, _, _ := newTestGateway(t, cfg)
	h := newHandler(cfg, g)

	send := func(method, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(http.MethodPost, "/api/rooms", nil); rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, want 201", rec.Code)
	}
	if rec := send(http.MethodPost, "/api/rooms/ROOM01/join", nil); rec.Code != http.StatusOK {
		t.Fatalf("join = %d, want 200", rec.Code)
	}

	hostID := g.reg.GetRoom(testRoom).HostID
	forged := &http.Cookie{Name: playerCookieName, Value: hostID}

	if rec := send(http.MethodPost, "/api/rooms/ROOM01/start", forged); rec.Code == http.StatusOK {
		t.Errorf("start with the host's id as a cookie = %d, want it refused", rec.Code)
	}
	if room := g.reg.GetRoom(testRoom); room.State != games.StateWaiting {
		t.Errorf("room is %s, want it still waiting", room.State)
	}
}
