/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	playerCookieName = "factbuster_id"
	guestPrefix      = "guest_"
	guestIssuer      = "factbuster-guest"
	maxNameLength    = 24
)

// Identity is who a request or connection acts as.
type Identity struct {
	ID          string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Guest       bool   `json:"is_guest"`
}

// Resolver turns requests into identities. Signed tokens win over the
// guest cookie. Guest cookies are signed with guestKey, which only lives
// as long as the process, like the rooms themselves.
type Resolver struct {
	secret      []byte
	guestKey    []byte
	allowGuests bool
}

func newResolver(cfg *Config) *Resolver {
	key := make([]byte, 32)
	_, _ = rand.Read(key)

	return &Resolver{
		secret:      []byte(cfg.jwtSecret),
		guestKey:    key,
		allowGuests: cfg.allowGuests,
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	return r.URL.Query().Get("token")
}

func cleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")

	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}

	return name
}

func (res *Resolver) Resolve(w http.ResponseWriter, r *http.Request) (Identity, error) {
	if token := bearerToken(r); token != "" {
		return res.verify(token)
	}

	if !res.allowGuests {
		return Identity{}, fmt.Errorf("%w: a player token is required", errUnauthorized)
	}

	return res.guest(w, r)
}

func (res *Resolver) verify(tokenString string) (Identity, error) {
	if len(res.secret) == 0 {
		return Identity{}, fmt.Errorf("%w: token authentication is not configured", errUnauthorized)
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return res.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", errUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid claims", errUnauthorized)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", errUnauthorized)
	}

	name, _ := claims["name"].(string)
	name = cleanName(name)
	if name == "" {
		name = "Player"
	}

	return Identity{ID: sub, DisplayName: name}, nil
}

// guestID returns the id carried by a guest cookie, if it was signed by
// this resolver.
func (res *Resolver) guestID(value string) (string, bool) {
	keyFunc := func(*jwt.Token) (any, error) {
		return res.guestKey, nil
	}

	token, err := jwt.Parse(value, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(guestIssuer),
	)
	if err != nil || !token.Valid {
		return "", false
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || !strings.HasPrefix(sub, guestPrefix) {
		return "", false
	}

	return sub, true
}

func (res *Resolver) guestCookie(id string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  guestIssuer,
		Subject: id,
	}).SignedString(res.guestKey)
}

func (res *Resolver) guest(w http.ResponseWriter, r *http.Request) (Identity, error) {
	var id string

	c, err := r.Cookie(playerCookieName)
	if err == nil {
		id, _ = res.guestID(c.Value)
	}

	if id == "" {
		id = guestPrefix + uuid.NewString()

		value, err := res.guestCookie(id)
		if err != nil {
			return Identity{}, fmt.Errorf("signing guest cookie: %w", err)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     playerCookieName,
			Value:    value,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	name := cleanName(r.URL.Query().Get("name"))
	if name == "" {
		suffix := strings.ReplaceAll(strings.TrimPrefix(id, guestPrefix), "-", "")
		name = "Guest-" + strings.ToUpper(suffix[:min(4, len(suffix))])
	}

	return Identity{ID: id, DisplayName: name, Guest: true}, nil
}
