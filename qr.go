/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/factbuster/games"
)

const qrSize = 320

// roomURL is the address a scanned QR code leads to: the room itself,
// derived from the QR code's own URL.
func roomURL(cfg *Config, r *http.Request) string {
	scheme := cfg.scheme()
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")
}

// serveQR renders a PNG QR code for sharing a room.
func serveQR(cfg *Config, g *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		code := ps.ByName("code")
		if g.reg.GetRoom(code) == nil {
			writeError(w, fmt.Errorf("room %s: %w", code, games.ErrNotFound))
			return
		}

		png, err := qrcode.Encode(roomURL(cfg, r), qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, fmt.Errorf("generate qr code for room %s: %w", code, err))
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			logErr(err, "unable to write qr code")
			return
		}

		logf(cfg, "SERVE: QR code for %s (%s) to %s in %s",
			code,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
