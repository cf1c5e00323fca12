/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/Seednode/factbuster/games"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

func serveText(cfg *Config, what, body string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte(body))
		if err != nil {
			logErr(err, "unable to write "+what)
			return
		}

		logf(cfg, "SERVE: %s (%s) to %s in %s",
			what,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, g *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(cfg, w)

		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"rooms":  g.reg.Len(),
		})
	}
}

func loadBank(cfg *Config) (*games.Bank, error) {
	if cfg.questions == "" {
		return games.DefaultBank(), nil
	}

	return games.LoadBankFile(cfg.questions)
}

// newHandler builds the full router around g.
func newHandler(cfg *Config, g *Gateway) http.Handler {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		logErr(fmt.Errorf("%v", i), "panic while serving "+r.URL.Path)

		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"code":    "internal",
			"message": "An error has occurred. Please try again.",
		})
	}

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, g))
	mux.GET(cfg.prefix+"/robots.txt", serveText(cfg, "Robots", "User-agent: *\nDisallow: /\n"))
	mux.GET(cfg.prefix+"/version", serveText(cfg, "Version page", "factbuster v"+releaseVersion+"\n"))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	registerAPI(cfg, mux, g, newResolver(cfg))

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logger := setupLogging(cfg, nil)

	logf(cfg, "START: factbuster v%s", releaseVersion)

	bank, err := loadBank(cfg)
	if err != nil {
		return err
	}

	sink, err := newResultSink(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	clock := clockwork.NewRealClock()

	reg := games.NewRegistry(
		games.WithRules(games.Rules{
			MaxPlayers:  cfg.maxPlayers,
			MinPlayers:  games.DefaultRules().MinPlayers,
			TotalRounds: cfg.totalRounds,
		}),
		games.WithClock(clock),
		games.WithLogger(logger.With().Str("component", "games").Logger()),
	)

	g := NewGateway(ctx, cfg, games.NewCoordinator(reg, bank), clock, sink)
	defer g.Shutdown()

	go g.reaperLoop(ctx)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newHandler(cfg, g),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	go func() {
		var err error

		logf(cfg, "SERVE: Listening on %s://%s%s/ with %d questions", cfg.scheme(), srv.Addr, cfg.prefix, bank.Len())

		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logErr(err, "server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
