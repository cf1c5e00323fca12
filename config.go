/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	allowGuests  bool
	bind         string
	corsOrigins  []string
	intermission time.Duration
	jwtSecret    string
	maxPlayers   int
	natsSubject  string
	natsURL      string
	port         int
	prefix       string
	profile      bool
	questions    string
	reapInterval time.Duration
	roomTimeout  time.Duration
	roundTime    time.Duration
	tlsCert      string
	tlsKey       string
	totalRounds  int
	verbose      bool
	version      bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxPlayers < 2 {
		return fmt.Errorf("invalid max players (must be at least 2): %d", c.maxPlayers)
	}
	if c.totalRounds < 1 {
		return fmt.Errorf("invalid total rounds (must be at least 1): %d", c.totalRounds)
	}
	if c.roundTime < time.Second {
		return fmt.Errorf("invalid round time (must be at least 1s): %s", c.roundTime)
	}
	if c.intermission < 0 {
		return fmt.Errorf("invalid intermission (must not be negative): %s", c.intermission)
	}
	if c.roomTimeout <= 0 || c.reapInterval <= 0 {
		return errors.New("--room-timeout and --reap-interval must both be positive")
	}
	if !c.allowGuests && c.jwtSecret == "" {
		return errors.New("guests are disabled and no --jwt-secret was provided, so nobody could play")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) allowsOrigin(origin string) bool {
	return origin == "" || slices.Contains(c.corsOrigins, "*") || slices.Contains(c.corsOrigins, origin)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FACTBUSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "factbuster",
		Short:         "Multiplayer room server for the FactBuster trivia game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.version {
				fmt.Fprintf(cmd.OutOrStdout(), "factbuster v%s\n", releaseVersion)
				return nil
			}

			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.BoolVar(&cfg.allowGuests, "allow-guests", true, "let players without a token join under a generated guest id (env: FACTBUSTER_ALLOW_GUESTS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: FACTBUSTER_BIND)")
	fs.StringSliceVar(&cfg.corsOrigins, "cors-origin", []string{"*"}, "origins allowed to call the API and open websockets (env: FACTBUSTER_CORS_ORIGIN)")
	fs.DurationVar(&cfg.intermission, "intermission", 5*time.Second, "pause between rounds, during which no answers are accepted (env: FACTBUSTER_INTERMISSION)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "HMAC secret used to verify player tokens (env: FACTBUSTER_JWT_SECRET)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 4, "maximum players per room (env: FACTBUSTER_MAX_PLAYERS)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", "factbuster.games.finished", "subject final standings are published to (env: FACTBUSTER_NATS_SUBJECT)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "NATS server to publish final standings to (env: FACTBUSTER_NATS_URL)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: FACTBUSTER_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: FACTBUSTER_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: FACTBUSTER_PROFILE)")
	fs.StringVar(&cfg.questions, "questions", "", "YAML file to load the question bank from, instead of the built-in one (env: FACTBUSTER_QUESTIONS)")
	fs.DurationVar(&cfg.reapInterval, "reap-interval", 5*time.Minute, "how often to look for abandoned rooms (env: FACTBUSTER_REAP_INTERVAL)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 30*time.Minute, "time before rooms that never started are removed (env: FACTBUSTER_ROOM_TIMEOUT)")
	fs.DurationVar(&cfg.roundTime, "round-time", 30*time.Second, "time players have to answer each question (env: FACTBUSTER_ROUND_TIME)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: FACTBUSTER_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: FACTBUSTER_TLS_KEY)")
	fs.IntVar(&cfg.totalRounds, "total-rounds", 10, "rounds per game (env: FACTBUSTER_TOTAL_ROUNDS)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: FACTBUSTER_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: FACTBUSTER_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("factbuster v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
