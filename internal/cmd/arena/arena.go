// Package arena parses arena command flags and composes the service
// entrypoint.
package arena

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/gambit.space/internal/platform/cmd"
	"github.com/louisbranch/gambit.space/internal/platform/config"
	server "github.com/louisbranch/gambit.space/internal/services/arena/app"
)

// Config holds arena command configuration.
type Config struct {
	HTTPAddr           string        `env:"GAMBIT_SPACE_ARENA_HTTP_ADDR"     envDefault:":8080"`
	DBPath             string        `env:"GAMBIT_SPACE_ARENA_DB_PATH"       envDefault:"arena.db"`
	JWTSecret          string        `env:"GAMBIT_SPACE_JWT_SECRET"`
	CleanupDelay       time.Duration `env:"GAMBIT_SPACE_ARENA_CLEANUP_DELAY" envDefault:"20s"`
	TournamentCapacity int           `env:"GAMBIT_SPACE_TOURNAMENT_CAPACITY" envDefault:"8"`
	TournamentRounds   int           `env:"GAMBIT_SPACE_TOURNAMENT_ROUNDS"   envDefault:"3"`
}

// ParseConfig parses an optional .env file, environment, and flags
// into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "arena HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "arena SQLite database path")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "secret for signing auth tokens")
	fs.DurationVar(&cfg.CleanupDelay, "cleanup-delay", cfg.CleanupDelay, "delay before finished sessions are removed")
	fs.IntVar(&cfg.TournamentCapacity, "tournament-capacity", cfg.TournamentCapacity, "maximum tournament entrants")
	fs.IntVar(&cfg.TournamentRounds, "tournament-rounds", cfg.TournamentRounds, "number of tournament rounds")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the arena app and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceArena, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:           cfg.HTTPAddr,
			DBPath:             cfg.DBPath,
			JWTSecret:          cfg.JWTSecret,
			CleanupDelay:       cfg.CleanupDelay,
			TournamentCapacity: cfg.TournamentCapacity,
			TournamentRounds:   cfg.TournamentRounds,
		}); err != nil {
			return fmt.Errorf("serve arena: %w", err)
		}
		return nil
	})
}
