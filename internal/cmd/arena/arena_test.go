package arena

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("arena", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "arena.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.CleanupDelay != 20*time.Second {
		t.Fatalf("expected default cleanup delay, got %v", cfg.CleanupDelay)
	}
	if cfg.TournamentCapacity != 8 || cfg.TournamentRounds != 3 {
		t.Fatalf("expected default tournament bounds, got %d/%d", cfg.TournamentCapacity, cfg.TournamentRounds)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("GAMBIT_SPACE_ARENA_HTTP_ADDR", "env-addr")
	t.Setenv("GAMBIT_SPACE_JWT_SECRET", "env-secret")

	fs := flag.NewFlagSet("arena", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-addr",
		"-tournament-rounds", "5",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-addr" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Fatalf("expected env jwt secret, got %q", cfg.JWTSecret)
	}
	if cfg.TournamentRounds != 5 {
		t.Fatalf("expected flag rounds, got %d", cfg.TournamentRounds)
	}
}
