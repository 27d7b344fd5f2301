package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Defaults for the environment contract.
const (
	DefaultRegion    = "us-east-1"
	DefaultRoleName  = "LabRole"
	DefaultStatePath = ".stockpile/state.json"
	DefaultLambdaDir = "lambdas"
	DefaultWebDir    = "web"
	DefaultDataDir   = "data"
)

// Config carries every knob the engine and providers need. It is built
// once in the CLI layer and passed down explicitly; nothing below reads
// the environment on its own.
type Config struct {
	Region      string
	NotifyEmail string // empty means skip the alert subscription
	RoleName    string
	StatePath   string
	LambdaDir   string
	WebDir      string
	DataDir     string
}

// Load builds the configuration from an optional .env file and the
// process environment. A missing .env file is fine; variables already
// set in the environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	return Config{
		Region:      envOr("AWS_DEFAULT_REGION", DefaultRegion),
		NotifyEmail: os.Getenv("NOTIFY_EMAIL"),
		RoleName:    envOr("ROLE_NAME", DefaultRoleName),
		StatePath:   envOr("STATE_PATH", DefaultStatePath),
		LambdaDir:   envOr("LAMBDA_DIR", DefaultLambdaDir),
		WebDir:      envOr("WEB_DIR", DefaultWebDir),
		DataDir:     envOr("DATA_DIR", DefaultDataDir),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
