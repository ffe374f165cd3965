package config

import (
	"os"

	"github.com/joho/godotenv"
)

// dotEnvCandidates lists .env files in priority order for the given APP_ENV
func dotEnvCandidates(env string) []string {
	files := []string{".env.local"}
	if env != "" && env != "local" {
		files = append(files, ".env."+env)
	}
	return append(files, ".env")
}

// LoadDotEnv loads .env.local, then .env.<APP_ENV>, then .env.
// godotenv never overwrites a variable that is already set, so the process
// environment wins and earlier files win over later ones.
// Returns the files actually loaded.
func LoadDotEnv() []string {
	var loaded []string
	for _, f := range dotEnvCandidates(os.Getenv("APP_ENV")) {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
