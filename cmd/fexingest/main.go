package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/quantmill/fexingest/internal/cli"
	_ "github.com/quantmill/fexingest/internal/clean" // register cleaners
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	os.Exit(cli.Execute())
}
