package main

import (
	"os"

	"github.com/eternnoir/elderlisten/cmd/elderlisten/cmd"
	"github.com/eternnoir/elderlisten/pkg/logger"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("Application execution failed")
		os.Exit(1)
	}
}
