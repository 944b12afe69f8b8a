package main

import (
	"os"

	"github.com/agentuity/session-reaper/config"
	"github.com/agentuity/session-reaper/logger"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		logger.NewConsoleLogger(config.LogLevel(root)).Error("%s", err)
		os.Exit(1)
	}
}
