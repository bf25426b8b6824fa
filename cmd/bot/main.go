package main

import (
	"log"

	"quizbot/core/cmd"
)

func main() {
	if err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
	}); err != nil {
		log.Fatalf("bot exited: %v", err)
	}
}
