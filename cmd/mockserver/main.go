package main

import (
	"context"
	"log"
	"os"

	"github.com/wardenhq/warden/internal/interfaces/mockserver"
)

func main() {
	// Stdout carries the console protocol, so diagnostics go to stderr
	logger := log.New(os.Stderr, "[mockserver] ", log.LstdFlags)

	srv := mockserver.New()
	if err := srv.Listen(context.Background(), os.Stdin, os.Stdout); err != nil {
		logger.Printf("Error serving console: %v", err)
		os.Exit(1)
	}
}
