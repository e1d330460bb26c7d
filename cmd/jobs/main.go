package main

import (
	"log"
	"os"

	"nostr-jobs/pkg/relay"
)

func main() {
	logger := log.New(os.Stderr, "[jobs] ", log.LstdFlags)
	if err := newRootCmd(logger, relay.NewClient).Execute(); err != nil {
		os.Exit(1)
	}
}
