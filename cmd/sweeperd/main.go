package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"sweeper/internal/daemonrun"
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	if opts.version {
		fmt.Println("sweeperd", daemonrun.Version)
		return
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatal(err)
	}
	if err := daemonrun.Run(context.Background(), cfg, runOptions(opts)); err != nil {
		log.Fatalf("sweeperd: %v", err)
	}
}
