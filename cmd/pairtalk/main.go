package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/progrium/pairtalk/cmd/pairtalk/cli"
)

func main() {
	root := &cli.Command{
		Usage: "pairtalk",
		Long:  `pairtalk exchanges text messages and files with one peer at a time`,
	}

	root.AddCommand(listenCmd)
	root.AddCommand(connectCmd)
	root.AddCommand(journalCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, root, os.Args[1:]); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
