package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/progrium/pairtalk/cmd/pairtalk/cli"
	"github.com/progrium/pairtalk/journal"
)

var journalCmd = &cli.Command{
	Usage: "journal [-format json|cbor] <file>",
	Short: "print a recorded event journal",
	Args:  cli.ExactArgs(1),
}

func init() {
	format := journalCmd.Flags().String("format", "json", "journal encoding")
	journalCmd.Run = func(ctx context.Context, args []string) {
		f, err := os.Open(args[0])
		fatal(err)
		defer f.Close()

		records, err := journal.Read(f, *format)
		for _, r := range records {
			fmt.Println(formatRecord(r))
		}
		fatal(err)
	}
}

func formatRecord(r journal.Record) string {
	line := fmt.Sprintf("%s %s %-14s", r.Time.Format(time.RFC3339), r.Session, r.Type)
	switch {
	case r.Text != "":
		line += " " + r.Text
	case r.Endpoint != "":
		line += " " + r.Endpoint
	case r.Name != "":
		line += fmt.Sprintf(" %s %d bytes", r.Name, r.TotalBytes)
		if r.Path != "" {
			line += " -> " + r.Path
		}
	}
	if r.Error != "" {
		line += " error: " + r.Error
	}
	return line
}
