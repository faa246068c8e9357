package main

import (
	"context"
	"os"

	"github.com/progrium/pairtalk/cmd/pairtalk/cli"
)

var listenCmd = &cli.Command{
	Usage: "listen [-config file] [scheme://addr]",
	Short: "wait for one peer and chat with it",
	Args:  cli.MaxArgs(1),
}

func init() {
	configPath := configFlag(listenCmd.Flags())
	listenCmd.Run = func(ctx context.Context, args []string) {
		e, err := setup(*configPath)
		fatal(err)
		defer e.Close()

		addr := e.cfg.Listen
		if len(args) > 0 {
			addr = args[0]
		}
		m, err := e.manager(addr)
		fatal(err)
		defer m.Close()
		e.print(os.Stdout)

		s, err := m.ListenAndAcceptOnce(ctx).Wait()
		if err != nil {
			e.log.Error(err)
			return
		}
		stop := context.AfterFunc(ctx, func() {
			s.Close()
		})
		defer stop()
		if err := chat(s, os.Stdin, os.Stdout); err != nil {
			e.log.Error(err)
		}
		s.Wait()
	}
}
