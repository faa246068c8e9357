package main

import (
	"context"
	"errors"
	"os"

	"github.com/avast/retry-go"

	"github.com/progrium/pairtalk/cmd/pairtalk/cli"
	"github.com/progrium/pairtalk/manager"
	"github.com/progrium/pairtalk/session"
	"github.com/progrium/pairtalk/transport"
)

var connectCmd = &cli.Command{
	Usage: "connect [-config file] [-attempts n] [-name name] <scheme://addr>",
	Short: "connect to a peer and chat with it",
	Args:  cli.ExactArgs(1),
}

func init() {
	fs := connectCmd.Flags()
	configPath := configFlag(fs)
	attempts := fs.Uint("attempts", 0, "connect attempts, overriding the config file")
	name := fs.String("name", "", "display name of the peer")

	connectCmd.Run = func(ctx context.Context, args []string) {
		e, err := setup(*configPath)
		fatal(err)
		defer e.Close()
		if *attempts > 0 {
			e.cfg.Connect.Attempts = *attempts
		}

		m, err := e.manager("")
		fatal(err)
		defer m.Close()
		e.print(os.Stdout)

		ep := transport.Endpoint{Address: args[0], Name: *name}
		s, err := connect(ctx, m, ep, e.cfg.Connect.Attempts, e)
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

// connect retries ConnectTo while the endpoint is unreachable.
func connect(ctx context.Context, m *manager.Manager, ep transport.Endpoint, attempts uint, e *env) (*session.Session, error) {
	var s *session.Session
	err := retry.Do(func() error {
		var err error
		s, err = m.ConnectTo(ctx, ep).Wait()
		return err
	},
		retry.Attempts(max(attempts, 1)),
		retry.Delay(e.cfg.Connect.Delay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, manager.ErrTransportUnavailable)
		}),
		retry.OnRetry(func(n uint, err error) {
			e.log.WithError(err).Warnf("connect attempt %d failed", n+1)
		}),
	)
	return s, err
}
