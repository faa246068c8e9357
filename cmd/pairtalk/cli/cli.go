// Package cli is a minimal subcommand tree over the flag package.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// PositionalArgs validates the arguments left after flag parsing.
type PositionalArgs func(args []string) error

func MinArgs(n int) PositionalArgs {
	return func(args []string) error {
		if len(args) < n {
			return fmt.Errorf("requires at least %d argument(s), got %d", n, len(args))
		}
		return nil
	}
}

func MaxArgs(n int) PositionalArgs {
	return func(args []string) error {
		if len(args) > n {
			return fmt.Errorf("accepts at most %d argument(s), got %d", n, len(args))
		}
		return nil
	}
}

func ExactArgs(n int) PositionalArgs {
	return func(args []string) error {
		if len(args) != n {
			return fmt.Errorf("requires exactly %d argument(s), got %d", n, len(args))
		}
		return nil
	}
}

type Command struct {
	// Usage is the one-line usage message. Its first word is the command name.
	Usage string
	Short string
	Long  string

	Args PositionalArgs
	Run  func(ctx context.Context, args []string)

	commands []*Command
	flags    *flag.FlagSet
}

func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// Flags returns the command's flag set, created on first use.
func (c *Command) Flags() *flag.FlagSet {
	if c.flags == nil {
		c.flags = flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.flags.Usage = func() {
			c.PrintUsage(c.flags.Output())
		}
	}
	return c.flags
}

func (c *Command) AddCommand(sub *Command) {
	c.commands = append(c.commands, sub)
}

func (c *Command) PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s\n", c.Usage)
	if c.Long != "" {
		fmt.Fprintf(w, "\n%s\n", c.Long)
	} else if c.Short != "" {
		fmt.Fprintf(w, "\n%s\n", c.Short)
	}
	if len(c.commands) > 0 {
		fmt.Fprintln(w, "\nCommands:")
		for _, sub := range c.commands {
			fmt.Fprintf(w, "  %-10s %s\n", sub.Name(), sub.Short)
		}
	}
	if c.flags != nil {
		fmt.Fprintln(w, "\nFlags:")
		c.flags.SetOutput(w)
		c.flags.PrintDefaults()
	}
}

// ErrUsage is returned by Execute when the arguments select no command.
var ErrUsage = errors.New("invalid usage")

// Execute finds the subcommand of root named by args, parses its flags and
// runs it.
func Execute(ctx context.Context, root *Command, args []string) error {
	cmd := root
	for len(args) > 0 && len(cmd.commands) > 0 {
		var found *Command
		for _, sub := range cmd.commands {
			if sub.Name() == args[0] {
				found = sub
			}
		}
		if found == nil {
			break
		}
		cmd, args = found, args[1:]
	}

	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	args = cmd.Flags().Args()

	if cmd.Run == nil {
		cmd.PrintUsage(os.Stderr)
		return ErrUsage
	}
	if cmd.Args != nil {
		if err := cmd.Args(args); err != nil {
			cmd.PrintUsage(os.Stderr)
			return err
		}
	}
	cmd.Run(ctx, args)
	return nil
}
