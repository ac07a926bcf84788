package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"

	"github.com/osa030/podbox/internal/api/playerapi"
)

var shellCommands = []string{
	"status", "play", "toggle", "seek", "rate", "stop", "next", "prev",
	"playlist", "set-playlist", "add", "remove", "clear", "select",
	"toggle-playlist", "help", "quit",
}

// runShell reads commands line by line and runs them against client until
// EOF, "quit" or ctx is done.
func runShell(ctx context.Context, client *playerapi.PlayerServiceClient, server string) error {
	items := make([]readline.PrefixCompleterInterface, 0, len(shellCommands))
	for _, name := range shellCommands {
		items = append(items, readline.PcItem(name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "podbox> ",
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "Connected to %s. Type \"help\" for commands.\n", server)
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		args, quit := shellArgs(line)
		if quit {
			return nil
		}
		if len(args) == 0 {
			continue
		}
		if err := runLine(ctx, client, args, rl.Stdout()); err != nil {
			fmt.Fprintf(rl.Stdout(), "Error: %v\n", err)
		}
	}
	return nil
}

// shellArgs splits a shell line into command arguments.
func shellArgs(line string) (args []string, quit bool) {
	args = strings.Fields(line)
	if len(args) == 0 {
		return nil, false
	}
	switch args[0] {
	case "quit", "exit":
		return nil, true
	case "help", "?":
		return []string{"help"}, false
	}
	return args, false
}

// runLine parses args with a fresh command tree and runs the result.
// Shell and watch are not available from inside the shell.
func runLine(ctx context.Context, client *playerapi.PlayerServiceClient, args []string, out io.Writer) error {
	c := newCLI()
	c.app.Terminate(nil).UsageWriter(out).ErrorWriter(out)

	command, err := c.app.Parse(args)
	if err != nil {
		return err
	}
	switch command {
	case "", "help":
		return nil
	case c.shell.FullCommand(), c.watch.FullCommand():
		return errors.Newf("%s is not available in the shell", command)
	}
	return c.run(ctx, client, command, out)
}
