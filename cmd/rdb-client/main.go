package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bingosuite/rdb/config"
	"github.com/bingosuite/rdb/pkg/client"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

var (
	configPath string
	server     string
)

var rootCmd = &cobra.Command{
	Use:          "rdb-client",
	Short:        "Attach to a running rdb session over websocket",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config/config.yml", "path to the config file")
	rootCmd.Flags().StringVar(&server, "server", "", "UI server host:port (default: ui.addr from the config)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	addr := server
	if addr == "" {
		addr = cfg.UI.Addr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
	}

	c := client.NewClient(addr, logger)
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if err := c.Run(); err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	go func() {
		for msg := range c.Events() {
			render(os.Stdout, msg)
		}
	}()

	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	fmt.Println(`Connected. Type "help" for commands.`)
	for {
		input, err := line.Prompt(fmt.Sprintf("[%s] > ", c.State()))
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		select {
		case <-c.Done():
			return fmt.Errorf("server closed the connection")
		default:
		}

		quit, err := handle(c, input)
		if err != nil {
			fmt.Println(err)
		}
		if quit {
			return nil
		}
	}
}

const help = `Commands:
  load <file> [args...]      load a program into the master
  c | s | n | o              continue, step, step over, step out
  b <file>:<line> [if cond]  set a breakpoint on every backend
  cl <file>:<line>           clear a breakpoint
  w <expr> | uw <expr>       set or clear a watch expression
  p <statement>              execute a statement in the current frame
  i <text>                   answer a pending input request
  bt | v [globals]           stack, variables
  shutdown                   stop every backend
  state | q`

func handle(c *client.Client, input string) (bool, error) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "help", "?":
		fmt.Println(help)
		return false, nil
	case "load":
		fields := strings.Fields(arg)
		if len(fields) == 0 {
			return false, fmt.Errorf("usage: load <file> [args...]")
		}
		return false, c.Load(fields[0], fields[1:], false)
	case "c", "continue":
		return false, c.Continue()
	case "s", "step":
		return false, c.Step()
	case "n", "next":
		return false, c.StepOver()
	case "o", "out":
		return false, c.StepOut()
	case "b", "break":
		location, condition, _ := strings.Cut(arg, " if ")
		file, line, err := parseLocation(location)
		if err != nil {
			return false, err
		}
		return false, c.SetBreakpoint(file, line, strings.TrimSpace(condition), false)
	case "cl", "clear":
		file, line, err := parseLocation(arg)
		if err != nil {
			return false, err
		}
		return false, c.ClearBreakpoint(file, line)
	case "w", "watch":
		return false, c.SetWatch(arg, false)
	case "uw", "unwatch":
		return false, c.ClearWatch(arg)
	case "p", "print", "exec":
		return false, c.Execute(arg)
	case "i", "input":
		return false, c.RawInput(arg)
	case "bt", "where":
		return false, c.Stack()
	case "v", "vars":
		scope := 0
		if arg == "globals" {
			scope = 1
		}
		return false, c.Variables(0, scope)
	case "shutdown":
		return false, c.Shutdown()
	case "state":
		fmt.Printf("state=%s client=%s\n", c.State(), c.ID())
		return false, nil
	case "q", "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
}

func parseLocation(arg string) (string, int, error) {
	i := strings.LastIndexByte(arg, ':')
	if i <= 0 {
		return "", 0, fmt.Errorf("usage: <file>:<line>")
	}
	line, err := strconv.Atoi(arg[i+1:])
	if err != nil || line <= 0 {
		return "", 0, fmt.Errorf("invalid line number %q", arg[i+1:])
	}
	return arg[:i], line, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
