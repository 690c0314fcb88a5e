package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/bingosuite/rdb/config"
	"github.com/bingosuite/rdb/internal/backend"
	"github.com/bingosuite/rdb/internal/script"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configPath string
	host       string
	port       int
	role       string
	passive    bool
	file       string
	local      bool
)

var rootCmd = &cobra.Command{
	Use:   "rdb-backend [flags] [-- args...]",
	Short: "Run a script under the rdb debugger",
	Long: `rdb-backend connects back to the IDE at --host/--port and serves its
commands. With --local the script runs on this terminal without an IDE.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	cfg := config.Default()
	addrHost, addrPort, _ := net.SplitHostPort(cfg.Server.Addr)
	defaultPort, _ := strconv.Atoi(addrPort)

	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "config/config.yml", "path to the config file")
	flags.StringVar(&host, "host", addrHost, "IDE host")
	flags.IntVar(&port, "port", defaultPort, "IDE port")
	flags.StringVar(&role, "role", backend.RoleMain, "role announced to the IDE (main or child)")
	flags.BoolVar(&passive, "passive", false, "run --file right away instead of waiting for the IDE")
	flags.StringVar(&file, "file", "", "script to run")
	flags.BoolVar(&local, "local", false, "run --file without an IDE")
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

	rt, err := script.New()
	if err != nil {
		return err
	}

	if local {
		if file == "" {
			return fmt.Errorf("--local needs --file")
		}
		l := &backend.Local{
			Runtime: rt,
			Stdin:   os.Stdin,
			Stdout:  os.Stdout,
			Stderr:  os.Stderr,
			Spawn:   func(child string) error { return backend.SpawnLocal(child, logger) },
		}
		return l.Run(file, args)
	}

	if role != backend.RoleMain && role != backend.RoleChild {
		return fmt.Errorf("unknown role %q", role)
	}

	opts := backend.OptionsFromConfig(cfg)
	opts.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	opts.Role = role
	opts.Passive = passive
	opts.File = file
	opts.Args = args
	opts.Runtime = rt
	opts.Version = version
	opts.Logger = logger

	agent, err := backend.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()
	return agent.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
