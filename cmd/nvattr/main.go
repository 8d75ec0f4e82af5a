// nvattr manages an attribute store laid out on a simulated non-volatile
// memory image.
//
// Usage:
//
//	nvattr [--config path] <command> [flags]
//
// Commands: format, set, get, list, verify, stat, snapshot, restore, ecc-demo.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/INLOpen/nvattr/config"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/trace"
)

// command is one subcommand. run receives the arguments after its name.
type command struct {
	summary string
	run     func(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]command{
	"format":   {"erase the medium and lay out an empty directory", runFormat},
	"set":      {"store a value under an attribute id", runSet},
	"get":      {"print the value stored under an attribute id", runGet},
	"list":     {"list written attribute ids and their lengths", runList},
	"verify":   {"check every directory record and value", runVerify},
	"stat":     {"print space usage", runStat},
	"snapshot": {"export the medium image", runSnapshot},
	"restore":  {"replace the medium image from a snapshot", runRestore},
	"ecc-demo": {"flip random bits in random messages and correct them", runECCDemo},
}

// environment is what every command gets from the global flags and config.
type environment struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
	tracer trace.Tracer
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("nvattr", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	configPath := flagSet.String("config", "nvattr.yaml", "path to the configuration file")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return fmt.Errorf("no command given")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		printUsage(stderr, flagSet)
		return fmt.Errorf("unknown command %q", rest[0])
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration %s: %w", *configPath, err)
	}

	logger, logCloser, err := createLogger(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	tp, shutdown, err := initTracerProvider(cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	env := &environment{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr, tracer: tp.Tracer("nvattr/store")}
	return cmd.run(ctx, env, rest[1:])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: nvattr [--config path] <command> [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nGlobal flags:\n%s", flagSet.FlagUsages())
}
