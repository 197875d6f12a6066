package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jllopis/gnosis/pkg/config"
	"github.com/jllopis/gnosis/pkg/telemetry"
)

const appVersion = "0.1.0"

type globalFlags struct {
	ConfigArgs []string
	LogLevel   string
	LogFormat  string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		fatal(err)
	}

	level := cfg.Log.Level
	if global.LogLevel != "" {
		level = global.LogLevel
	}
	format := cfg.Log.Format
	if global.LogFormat != "" {
		format = global.LogFormat
	}
	telemetry.ConfigureSlog(os.Stderr, level, format)

	switch args[0] {
	case "serve":
		runServe(ctx, global, cfg, args[1:])
	case "ingest":
		runIngest(ctx, global, cfg, args[1:])
	case "query":
		runQuery(ctx, global, cfg, args[1:])
	case "mcp":
		ensureNoArgs(args[1:])
		runMCP(ctx, cfg)
	case "version":
		printVersion()
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config" || arg == "-c":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.ConfigArgs = append(flags.ConfigArgs, "--config", args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--profile":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --profile")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, "--profile", args[i+1])
			i++
		case strings.HasPrefix(arg, "--profile="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, "--set", args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--log-level":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --log-level")
			}
			flags.LogLevel = args[i+1]
			i++
		case strings.HasPrefix(arg, "--log-level="):
			flags.LogLevel = strings.TrimPrefix(arg, "--log-level=")
		case arg == "--log-format":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --log-format")
			}
			flags.LogFormat = args[i+1]
			i++
		case strings.HasPrefix(arg, "--log-format="):
			flags.LogFormat = strings.TrimPrefix(arg, "--log-format=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// configPathFromArgs extracts the config file path from collected
// config arguments, for commands that watch the file.
func configPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(args[i], "--config="):
			return strings.TrimPrefix(args[i], "--config=")
		}
	}
	return ""
}

// profileFromArgs extracts the active profile name from collected
// config arguments, so the watcher reloads with the same overlay.
func profileFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--profile":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(args[i], "--profile="):
			return strings.TrimPrefix(args[i], "--profile=")
		}
	}
	return ""
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func printVersion() {
	fmt.Println("gnosis " + appVersion)
}

func printUsage() {
	fmt.Print(`Gnosis - agentic RAG service

Usage:
  gnosis [global flags] <command> [args]

Global flags:
  --config <path>      Path to config.yaml
  --profile <name>     Config profile overlay (dev, prod)
  --set key=value      Override config (repeatable)
  --log-level <level>  debug, info, warn, error
  --log-format <fmt>   json, text
  --json               JSON output for CLI results

Commands:
  serve [-addr :8000] [-watch]
  ingest [-dir <path>] [-chunk-size N] [-chunk-overlap N]
  query -q <text> [-mode agent|direct]
  mcp
  version

`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}
