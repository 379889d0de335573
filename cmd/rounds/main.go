package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/vburojevic/rounds/internal/cli"
	"github.com/vburojevic/rounds/internal/config"
)

const quickStart = `rounds - crash-safe combat round timer

Quick start:
  rounds presets                        List presets
  rounds run --preset boxing            Run a session; type start, pause, resume, skip, end
  rounds ui --preset mma                Full-screen timer
  rounds history                        Finished sessions

For help:
  rounds --help                         All commands and flags
  rounds schema                         JSON Schema of the NDJSON output
`

func main() {
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config values become flag defaults; explicit flags still win.
	vars := kong.Vars{
		"config_format":      cfg.Format,
		"config_level":       cfg.Level,
		"config_preset":      cfg.Defaults.Preset,
		"config_preset_file": cfg.Defaults.PresetFile,
		"config_voice":       strconv.FormatBool(cfg.Defaults.Voice),
		"config_voice_cmd":   cfg.Voice.Command,
		"config_addr":        cfg.Server.Addr,
	}

	ctx := kong.Parse(&c,
		kong.Name("rounds"),
		kong.Description("rounds: interval and combat round timer with crash-safe sessions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
