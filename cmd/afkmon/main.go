package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"afkmon/internal/app"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const defaultConfig = "config.toml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts app.Options
	var showVersion bool

	flagSet := pflag.NewFlagSet("afkmon", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.ConfigPath, "config", "c", defaultConfig, "path to config file (.toml, .yaml, .json, .jsonc)")
	flagSet.StringVarP(&opts.Profile, "profile", "p", "", "load a specific profile for config settings")
	flagSet.StringVarP(&opts.JournalDir, "journal", "j", "", "override for path to journal folder")
	flagSet.StringVarP(&opts.JournalFile, "setfile", "s", "", "set specific journal file to use")
	flagSet.BoolVarP(&opts.FileSelect, "fileselect", "f", false, "show a list of recent journals to choose from")
	flagSet.StringVarP(&opts.Webhook, "webhook", "w", "", "override for Discord webhook URL")
	flagSet.BoolVarP(&opts.ResetSession, "resetsession", "r", false, "reset session stats after preloading")
	flagSet.BoolVarP(&opts.TestMode, "test", "t", false, "print remote messages to the terminal instead of sending them")
	flagSet.BoolVarP(&opts.Debug, "debug", "d", false, "print information for debugging")
	flagSet.BoolVar(&showVersion, "version", false, "print the version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("afkmon", version)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
	if opts.FileSelect && flagSet.Changed("setfile") {
		return errors.New("--fileselect and --setfile can't be used together")
	}

	// The default config file is optional; an explicit one is not.
	if !flagSet.Changed("config") {
		if _, err := os.Stat(opts.ConfigPath); errors.Is(err, os.ErrNotExist) {
			opts.ConfigPath = ""
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(opts)
	if errors.Is(err, app.ErrNoSelection) {
		return nil
	}
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
