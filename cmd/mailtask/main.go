// Command mailtask turns unread email into tasks on a Vikunja server.
//
// Usage:
//
//	mailtask [--config path] [run|watch|login|logout]
//
// run processes the unread messages once and watch keeps doing so on the
// configured cron schedule. login stores the mail password and task
// service token in the system keyring; logout removes them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhle/mailtask/internal/app"
	"github.com/nhle/mailtask/internal/credential"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/ui/login"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) || errors.Is(err, login.ErrAborted) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "mailtask: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("mailtask", flag.ContinueOnError)
	configPath := flags.String("config", model.DefaultConfigPath(),
		"path to the YAML config file")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(),
			"Usage: mailtask [--config path] [run|watch|login|logout]\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}

	command := "run"
	if flags.NArg() > 0 {
		command = flags.Arg(0)
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	switch command {
	case "login":
		return login.Run(cfg.Mail.Account, credential.Set)
	case "logout":
		return login.Forget(cfg.Mail.Account, credential.Delete)
	}
	if command != "run" && command != "watch" {
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	a := app.New(cfg, logger, os.Stdout)

	if command == "watch" {
		return a.Watch(ctx)
	}

	_, err = a.RunOnce(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("run interrupted")
		return nil
	}
	return err
}
