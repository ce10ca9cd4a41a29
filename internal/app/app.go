// Package app assembles the bridge from its configuration: it opens the
// mail session, wires the decoder, router, task service client and
// staging directory into a pipeline, and reports each run.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nhle/mailtask/internal/credential"
	"github.com/nhle/mailtask/internal/model"
	"github.com/nhle/mailtask/internal/pipeline"
	"github.com/nhle/mailtask/internal/report"
	"github.com/nhle/mailtask/internal/route"
	"github.com/nhle/mailtask/internal/schedule"
	"github.com/nhle/mailtask/internal/source"
	"github.com/nhle/mailtask/internal/source/email"
	"github.com/nhle/mailtask/internal/source/mbox"
	"github.com/nhle/mailtask/internal/staging"
	"github.com/nhle/mailtask/internal/tracker"
)

// App runs the bridge for one loaded configuration.
type App struct {
	cfg    *model.Config
	logger *slog.Logger
	out    io.Writer
	router *route.Router

	// resolve looks up secrets missing from the configuration.
	resolve func(value, key string) (string, error)
}

// New creates an App. Reports are written to out when it is not nil.
func New(cfg *model.Config, logger *slog.Logger, out io.Writer) *App {
	if logger == nil {
		logger = slog.Default()
	}

	if len(cfg.Projects) == 0 {
		logger.Warn("project mapping is empty, no message will be routed to a project")
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		router:  route.New(cfg.Projects, logger),
		resolve: credential.Resolve,
	}
}

// RunOnce processes the current batch of unread messages and renders the
// result.
func (a *App) RunOnce(ctx context.Context) (*pipeline.Result, error) {
	if err := a.resolveSecrets(); err != nil {
		return nil, err
	}

	stage, err := staging.Prepare(a.cfg.Pipeline.AttachmentDir, a.logger)
	if err != nil {
		return nil, err
	}

	mailbox, err := a.openMailbox(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("mailbox opened", "type", mailbox.Type())
	defer func() {
		if err := mailbox.Close(); err != nil {
			a.logger.Warn("closing mailbox failed", "error", err)
		}
	}()

	client := tracker.NewClient(
		a.cfg.Tracker.BaseURL, a.cfg.Tracker.Token, a.cfg.Tracker.Timeout,
	)

	coord := pipeline.New(
		mailbox,
		email.NewDecoder(stage.Path(), a.logger),
		a.router,
		client,
		stage,
		a.logger,
	)

	result, err := coord.Run(ctx)
	if result != nil && a.out != nil && len(result.Outcomes) > 0 {
		if rerr := report.Render(a.out, result); rerr != nil {
			a.logger.Warn("writing run report failed", "error", rerr)
		}
	}
	return result, err
}

// Watch runs immediately and then on the configured schedule until ctx is
// done. Authentication failures end the loop since retrying cannot fix
// them.
func (a *App) Watch(ctx context.Context) error {
	sched, err := schedule.New(a.cfg.Pipeline.Schedule, a.logger)
	if err != nil {
		return err
	}

	a.logger.Info("watching mailbox", "schedule", a.cfg.Pipeline.Schedule)

	return sched.Run(ctx, func(ctx context.Context) error {
		_, err := a.RunOnce(ctx)
		return err
	}, source.IsAuthError)
}

func (a *App) openMailbox(ctx context.Context) (source.Mailbox, error) {
	if a.cfg.Mail.MboxPath != "" {
		mb, err := mbox.Open(a.cfg.Mail.MboxPath)
		if err != nil {
			return nil, err
		}
		a.logger.Info("reading messages from mbox", "path", a.cfg.Mail.MboxPath)
		return mb, nil
	}

	client := email.NewIMAPClient(
		a.cfg.Mail.Host,
		a.cfg.Mail.Port,
		a.cfg.Mail.Account,
		a.cfg.Mail.Password,
		a.cfg.Mail.TLS,
	)
	session, err := client.Open(ctx, a.cfg.Mail.Mailbox)
	if err != nil {
		return nil, err
	}
	a.logger.Info("connected to IMAP server",
		"host", a.cfg.Mail.Host, "mailbox", a.cfg.Mail.Mailbox)
	return session, nil
}

// resolveSecrets fills an empty mail password or task service token from
// the keyring.
func (a *App) resolveSecrets() error {
	if a.cfg.Mail.MboxPath == "" && a.cfg.Mail.Password == "" {
		password, err := a.resolve("", credential.MailPasswordKey(a.cfg.Mail.Account))
		if err != nil {
			return fmt.Errorf("looking up mail password: %w", err)
		}
		a.cfg.Mail.Password = password
	}

	if a.cfg.Tracker.Token == "" {
		token, err := a.resolve("", credential.TrackerTokenKey)
		if err != nil {
			return fmt.Errorf("looking up task service token: %w", err)
		}
		a.cfg.Tracker.Token = token
	}

	return nil
}
