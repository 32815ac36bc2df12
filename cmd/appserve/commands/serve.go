package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/appserve/internal/app"
	"git.home.luguber.info/inful/appserve/internal/logfields"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port int `short:"p" help:"Listen port (overrides config and PORT)"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	l, err := root.load()
	if err != nil {
		return err
	}
	if s.Port != 0 {
		l.cfg.Server.Port = s.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(l.cfg, l.mode, app.WithLogger(l.logger))
	if err != nil {
		return err
	}
	l.logger.Info("Serving", logfields.Mode(string(l.mode)), logfields.Path(root.Config))
	return a.Run(ctx)
}
