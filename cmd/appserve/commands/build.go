package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/appserve/internal/app"
	"git.home.luguber.info/inful/appserve/internal/mode"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct{}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	l, err := root.load()
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(l.cfg, mode.Production, app.WithLogger(l.logger))
	if err != nil {
		return err
	}
	if err := a.Build(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Build written to %s\n", l.cfg.Bundle.StaticRoot)
	return nil
}
