package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/appserve/internal/app"
)

// RoutesCmd implements the 'routes' command.
type RoutesCmd struct{}

func (r *RoutesCmd) Run(g *Global, root *CLI) error {
	l, err := root.load()
	if err != nil {
		return err
	}
	a, err := app.New(l.cfg, l.mode, app.WithLogger(l.logger))
	if err != nil {
		return err
	}
	found, err := a.Routes(context.Background())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "METHOD\tURL\tROUTE\tFEATURE")
	for _, d := range found {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Method, d.URL, d.Route, d.Feature)
	}
	return tw.Flush()
}
