package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/appserve/cmd/appserve/commands"
	"git.home.luguber.info/inful/appserve/internal/foundation/errors"
	"git.home.luguber.info/inful/appserve/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Must(cli,
		kong.Name("appserve"),
		kong.Description("Serve a web application with its asset pipeline, declared middlewares and convention-based routes."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := kctx.Run(&commands.Global{}, cli); err != nil {
		os.Exit(errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err))
	}
}
