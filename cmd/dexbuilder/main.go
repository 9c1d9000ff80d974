package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/dexbuilder/cmd/dexbuilder/commands"
	"git.home.luguber.info/inful/dexbuilder/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("dexbuilder"),
		kong.Description("Builds an offline dictionary bundle from the online creature catalog."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)
	ctx.FatalIfErrorf(ctx.Run(&commands.Global{}))
}
