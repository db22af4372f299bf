package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pagesmith/cmd/pagesmith/commands"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{}
	parser := kong.Parse(&cli,
		kong.Name("pagesmith"),
		kong.Description("Generate, publish and verify static sites from task briefs."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
		kong.Bind(global, &cli),
	)
	err := parser.Run()
	errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
}
