package main

import (
	"fmt"
	"os"

	"github.com/layer-3/tapnotify/internal/log"
	"github.com/urfave/cli/v2"
)

// Version is set via ldflags
var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "tapnotify",
		Usage:   "signed-challenge transfers with live payee notifications",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"TAPNOTIFY_CONFIG"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and websocket server",
				Action: serve,
			},
			keygenCommand(),
			signCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger := log.New("main")
		logger.Error().Err(err).Msg("exiting")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
