package main

import "github.com/urfave/cli/v2"

// NewApp creates an app with sane defaults.
func (s *srv) loadApp() {
	app := cli.NewApp()
	app.Action = cli.ShowAppHelp
	app.Name = "RaffleHub"
	app.Usage = ""
	app.Commands = []*cli.Command{
		{
			Action:      server.startChain,
			Name:        "chain",
			Usage:       "Start the chain coordination service",
			Flags:       []cli.Flag{},
			Category:    "Chain",
			Description: `Submits contract calls, tracks their confirmation, and projects contract events into the database. Serves the internal rpc api.`,
		},
		{
			Action:      server.startCron,
			Name:        "cron",
			Usage:       "Start background jobs",
			Flags:       []cli.Flag{},
			Category:    "Worker",
			Description: `Runs the periodic jobs, currently the credit lot expiry sweep.`,
		},
		{
			Action:      server.startMigrate,
			Name:        "migrate",
			Usage:       "Apply pending database migrations",
			Flags:       []cli.Flag{},
			Category:    "Database",
			Description: `Applies every migration version not yet recorded in the migrations table.`,
		},
	}

	s.app = app
}
