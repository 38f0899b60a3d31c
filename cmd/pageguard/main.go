package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"pageguard/internal/agent"
	"pageguard/internal/config"
	"pageguard/internal/logger"
	"pageguard/internal/store"
)

func main() {
	app := &cli.App{
		Name:  "pageguard",
		Usage: "browser content-monitoring agent with remote decision enforcement",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the yaml config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "attach to the browser and start monitoring",
				Action: runAgent,
			},
			{
				Name:      "set-key",
				Usage:     "store the backend credential",
				ArgsUsage: "<token>",
				Action:    setKey,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAgent(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	a, err := agent.New(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

func setKey(c *cli.Context) error {
	token := c.Args().First()
	if token == "" {
		return fmt.Errorf("usage: pageguard set-key <token>")
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	creds := store.NewCredentials(cfg.CredentialFile, logger.NewNop())
	if err := creds.SetToken(token); err != nil {
		return err
	}
	fmt.Println("credential saved")
	return nil
}
