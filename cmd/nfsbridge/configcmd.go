package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/netiface/nfsbridge/internal/cli"
	"github.com/netiface/nfsbridge/pkg/config"
)

func (a *app) configCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Summary:     "Manage the configuration file",
		Subcommands: []*cli.Command{a.configInitCommand()},
	}
}

func (a *app) configInitCommand() *cli.Command {
	var force bool
	var path string
	return &cli.Command{
		Name:    "init",
		Summary: "Write a default configuration file",
		Flags: func() *pflag.FlagSet {
			fs := newFlagSet("init", nil)
			fs.BoolVarP(&force, "force", "f", false, "overwrite an existing file")
			fs.StringVar(&path, "path", "", "write to this path instead of the default location")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return cli.ErrUsage
			}
			if path == "" {
				path = config.GetDefaultConfigPath()
			}
			if err := config.InitConfigToPath(path, force); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s\n", path)
			return nil
		},
	}
}
