package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/netiface/nfsbridge/internal/cli"
	"github.com/netiface/nfsbridge/pkg/profiles"
)

func (a *app) profileCommand() *cli.Command {
	return &cli.Command{
		Name:    "profile",
		Summary: "Manage saved connection profiles",
		Subcommands: []*cli.Command{
			a.profileSaveCommand(),
			a.profileListCommand(),
			a.profileRemoveCommand(),
		},
	}
}

func (cf *connFlags) openProfiles() (*profiles.Store, error) {
	cfg, err := cf.loadConfig()
	if err != nil {
		return nil, err
	}
	return profiles.Open(cfg.Profiles.Path)
}

func (a *app) profileSaveCommand() *cli.Command {
	var cf connFlags
	return &cli.Command{
		Name:    "save",
		Summary: "Save the connection flags under a name",
		Usage:   "nfsbridge profile save --server <host> [--export <path>] [--uid N] [--gid N] [--mock] <name>",
		Flags:   func() *pflag.FlagSet { return newFlagSet("save", &cf) },
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.ErrUsage
			}
			cfg, err := cf.loadConfig()
			if err != nil {
				return err
			}
			store, err := profiles.Open(cfg.Profiles.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			p := profiles.Profile{
				Name:   args[0],
				Server: cfg.Connection.Server,
				Export: cfg.Connection.Export,
				UID:    cfg.Connection.UID,
				GID:    cfg.Connection.GID,
			}
			if cf.mock {
				p.Backend = "mock"
			}
			saved, err := store.Save(context.Background(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "saved %s (%s:%s)\n", saved.Name, saved.Server, saved.Export)
			return nil
		},
	}
}

func (a *app) profileListCommand() *cli.Command {
	var cf connFlags
	var asYAML bool
	return &cli.Command{
		Name:    "list",
		Summary: "List saved profiles",
		Flags: func() *pflag.FlagSet {
			fs := newFlagSet("list", &cf)
			fs.BoolVar(&asYAML, "yaml", false, "print as YAML")
			return fs
		},
		Run: func(args []string) error {
			store, err := cf.openProfiles()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			all, err := store.List(ctx)
			if err != nil {
				return err
			}
			if asYAML {
				return writeYAML(a.out, all)
			}

			lastID := ""
			if last, err := store.LastUsed(ctx); err == nil {
				lastID = last.ID
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			for _, p := range all {
				marker := " "
				if p.ID == lastID {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s %s\t%s:%s\tuid=%d gid=%d\t%s\n", marker, p.Name, p.Server, p.Export, p.UID, p.GID, p.Backend)
			}
			return tw.Flush()
		},
	}
}

func (a *app) profileRemoveCommand() *cli.Command {
	var cf connFlags
	return &cli.Command{
		Name:    "rm",
		Summary: "Delete a saved profile",
		Usage:   "nfsbridge profile rm <name>",
		Flags:   func() *pflag.FlagSet { return newFlagSet("rm", &cf) },
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.ErrUsage
			}
			store, err := cf.openProfiles()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "removed %s\n", args[0])
			return nil
		},
	}
}
