package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/netiface/nfsbridge/internal/cli"
	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/pkg/bridge"
	"github.com/netiface/nfsbridge/pkg/browse"
	"github.com/netiface/nfsbridge/pkg/session"
)

const shellHelp = `Commands:
  ls [path]        list names
  ll [path]        list with size and time, directories first
  cd <path>        change directory (".." goes up)
  up               go to the parent directory
  pwd              print the current directory
  stat <path>      print size and modification time
  cat <path>       print up to 64 KiB of a file
  isdir <path>     print whether path is a directory
  exit             disconnect and leave
`

func (a *app) shellCommand() *cli.Command {
	var cf connFlags
	return &cli.Command{
		Name:    "shell",
		Summary: "Interactive browser; serves /metrics when metrics are enabled",
		Usage:   "nfsbridge shell [flags]",
		Flags:   func() *pflag.FlagSet { return newFlagSet("shell", &cf) },
		Run: func(args []string) error {
			if len(args) != 0 {
				return cli.ErrUsage
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			e, err := cf.prepare(ctx)
			if err != nil {
				return err
			}

			if srv := e.metrics.Server; srv != nil {
				go func() {
					if err := srv.Start(ctx); err != nil {
						logger.Error("Metrics server: %v", err)
					}
				}()
			}

			b := bridge.New(e.session)
			t := e.target
			if code := b.Connect(t.Server, t.Export, t.UID, t.GID); code != bridge.ConnectOK {
				return fmt.Errorf("connect to %s:%s failed (code %d)", t.Server, t.Export, code)
			}
			e.markUsed(ctx)
			defer b.Disconnect()

			sh := &shell{app: a, bridge: b, cwd: "/"}
			return sh.run()
		},
	}
}

// shell is a line-oriented browser over the bridge.
type shell struct {
	*app
	bridge *bridge.Bridge
	cwd    string
}

func (sh *shell) run() error {
	server, export, _ := sh.bridge.Session().ServerInfo()
	fmt.Fprintf(sh.out, "Connected to %s:%s. Type 'help' for commands.\n", server, export)

	scanner := bufio.NewScanner(sh.in)
	for {
		fmt.Fprintf(sh.out, "%s> ", sh.cwd)
		if !scanner.Scan() {
			fmt.Fprintln(sh.out)
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		sh.exec(fields[0], fields[1:])
	}
}

func (sh *shell) exec(cmd string, args []string) {
	arg := sh.cwd
	if len(args) > 0 {
		arg = sh.resolve(args[0])
	}

	switch cmd {
	case "help":
		fmt.Fprint(sh.out, shellHelp)
	case "pwd":
		fmt.Fprintln(sh.out, sh.cwd)
	case "ls":
		names := sh.bridge.ListDirectory(arg)
		if names == nil {
			fmt.Fprintf(sh.out, "ls: cannot list %s\n", arg)
			return
		}
		for _, name := range names {
			fmt.Fprintln(sh.out, name)
		}
	case "ll":
		infos, err := sh.bridge.Session().ListDetailed(context.Background(), arg)
		if err != nil {
			fmt.Fprintf(sh.out, "ll: %v\n", err)
			return
		}
		browse.SortForDisplay(infos)
		_ = sh.printLong(infos)
	case "cd":
		if !sh.bridge.IsDirectory(arg) {
			fmt.Fprintf(sh.out, "cd: %s: not a directory\n", arg)
			return
		}
		sh.cwd = arg
	case "up":
		sh.cwd = browse.Parent(sh.cwd)
	case "stat":
		st := sh.bridge.StatFile(arg)
		if st == nil {
			fmt.Fprintf(sh.out, "stat: cannot stat %s\n", arg)
			return
		}
		fmt.Fprintf(sh.out, "size=%d modified=%s\n", st[0], formatTime(st[1]))
	case "cat":
		data := sh.bridge.ReadFile(arg, 0, session.DefaultChunkSize)
		if data == nil {
			fmt.Fprintf(sh.out, "cat: cannot read %s\n", arg)
			return
		}
		sh.out.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			fmt.Fprintln(sh.out)
		}
	case "isdir":
		fmt.Fprintln(sh.out, sh.bridge.IsDirectory(arg))
	default:
		fmt.Fprintf(sh.out, "unknown command %q, type 'help'\n", cmd)
	}
}

// resolve makes p absolute against the current directory.
func (sh *shell) resolve(p string) string {
	switch {
	case strings.HasPrefix(p, "/"):
		return p
	case p == "..":
		return browse.Parent(sh.cwd)
	case p == ".":
		return sh.cwd
	default:
		return session.JoinPath(sh.cwd, p)
	}
}
