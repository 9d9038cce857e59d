// Command nfsbridge browses and transfers files on an NFSv3 export.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/netiface/nfsbridge/internal/cli"
)

// app carries the process streams so commands can be driven from tests.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func main() {
	a := &app{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	if err := a.root().Execute(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) root() *cli.Command {
	root := &cli.Command{
		Name:    "nfsbridge",
		Summary: "Browse and transfer files on an NFSv3 export",
		Subcommands: []*cli.Command{
			a.lsCommand(),
			a.statCommand(),
			a.catCommand(),
			a.typeCommand(),
			a.putCommand(),
			a.isdirCommand(),
			a.shellCommand(),
			a.profileCommand(),
			a.configCommand(),
		},
	}
	root.SetOutput(a.errOut)
	return root
}
