package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/netiface/nfsbridge/internal/cli"
	"github.com/netiface/nfsbridge/pkg/browse"
	"github.com/netiface/nfsbridge/pkg/mediatype"
	"github.com/netiface/nfsbridge/pkg/session"
)

// sniffSize covers the signatures mediatype.Detect needs.
const sniffSize = 3072

// entryView is the YAML shape of a listed or stat'ed file.
type entryView struct {
	Name        string `yaml:"name,omitempty"`
	Path        string `yaml:"path"`
	IsDirectory bool   `yaml:"is_directory"`
	Size        int64  `yaml:"size"`
	Modified    string `yaml:"modified"`
	Kind        string `yaml:"kind,omitempty"`
}

func newEntryView(fi session.FileInfo) entryView {
	v := entryView{
		Name:        fi.Name,
		Path:        fi.Path,
		IsDirectory: fi.IsDirectory,
		Size:        fi.Size,
		Modified:    formatTime(fi.ModifiedTime),
	}
	if !fi.IsDirectory {
		v.Kind = mediatype.Classify(fi.Name).String()
	}
	return v
}

func formatTime(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func pathArg(args []string, def string) (string, error) {
	switch len(args) {
	case 0:
		if def == "" {
			return "", cli.ErrUsage
		}
		return def, nil
	case 1:
		return args[0], nil
	default:
		return "", cli.ErrUsage
	}
}

func (a *app) lsCommand() *cli.Command {
	var cf connFlags
	var long, asYAML bool
	return &cli.Command{
		Name:    "ls",
		Summary: "List a directory",
		Usage:   "nfsbridge ls [flags] [path]",
		Flags: func() *pflag.FlagSet {
			fs := newFlagSet("ls", &cf)
			fs.BoolVarP(&long, "long", "l", false, "stat every entry, directories first")
			fs.BoolVar(&asYAML, "yaml", false, "print the long listing as YAML")
			return fs
		},
		Run: func(args []string) error {
			dir, err := pathArg(args, "/")
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := cf.connect(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			if !long && !asYAML {
				names, err := e.session.ListDirectory(ctx, dir)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(a.out, name)
				}
				return nil
			}

			infos, err := e.session.ListDetailed(ctx, dir)
			if err != nil {
				return err
			}
			browse.SortForDisplay(infos)

			if asYAML {
				views := make([]entryView, 0, len(infos))
				for _, fi := range infos {
					views = append(views, newEntryView(fi))
				}
				return writeYAML(a.out, views)
			}
			return a.printLong(infos)
		},
	}
}

func (a *app) printLong(infos []session.FileInfo) error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, fi := range infos {
		kind := "-"
		if fi.IsDirectory {
			kind = "d"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", kind, fi.Size, time.Unix(fi.ModifiedTime, 0).UTC().Format("2006-01-02 15:04"), fi.Name)
	}
	return tw.Flush()
}

func (a *app) statCommand() *cli.Command {
	var cf connFlags
	return &cli.Command{
		Name:    "stat",
		Summary: "Show size and modification time of a path",
		Usage:   "nfsbridge stat [flags] <path>",
		Flags:   func() *pflag.FlagSet { return newFlagSet("stat", &cf) },
		Run: func(args []string) error {
			p, err := pathArg(args, "")
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := cf.connect(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			meta, err := e.session.StatFile(ctx, p)
			if err != nil {
				return err
			}
			return writeYAML(a.out, newEntryView(session.FileInfo{
				Path:         p,
				Name:         p,
				IsDirectory:  e.session.IsDirectory(ctx, p),
				Size:         meta.Size,
				ModifiedTime: meta.ModifiedTime,
			}))
		},
	}
}

func (a *app) catCommand() *cli.Command {
	var cf connFlags
	var offset int64
	var chunk int
	return &cli.Command{
		Name:    "cat",
		Summary: "Stream a file to stdout",
		Usage:   "nfsbridge cat [flags] <path>",
		Flags: func() *pflag.FlagSet {
			fs := newFlagSet("cat", &cf)
			fs.Int64Var(&offset, "offset", 0, "start reading at this byte offset")
			fs.IntVar(&chunk, "chunk", session.DefaultChunkSize, "bytes per read request")
			return fs
		},
		Run: func(args []string) error {
			p, err := pathArg(args, "")
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := cf.connect(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			r, err := e.session.NewReader(ctx, p)
			if err != nil {
				return err
			}
			r.SetChunkSize(chunk)
			if _, err := r.Seek(offset, io.SeekStart); err != nil {
				return err
			}
			_, err = io.Copy(a.out, r)
			return err
		},
	}
}

func (a *app) typeCommand() *cli.Command {
	var cf connFlags
	return &cli.Command{
		Name:    "type",
		Summary: "Detect the media type of a file from its content",
		Usage:   "nfsbridge type [flags] <path>",
		Flags:   func() *pflag.FlagSet { return newFlagSet("type", &cf) },
		Run: func(args []string) error {
			p, err := pathArg(args, "")
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := cf.connect(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			head, err := e.session.ReadFile(ctx, p, 0, sniffSize)
			if err != nil {
				return err
			}
			mime, _ := mediatype.Detect(head)
			fmt.Fprintf(a.out, "%s\t%s\n", mime, mediatype.Resolve(p, head))
			return nil
		},
	}
}

func (a *app) putCommand() *cli.Command {
	var cf connFlags
	var offset int64
	return &cli.Command{
		Name:    "put",
		Summary: "Write a local file into a remote file",
		Usage:   "nfsbridge put [flags] <local> <remote>",
		Flags: func() *pflag.FlagSet {
			fs := newFlagSet("put", &cf)
			fs.Int64Var(&offset, "offset", 0, "remote byte offset to start writing at")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return cli.ErrUsage
			}
			local, remote := args[0], args[1]

			f, err := os.Open(local)
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := context.Background()
			e, err := cf.connect(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			total, err := upload(ctx, e.session, f, remote, offset)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %d bytes to %s\n", total, remote)
			return nil
		},
	}
}

func upload(ctx context.Context, s *session.Session, r io.Reader, remote string, offset int64) (int64, error) {
	buf := make([]byte, session.DefaultChunkSize)
	var total int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			w, err := s.WriteFile(ctx, remote, buf[:n], offset+total)
			if err != nil {
				return total, err
			}
			total += int64(w)
			if int(w) < n {
				return total, io.ErrShortWrite
			}
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

func (a *app) isdirCommand() *cli.Command {
	var cf connFlags
	return &cli.Command{
		Name:    "isdir",
		Summary: "Report whether a path is a directory (exit 1 if not)",
		Usage:   "nfsbridge isdir [flags] <path>",
		Flags:   func() *pflag.FlagSet { return newFlagSet("isdir", &cf) },
		Run: func(args []string) error {
			p, err := pathArg(args, "")
			if err != nil {
				return err
			}
			ctx := context.Background()
			e, err := cf.connect(ctx)
			if err != nil {
				return err
			}
			defer e.close(ctx)

			isDir := e.session.IsDirectory(ctx, p)
			fmt.Fprintln(a.out, isDir)
			if !isDir {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
