package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/pkg/config"
	"github.com/netiface/nfsbridge/pkg/profiles"
	"github.com/netiface/nfsbridge/pkg/session"
)

// connFlags are shared by every command that talks to a server.
type connFlags struct {
	configPath string
	mock       bool
	profile    string
	server     string
	export     string
	uid        int32
	gid        int32

	fs *pflag.FlagSet
}

func newFlagSet(name string, cf *connFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if cf != nil {
		fs.StringVarP(&cf.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/nfsbridge/config.yaml)")
		fs.BoolVar(&cf.mock, "mock", false, "use the offline mock backend")
		fs.StringVarP(&cf.profile, "profile", "p", "", "connect with a saved profile")
		fs.StringVarP(&cf.server, "server", "s", "", "server host name or address")
		fs.StringVarP(&cf.export, "export", "e", "", "exported path to mount")
		fs.Int32Var(&cf.uid, "uid", 0, "AUTH_UNIX user ID")
		fs.Int32Var(&cf.gid, "gid", 0, "AUTH_UNIX group ID")
		cf.fs = fs
	}
	return fs
}

var flagKeys = map[string]string{
	"server": "connection.server",
	"export": "connection.export",
	"uid":    "connection.uid",
	"gid":    "connection.gid",
}

// loadConfig reads configuration with the command line on top.
func (cf *connFlags) loadConfig() (*config.Config, error) {
	v := config.NewViper(cf.configPath)
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, cf.fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	if cf.mock {
		v.Set("backend.type", "mock")
	}

	cfg, err := config.LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env is a prepared but not yet connected session.
type env struct {
	cfg     *config.Config
	metrics *config.MetricsResult
	session *session.Session
	target  session.ConnectionInfo

	profileID    string
	profilesPath string
}

// prepare resolves the connection target and builds the session. The
// target comes from --profile, then flags and config, then the last used
// profile when no server is known.
func (cf *connFlags) prepare(ctx context.Context) (*env, error) {
	cfg, err := cf.loadConfig()
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg: cfg,
		target: session.ConnectionInfo{
			Server: cfg.Connection.Server,
			Export: cfg.Connection.Export,
			UID:    cfg.Connection.UID,
			GID:    cfg.Connection.GID,
		},
		profilesPath: cfg.Profiles.Path,
	}

	mock := cfg.Backend.Type == "mock"
	if cf.profile != "" || (e.target.Server == "" && !mock) {
		p, err := cf.lookupProfile(ctx, cfg.Profiles.Path)
		switch {
		case err == nil:
			e.target = session.ConnectionInfo{Server: p.Server, Export: p.Export, UID: p.UID, GID: p.GID}
			e.profileID = p.ID
			if p.Backend != "" && !cf.mock {
				cfg.Backend.Type = p.Backend
			}
		case cf.profile != "" || !errors.Is(err, profiles.ErrNotFound):
			return nil, err
		}
	}

	if e.target.Server == "" && cfg.Backend.Type != "mock" {
		return nil, errors.New("no server: pass --server, --profile or --mock")
	}

	factory, err := config.CreateBackendFactory(&cfg.Backend)
	if err != nil {
		return nil, err
	}
	e.metrics = config.InitializeMetrics(cfg)
	e.session = session.New(factory, e.metrics.SessionMetrics)
	return e, nil
}

func (cf *connFlags) lookupProfile(ctx context.Context, path string) (profiles.Profile, error) {
	store, err := profiles.Open(path)
	if err != nil {
		return profiles.Profile{}, err
	}
	defer store.Close()

	if cf.profile != "" {
		return store.GetByName(ctx, cf.profile)
	}
	return store.LastUsed(ctx)
}

// connect prepares and connects in one step.
func (cf *connFlags) connect(ctx context.Context) (*env, error) {
	e, err := cf.prepare(ctx)
	if err != nil {
		return nil, err
	}
	t := e.target
	if err := e.session.Connect(ctx, t.Server, t.Export, t.UID, t.GID); err != nil {
		return nil, err
	}
	e.markUsed(ctx)
	return e, nil
}

func (e *env) markUsed(ctx context.Context) {
	if e.profileID == "" {
		return
	}
	store, err := profiles.Open(e.profilesPath)
	if err != nil {
		logger.Warn("Could not record last used profile: %v", err)
		return
	}
	defer store.Close()
	if err := store.SetLastUsed(ctx, e.profileID); err != nil {
		logger.Warn("Could not record last used profile: %v", err)
	}
}

func (e *env) close(ctx context.Context) {
	if err := e.session.Disconnect(ctx); err != nil {
		logger.Warn("Disconnect: %v", err)
	}
}
