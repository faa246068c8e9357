package main

import (
	"flag"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/progrium/pairtalk/config"
	"github.com/progrium/pairtalk/filestore"
	"github.com/progrium/pairtalk/internal/logging"
	"github.com/progrium/pairtalk/journal"
	"github.com/progrium/pairtalk/manager"
	"github.com/progrium/pairtalk/session"
)

func configFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "path to a .toml or .yaml config file")
}

// env is everything a chat command needs, built from the config file.
type env struct {
	cfg     config.Config
	log     *logrus.Logger
	events  *session.Queue
	printed chan struct{}
	closers []io.Closer
}

func setup(configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, logs, err := logging.Setup(cfg.Log)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, events: session.NewQueue(), printed: make(chan struct{})}
	e.closers = append(e.closers, logs)
	return e, nil
}

// sink returns the session sink: the event queue, teed into the journal
// when one is configured.
func (e *env) sink() (session.Sink, error) {
	if e.cfg.Journal.Path == "" {
		return e.events, nil
	}
	j, err := journal.Open(e.cfg.Journal.Path, e.cfg.Journal.Format, e.log)
	if err != nil {
		return nil, err
	}
	j.Progress = e.cfg.Journal.Progress
	e.closers = append(e.closers, j)
	return session.Tee{e.events, j}, nil
}

func (e *env) manager(listenAddr string) (*manager.Manager, error) {
	conflict, err := filestore.ParseConflict(e.cfg.Store.Conflict)
	if err != nil {
		return nil, err
	}
	sink, err := e.sink()
	if err != nil {
		return nil, err
	}
	return manager.New(manager.Config{
		ListenAddress: listenAddr,
		Logger:        e.log,
		Session: session.Config{
			Sink: sink,
			Store: &filestore.Dir{
				Path:          e.cfg.Store.Dir,
				Conflict:      conflict,
				RemovePartial: e.cfg.Store.RemovePartial,
			},
			ChunkSize:    e.cfg.Session.ChunkSize,
			ProgressStep: e.cfg.Session.ProgressStep,
		},
	}), nil
}

// print writes events to out until Close.
func (e *env) print(out io.Writer) {
	go func() {
		defer close(e.printed)
		printEvents(e.events.Events(), out)
	}()
}

func (e *env) Close() error {
	e.events.Close()
	select {
	case <-e.printed:
	case <-time.After(time.Second):
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i].Close()
	}
	return nil
}
