// Package logging builds the logrus logger used by the pairtalk command.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/progrium/pairtalk/config"
)

// Setup returns a logger writing to every output in c. The returned closer
// releases any files it opened.
func Setup(c config.LogConfig) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level := logrus.InfoLevel
	if c.Level != "" {
		l, err := logrus.ParseLevel(c.Level)
		if err != nil {
			return nil, nil, err
		}
		level = l
	}
	log.SetLevel(level)

	switch strings.ToLower(c.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", c.Format)
	}

	outputs := c.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}
	var (
		writers []io.Writer
		files   closers
	)
	for _, out := range outputs {
		switch strings.ToLower(out) {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			w, err := openFile(out, c.Rotation)
			if err != nil {
				files.Close()
				return nil, nil, err
			}
			writers = append(writers, w)
			files = append(files, w)
		}
	}
	if len(writers) == 1 {
		log.SetOutput(writers[0])
	} else {
		log.SetOutput(io.MultiWriter(writers...))
	}
	return log, files, nil
}

func openFile(path string, r config.RotationConfig) (io.WriteCloser, error) {
	if r.Enable {
		if strings.TrimSpace(r.Filename) != "" {
			path = r.Filename
		}
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    max(r.MaxSizeMB, 1),
			MaxBackups: r.MaxBackups,
			MaxAge:     r.MaxAgeDays,
			Compress:   r.Compress,
		}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

type closers []io.WriteCloser

func (c closers) Close() error {
	var errs []error
	for _, w := range c {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}
