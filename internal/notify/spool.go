package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	logx "github.com/nick-arm/skara/pkg/logx"
)

const defaultSweepSpec = "@every 1m"

// Spool ingests change events the external diffing engine drops into a
// directory as JSON files, and dispatches each to its repository's pipeline.
//
// A filesystem watcher triggers processing promptly; a periodic cron sweep
// backs it up so nothing is lost when the watcher misses events or cannot be
// created at all. All dispatch happens on the Run goroutine, in file-name
// order, so each pipeline sees one event at a time.
type Spool struct {
	dir       string
	sweep     string
	pipelines map[string]*Pipeline
	log       logx.Logger
}

func NewSpool(dir, sweep string, pipelines map[string]*Pipeline, log logx.Logger) *Spool {
	if sweep == "" {
		sweep = defaultSweepSpec
	}
	return &Spool{dir: dir, sweep: sweep, pipelines: pipelines, log: log}
}

// Run blocks until ctx is done.
func (s *Spool) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating spool dir: %w", err)
	}

	kick := make(chan struct{}, 1)
	poke := func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	}

	if w, err := fsnotify.NewWatcher(); err != nil {
		s.log.Warn("spool watcher unavailable; relying on periodic sweep", logx.Err(err))
	} else if err := w.Add(s.dir); err != nil {
		s.log.Warn("spool watch failed; relying on periodic sweep", logx.String("dir", s.dir), logx.Err(err))
		_ = w.Close()
	} else {
		defer w.Close()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-w.Events:
					if !ok {
						return
					}
					if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
						poke()
					}
				case err, ok := <-w.Errors:
					if !ok {
						return
					}
					if err != nil {
						s.log.Warn("spool watch error", logx.Err(err))
						// We may have missed events; sweep to catch up.
						poke()
					}
				}
			}
		}()
	}

	c := cron.New()
	if _, err := c.AddFunc(s.sweep, poke); err != nil {
		return fmt.Errorf("invalid sweep spec %q: %w", s.sweep, err)
	}
	c.Start()
	defer c.Stop()

	// Pick up whatever was spooled while we were down.
	poke()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-kick:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce processes every pending event file in name order. Malformed
// files are quarantined; files whose dispatch failed are left in place so
// the next sweep retries them once the transport recovers.
func (s *Spool) sweepOnce(ctx context.Context) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("spool scan failed", logx.String("dir", s.dir), logx.Err(err))
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(s.dir, name)

		b, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("unreadable spool event", logx.String("file", name), logx.Err(err))
			continue
		}

		ev, err := ParseEvent(b)
		if err != nil {
			s.log.Warn("quarantining malformed spool event", logx.String("file", name), logx.Err(err))
			if err := os.Rename(path, path+".rejected"); err != nil {
				s.log.Error("quarantine failed", logx.String("file", name), logx.Err(err))
			}
			continue
		}

		if err := s.dispatch(ctx, ev); err != nil {
			s.log.Error("event dispatch failed; leaving event for retry",
				logx.String("file", name),
				logx.String("repository", ev.Repository),
				logx.Err(err))
			continue
		}

		if err := os.Remove(path); err != nil {
			s.log.Error("removing processed spool event failed", logx.String("file", name), logx.Err(err))
		}
	}
}

func (s *Spool) dispatch(ctx context.Context, ev Event) error {
	p, ok := s.pipelines[ev.Repository]
	if !ok {
		// Not fatal: the event is consumed so it doesn't wedge the spool.
		s.log.Warn("event for unconfigured repository",
			logx.String("repository", ev.Repository),
			logx.String("type", string(ev.Kind)))
		return nil
	}

	switch ev.Kind {
	case EventCommits:
		return p.HandleCommits(ctx, ev.Commits, ev.Branch)
	case EventTag:
		return p.HandleTagCommits(ctx, ev.Commits, ev.Tag)
	case EventNewBranch:
		return p.HandleNewBranch(ctx, ev.Commits, ev.Parent, ev.Branch)
	}
	return fmt.Errorf("unknown event type %q", ev.Kind)
}
