package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/nick-arm/skara/internal/config"
	"github.com/nick-arm/skara/internal/forge"
	"github.com/nick-arm/skara/internal/forge/github"
	"github.com/nick-arm/skara/internal/mailinglist/mailman"
	"github.com/nick-arm/skara/internal/notify"
	logx "github.com/nick-arm/skara/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./notify.yaml", "path to config file (json or yaml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		File: logx.FileConfig{
			Enabled: cfg.Log.File.Enabled,
			Path:    cfg.Log.File.Path,
		},
	})
	defer logSvc.Close()

	interval, err := config.ParseDurationOrDefault("email.interval", cfg.Email.Interval, time.Second)
	if err != nil {
		log.Error("invalid config", logx.Err(err))
		os.Exit(1)
	}
	lists := mailman.NewServer(cfg.Email.Archive, cfg.Email.SMTP, interval, log)

	repos := make(map[string]forge.HostedRepository, len(cfg.Repositories))
	for name, rc := range cfg.Repositories {
		repo, err := github.NewRepository(github.Config{
			API:   cfg.Forge.API,
			Token: cfg.Forge.Token,
			URL:   rc.URL,
			Name:  name,
			Type:  rc.Type,
			Log:   log,
		})
		if err != nil {
			log.Error("skipping repository with bad forge binding",
				logx.String("repository", name), logx.Err(err))
			continue
		}
		repos[name] = repo
	}

	pipelines := notify.Assemble(cfg, notify.Deps{
		Lists:        lists,
		Repositories: repos,
		Log:          log,
	})
	if len(pipelines) == 0 {
		log.Warn("no pipelines assembled; nothing will be notified")
	}
	log.Info("notifier assembled",
		logx.Int("pipelines", len(pipelines)),
		logx.String("spool", cfg.Spool.Dir))

	spool := notify.NewSpool(cfg.Spool.Dir, cfg.Spool.Sweep, pipelines, log)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if err := spool.Run(ctx); err != nil {
		log.Error("spool runner failed", logx.Err(err))
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}
