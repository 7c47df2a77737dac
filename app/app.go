/*
 * Copyright (c) 2023 The jabberwock developers.
 * See the LICENSE file for more information.
 */

package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	_ "net/http/pprof" // http profile handlers
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/jabberwock-im/jabberwock/auth"
	"github.com/jabberwock-im/jabberwock/bus"
	"github.com/jabberwock-im/jabberwock/bus/inproc"
	"github.com/jabberwock-im/jabberwock/bus/natsbus"
	"github.com/jabberwock-im/jabberwock/c2s"
	"github.com/jabberwock-im/jabberwock/caps"
	"github.com/jabberwock-im/jabberwock/component"
	"github.com/jabberwock-im/jabberwock/host"
	"github.com/jabberwock-im/jabberwock/log"
	zaplogger "github.com/jabberwock-im/jabberwock/log/zap"
	"github.com/jabberwock-im/jabberwock/pending"
	"github.com/jabberwock-im/jabberwock/router"
	"github.com/jabberwock-im/jabberwock/s2s"
	"github.com/jabberwock-im/jabberwock/storage"
	"github.com/jabberwock-im/jabberwock/storage/repository"
	"github.com/jabberwock-im/jabberwock/transport"
	"github.com/jabberwock-im/jabberwock/version"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultShutDownWaitTime = time.Duration(5) * time.Second

var logoStr = []string{
	`     _       _     _                                   _    `,
	`    (_) __ _| |__ | |__   ___ _ ____      _____   ___ | | __`,
	`    | |/ _' | '_ \| '_ \ / _ \ '__\ \ /\ / / _ \ / __|| |/ /`,
	`    | | (_| | |_) | |_) |  __/ |   \ V  V / (_) | (__ |   < `,
	`   _/ |\__,_|_.__/|_.__/ \___|_|    \_/\_/ \___/ \___||_|\_\`,
	`  |__/                                                      `,
}

const usageStr = `
Usage: jabberwock [options]

Server Options:
    -c, --config <file>    Configuration file path
Common Options:
    -h, --help             Show this message
    -v, --version          Show version
`

// Application encapsulates a runnable server instance.
type Application struct {
	output           io.Writer
	args             []string
	logger           log.Logger
	appBus           bus.Bus
	reps             repository.Container
	pool             *pending.Pool
	outProvider      *s2s.OutProvider
	inHub            *s2s.InHub
	s2s              *s2s.S2S
	c2s              *c2s.C2S
	comps            *component.Components
	debugSrv         *http.Server
	waitStopCh       chan os.Signal
	shutDownWaitSecs time.Duration
}

// New returns a runnable application given an output and a command
// line arguments array.
func New(output io.Writer, args []string) *Application {
	return &Application{
		output:           output,
		args:             args,
		waitStopCh:       make(chan os.Signal, 1),
		shutDownWaitSecs: defaultShutDownWaitTime,
	}
}

// Run runs the application until either a stop signal is received or
// an error occurs.
func (a *Application) Run() error {
	if len(a.args) == 0 {
		return errors.New("empty command-line arguments")
	}
	var configFile string
	var showVersion, showUsage bool

	fs := flag.NewFlagSet("jabberwock", flag.ExitOnError)
	fs.SetOutput(a.output)

	fs.BoolVar(&showUsage, "help", false, "Show this message")
	fs.BoolVar(&showUsage, "h", false, "Show this message")
	fs.BoolVar(&showVersion, "version", false, "Print version information.")
	fs.BoolVar(&showVersion, "v", false, "Print version information.")
	fs.StringVar(&configFile, "config", "/etc/jabberwock/jabberwock.yml", "Configuration file path.")
	fs.StringVar(&configFile, "c", "/etc/jabberwock/jabberwock.yml", "Configuration file path.")
	fs.Usage = func() {
		for i := range logoStr {
			_, _ = fmt.Fprintf(a.output, "%s\n", logoStr[i])
		}
		_, _ = fmt.Fprintf(a.output, "%s\n", usageStr)
	}
	_ = fs.Parse(a.args[1:])

	if showUsage {
		fs.Usage()
		return nil
	}
	if showVersion {
		_, _ = fmt.Fprintf(a.output, "jabberwock version: %v\n", version.ApplicationVersion)
		return nil
	}
	var cfg Config
	if err := cfg.FromFile(configFile); err != nil {
		return err
	}
	if err := a.createPIDFile(cfg.PIDFile); err != nil {
		return err
	}
	a.initLogger(&cfg.Logger)

	a.printLogo()

	hosts, err := host.New(cfg.Hosts)
	if err != nil {
		return err
	}
	reps, err := storage.New(&cfg.Storage)
	if err != nil {
		return err
	}
	a.reps = reps
	if err := a.initBus(&cfg.Bus, reps); err != nil {
		return err
	}
	stanzaRouter := router.New(hosts, reps.User(), &cfg.Router)

	var gateway router.Gateway
	if gwCfg := cfg.Router.Gateway; gwCfg != nil {
		gateway = router.NewHTTPGateway(gwCfg.URL, gwCfg.Pass)
	}
	capsCache := caps.New(stanzaRouter, reps.Capabilities())

	chatRouter := router.NewChatRouter(stanzaRouter, a.appBus, reps.Offline(), gateway)
	iqRouter := router.NewIQRouter(stanzaRouter, a.appBus, reps, capsCache)
	presenceRouter := router.NewPresenceRouter(stanzaRouter, a.appBus, reps.User(), reps.Offline(), capsCache)

	a.pool = pending.New(&cfg.Pending, chatRouter, iqRouter, presenceRouter)
	a.pool.Start()

	if cfg.S2S != nil {
		a.inHub = s2s.NewInHub()
		a.outProvider = s2s.NewOutProvider(cfg.S2S, hosts, transport.NewGobCodec)
		stanzaRouter.SetOutProvider(a.outProvider)

		a.s2s = s2s.New(cfg.S2S, hosts, stanzaRouter, a.pool, a.outProvider, a.inHub, transport.NewGobCodec)
		if err := a.s2s.Start(); err != nil {
			return err
		}
	}
	a.c2s = c2s.New(&cfg.C2S, hosts, stanzaRouter, a.appBus, a.pool, transport.NewGobCodec)
	if err := a.c2s.Start(); err != nil {
		return err
	}
	if cfg.Component != nil {
		a.comps = component.New(cfg.Component, hosts, stanzaRouter, a.pool, transport.NewGobCodec)
		stanzaRouter.SetComponentProvider(a.comps)
		if err := a.comps.Start(); err != nil {
			return err
		}
	}
	if cfg.Debug.Port > 0 {
		if err := a.initDebugServer(cfg.Debug.Port); err != nil {
			return err
		}
	}
	sig := a.waitForStopSignal()
	log.Infof("received %s signal... shutting down...", sig.String())

	return a.gracefullyShutdown()
}

func (a *Application) initBus(cfg *BusConfig, reps repository.Container) error {
	switch cfg.Type {
	case "nats":
		b, err := natsbus.New(cfg.NATS)
		if err != nil {
			return err
		}
		a.appBus = b
	default:
		b := inproc.New()
		auth.New(reps.User()).RegisterHandlers(b)
		a.appBus = b
	}
	return nil
}

func (a *Application) createPIDFile(pidFile string) error {
	if len(pidFile) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(pidFile), os.ModePerm); err != nil {
		return err
	}
	file, err := os.Create(pidFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	currentPid := os.Getpid()
	if _, err := file.WriteString(strconv.FormatInt(int64(currentPid), 10)); err != nil {
		return err
	}
	return nil
}

func (a *Application) initLogger(config *log.Config) {
	a.logger = zaplogger.NewLogger(config.Level, config.LogPath)
	log.Set(a.logger)
}

func (a *Application) printLogo() {
	for i := range logoStr {
		log.Infof("%s", logoStr[i])
	}
	log.Infof("")
	log.Infof("jabberwock %v", version.ApplicationVersion)
}

func (a *Application) initDebugServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", http.DefaultServeMux) // pprof handlers

	a.debugSrv = &http.Server{Handler: mux}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	go func() { _ = a.debugSrv.Serve(ln) }()
	log.Infof("debug server listening at %d...", port)
	return nil
}

func (a *Application) waitForStopSignal() os.Signal {
	signal.Notify(a.waitStopCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	return <-a.waitStopCh
}

func (a *Application) gracefullyShutdown() error {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(a.shutDownWaitSecs))
	defer cancel()

	select {
	case <-a.shutdown(ctx):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Application) shutdown(ctx context.Context) <-chan bool {
	c := make(chan bool, 1)
	go func() {
		if a.debugSrv != nil {
			_ = a.debugSrv.Shutdown(ctx)
		}
		if a.comps != nil {
			_ = a.comps.Shutdown(ctx)
		}
		_ = a.c2s.Shutdown(ctx)
		if a.s2s != nil {
			_ = a.s2s.Shutdown(ctx)
		}
		a.pool.Stop()
		if closer, ok := a.appBus.(io.Closer); ok {
			_ = closer.Close()
		}
		_ = a.reps.Close(ctx)
		log.Unset()
		c <- true
	}()
	return c
}
