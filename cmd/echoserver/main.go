// Command echoserver wires config, logx, version, and server together into
// a runnable echo service, mirroring the echo round-trip seed scenario.
// Grounded on 1ureka-roj1's cmd entrypoint shape (flat wiring of config,
// logging, and the core runtime type with no framework in between).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tinyreactor/tinyreactor/internal/buffer"
	"github.com/tinyreactor/tinyreactor/internal/config"
	"github.com/tinyreactor/tinyreactor/internal/conn"
	"github.com/tinyreactor/tinyreactor/internal/eventloop"
	"github.com/tinyreactor/tinyreactor/internal/logx"
	"github.com/tinyreactor/tinyreactor/internal/netaddr"
	"github.com/tinyreactor/tinyreactor/internal/server"
	"github.com/tinyreactor/tinyreactor/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to a key=value config file (optional)")
	listenAddr := flag.String("listen", "127.0.0.1:9981", "address to listen on")
	workers := flag.Int("workers", 3, "worker loop count (0 runs everything on the base loop)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		logx.EnableDebug()
	}

	v := version.MustCurrent()
	logx.Info("echoserver: starting, build version %s", v.String())

	cfg := &config.Config{
		ListenAddr:    *listenAddr,
		WorkerCount:   *workers,
		HighWaterMark: server.DefaultHighWaterMark,
		PollTimeoutMS: 10000,
	}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logx.Fatal("echoserver: %v", err)
		}
		cfg = loaded
	}

	addr, err := netaddr.Parse(cfg.ListenAddr)
	if err != nil {
		logx.Fatal("echoserver: %v", err)
	}

	runtime.LockOSThread()
	baseLoop := eventloop.New()

	srv := server.New(baseLoop, "echoserver", addr, cfg.WorkerCount, cfg.ReusePort)
	srv.SetHighWaterMark(cfg.HighWaterMark)

	srv.SetConnectionCallback(func(c *conn.Conn) {
		if c.Connected() {
			logx.Info("echoserver: %s connected (%s -> %s)", c.Name(), c.PeerAddress(), c.LocalAddress())
		} else {
			logx.Info("echoserver: %s disconnected", c.Name())
		}
	})
	srv.SetMessageCallback(func(c *conn.Conn, in *buffer.Buffer, receivedAt time.Time) {
		msg := in.RetrieveAllAsString()
		c.Send([]byte(msg))
	})
	srv.SetHighWaterMarkCallback(func(c *conn.Conn, bytes int) {
		logx.Warning("echoserver: %s crossed high water mark at %d bytes", c.Name(), bytes)
	}, cfg.HighWaterMark)

	if *configPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			if updated.ListenAddr != cfg.ListenAddr || updated.WorkerCount != cfg.WorkerCount {
				logx.Warning("echoserver: listen_addr/worker_count changed on reload; ignored until restart")
			}
			srv.SetHighWaterMark(updated.HighWaterMark)
			if updated.LogLevel == "debug" {
				logx.EnableDebug()
			}
		}); err != nil {
			logx.Warning("echoserver: config watch disabled: %v", err)
		}
	}

	srv.Start()
	logx.Info("echoserver: listening on %s with %d worker(s)", addr, cfg.WorkerCount)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logx.Info("echoserver: shutting down")
		srv.Stop()
		time.Sleep(200 * time.Millisecond)
		baseLoop.Quit()
	}()

	baseLoop.Loop()
	baseLoop.Close()
}
