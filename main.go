package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/polis-engine/polis/agent"
	"github.com/polis-engine/polis/catalog"
	"github.com/polis-engine/polis/engine"
	"github.com/polis-engine/polis/ipc"
)

const banner = `
██████╗  ██████╗ ██╗     ██╗███████╗
██╔══██╗██╔═══██╗██║     ██║██╔════╝
██████╔╝██║   ██║██║     ██║███████╗
██╔═══╝ ██║   ██║██║     ██║╚════██║
██║     ╚██████╔╝███████╗██║███████║
╚═╝      ╚═════╝ ╚══════╝╚═╝╚══════╝

City Production Intelligence`

func main() {
	var (
		socketPath  = flag.String("socket", "/tmp/polis.sock", "unix socket the game host connects to")
		catalogPath = flag.String("catalog", "", "constructible catalog YAML (required)")
		profilePath = flag.String("profile", "", "weight profile YAML (default: built-in balanced profile)")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	fmt.Println(banner)

	if *catalogPath == "" {
		slog.Error("missing required -catalog flag")
		os.Exit(1)
	}

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "path", *catalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "path", *catalogPath, "items", cat.Len())

	profile := engine.DefaultProfile()
	if *profilePath != "" {
		profile, err = engine.LoadProfile(*profilePath)
		if err != nil {
			slog.Error("failed to load profile", "path", *profilePath, "error", err)
			os.Exit(1)
		}
	}

	// Fail configuration problems before accepting any connection.
	if _, err := engine.New(cat, profile); err != nil {
		slog.Error("invalid profile", "profile", profile.Name, "error", err)
		os.Exit(1)
	}
	slog.Info("profile active", "profile", profile.Name)

	// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
	if err := os.RemoveAll(*socketPath); err != nil {
		slog.Error("failed to clean up socket", "path", *socketPath, "error", err)
		os.Exit(1)
	}

	listener, err := net.Listen("unix", *socketPath)
	if err != nil {
		slog.Error("failed to listen on socket", "path", *socketPath, "error", err)
		os.Exit(1)
	}
	defer listener.Close()
	defer os.Remove(*socketPath)

	slog.Info("listening on domain socket", "path", *socketPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					slog.Error("failed to accept connection", "error", err)
					continue
				}
			}
			slog.Info("new connection accepted")
			go handleConn(conn, cat, profile)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

// handleConn gives each session its own engine so a hello-supplied profile
// never bleeds into other games. The catalog is immutable and shared.
func handleConn(conn net.Conn, cat *catalog.Catalog, profile engine.Profile) {
	eng, err := engine.New(cat, profile)
	if err != nil {
		slog.Error("failed to build engine", "error", err)
		conn.Close()
		return
	}

	c := ipc.NewConnection(conn, nil)
	a := agent.New(c, eng)
	c.RegisterHandler(ipc.TypeHello, a.HandleHello)
	c.RegisterHandler(ipc.TypeTurn, a.HandleTurn)
	c.ReadLoop()
}
