// Package main contains the cli implementation of the EZDB server. It uses
// the cobra package for cli tool implementation.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/flynn/noise"
	"github.com/spf13/cobra"

	"ezdb/internal/config"
	"ezdb/internal/persist"
	"ezdb/internal/store"
	"ezdb/internal/transport"
	"ezdb/internal/worker"
)

type serveFlags struct {
	configPath string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "ezdbd",
		Short: "EZDB server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the EZDB server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(flags)
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "ezdbd.toml", "Path to the server's TOML configuration file")
	return cmd
}

func runServe(flags *serveFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db := store.New()

	persister, err := persist.NewDirPersister(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("init persistence: %w", err)
	}

	pool := worker.New(cfg.Workers, db, persister, nil, os.Stderr)
	defer pool.Close()

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	defer func() { _ = listener.Close() }()

	fmt.Printf("ezdbd listening on %s (workers=%d, buffer_pool_size=%s)\n", cfg.ListenAddr, cfg.Workers, cfg.BufferPoolSize.HumanReadable())

	staticKey, err := noise.DH25519.GenerateKeypair(nil)
	if err != nil {
		return fmt.Errorf("generate server keypair: %w", err)
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Fprintf(os.Stderr, "accept: %v\n", err)
			continue
		}
		go acceptConn(conn, staticKey, pool)
	}
}

func acceptConn(conn net.Conn, staticKey noise.DHKey, pool *worker.Pool) {
	session, err := transport.NewNoiseSession(conn, false, staticKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "handshake with %s: %v\n", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	pool.Enqueue(session)
}
