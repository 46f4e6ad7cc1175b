package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/CyCoreSystems/amigo/ami"
	"github.com/CyCoreSystems/amigo/bus"
	"github.com/CyCoreSystems/amigo/config"
	"github.com/CyCoreSystems/amigo/transport"
)

var (
	configPath string
	host       string
	port       int
	username   string
	secret     string
	useMD5     bool
	busURL     string
	busPrefix  string

	log     log15.Logger
	conn    *ami.Conn
	busSink bus.Sink
)

func main() {
	log = log15.New()
	log.SetHandler(log15.StreamHandler(os.Stderr, log15.TerminalFormat()))

	if err := rootCmd().Execute(); err != nil {
		log.Error("amigo: command failed", "error", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "amigo",
		Short: "A command-line client for the Asterisk Manager Interface",
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (YAML/JSON/TOML)")
	root.PersistentFlags().StringVar(&host, "host", "", "AMI host (overrides config)")
	root.PersistentFlags().IntVar(&port, "port", 0, "AMI port (overrides config)")
	root.PersistentFlags().StringVar(&username, "user", "", "AMI username (overrides config)")
	root.PersistentFlags().StringVar(&secret, "secret", "", "AMI secret (overrides config)")
	root.PersistentFlags().BoolVar(&useMD5, "md5", true, "use MD5 challenge/response login")
	root.PersistentFlags().StringVar(&busURL, "bus", "", "fan events out to this message bus URL, e.g. nats://localhost:4222 (overrides config, disabled if empty)")
	root.PersistentFlags().StringVar(&busPrefix, "bus-prefix", "", "subject/routing-key prefix for --bus (overrides config)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return connectAndLogin(cmd.Context())
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if busSink != nil {
			if err := busSink.Close(); err != nil {
				log.Warn("amigo: bus close failed", "error", err)
			}
		}
		if conn != nil {
			conn.Close()
		}
	}

	root.AddCommand(pingCmd(), originateCmd(), sendActionCmd())
	return root
}

func connectAndLogin(ctx context.Context) error {
	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		return err
	}
	if host != "" {
		cfg.AMI.Host = host
	}
	if port != 0 {
		cfg.AMI.Port = port
	}
	if username != "" {
		cfg.AMI.Username = username
	}
	if secret != "" {
		cfg.AMI.Secret = secret
	}
	if busURL != "" {
		cfg.Bus.URL = busURL
	}
	if busPrefix != "" {
		cfg.Bus.Prefix = busPrefix
	}

	tr, err := transport.Dial(cfg.AMI.Address(), nil, log)
	if err != nil {
		return fmt.Errorf("amigo: dialing %s: %w", cfg.AMI.Address(), err)
	}

	conn = ami.NewConn(tr, ami.WithLogger(log))
	go tr.Serve(conn)

	loginCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var login *ami.Pending[ami.ActionResult]
	if useMD5 {
		login = conn.LoginMD5(cfg.AMI.Username, cfg.AMI.Secret)
	} else {
		login = conn.LoginPlain(cfg.AMI.Username, cfg.AMI.Secret)
	}

	if _, err := login.Wait(loginCtx); err != nil {
		conn.Close()
		return fmt.Errorf("amigo: login failed: %w", err)
	}

	busSink, err = wireBus(conn, bus.Config{URL: cfg.Bus.URL, Prefix: cfg.Bus.Prefix, Log: log})
	if err != nil {
		conn.Close()
		return fmt.Errorf("amigo: connecting bus %s: %w", cfg.Bus.URL, err)
	}

	return nil
}
