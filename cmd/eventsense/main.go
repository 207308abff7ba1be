package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hrygo/eventsense/internal/observability"
	"github.com/hrygo/eventsense/internal/profile"
	"github.com/hrygo/eventsense/server"
)

// version is set at build time.
var version = "dev"

var (
	v          = profile.NewViper()
	configPath string

	instanceProfile *profile.Profile
	logger          *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "eventsense",
		Short:         "Turn free text into structured calendar events.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			p, err := profile.Load(v, configPath)
			if err != nil {
				return err
			}
			p.Version = version
			instanceProfile = p
			logger = observability.NewLogger(cmd.ErrOrStderr(), p.Log.Level, p.Log.Format)
			slog.SetDefault(logger)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the parser over HTTP.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			deps, err := newDependencies(ctx, instanceProfile, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			s, err := server.NewServer(ctx, instanceProfile, deps.parser, deps.metrics, logger)
			if err != nil {
				return err
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			if err := s.Start(ctx); err != nil {
				return err
			}
			printGreetings(cmd, instanceProfile, deps)

			<-c
			s.Shutdown(ctx)
			return nil
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	pf.String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	pf.String("timezone", "UTC", "IANA time zone relative dates resolve in")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("llm-provider", "none", "LLM provider (none, openai, deepseek, siliconflow, ollama)")

	serveCmd.Flags().String("addr", "", "address of server")
	serveCmd.Flags().Int("port", 8081, "port of server")

	bindFlags(pf, map[string]string{
		"mode":         "mode",
		"timezone":     "timezone",
		"log.level":    "log-level",
		"log.format":   "log-format",
		"llm.provider": "llm-provider",
	})
	bindFlags(serveCmd.Flags(), map[string]string{
		"addr": "addr",
		"port": "port",
	})

	rootCmd.AddCommand(serveCmd)
	addExtractCommands(rootCmd)
}

// bindFlags maps config keys to flags so flags override file and env values.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func printGreetings(cmd *cobra.Command, p *profile.Profile, deps *dependencies) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "eventsense %s started in %s mode\n", p.Version, p.Mode)
	fmt.Fprintf(out, "  listening on %s:%d\n", p.Addr, p.Port)
	fmt.Fprintf(out, "  llm provider: %s\n", deps.parser.Provider().Name())
	fmt.Fprintf(out, "  cache tiers: %v\n", deps.store.Tiers())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
