// Command routeros-cli is a small, runnable surface over the routeros
// client library: it issues one-shot commands and consumes long-lived
// streams from a command line, following the cobra-based command tree
// this pack's own MikroTik tooling already uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/firadio/routeros"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	log        zerolog.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "routeros-cli",
		Short: "Talk to a MikroTik RouterOS API over TCP/TLS",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).
				With().Timestamp().Logger()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "trace, debug, info, warn, error")

	root.AddCommand(runCmd(), listenCmd(), torchCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func dial(ctx context.Context) (*routeros.Connection, error) {
	cfg, err := routeros.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return routeros.Dial(ctx, cfg, routeros.WithLogger(log))
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <menu> [=key=value...]",
		Short: "Issue a one-shot command and print its replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			conn, err := dial(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			ch, err := conn.Write(args)
			if err != nil {
				return err
			}
			reply, err := ch.Result()
			if err != nil {
				return err
			}
			for _, row := range reply.Re {
				fmt.Println(formatRow(row))
			}
			log.Debug().Int("rows", len(reply.Re)).Msg("command done")
			return nil
		},
	}
}

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen <menu> [=key=value...]",
		Short: "Open a long-lived stream and print data as it arrives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd.Context(), args)
		},
	}
}

func torchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "torch <interface>",
		Short: "Stream /tool/torch for an interface, printing section snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd.Context(), []string{"/tool/torch", "=interface=" + args[0]})
		},
	}
}

func runStream(ctx context.Context, words []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stream, err := conn.Stream(words)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	stream.OnData(func(rows []map[string]string, err error) {
		if err != nil {
			log.Error().Err(err).Msg("stream ended")
			close(done)
			return
		}
		if len(rows) == 0 {
			log.Debug().Msg("debounce tick: no changes")
			return
		}
		for _, row := range rows {
			fmt.Println(formatRow(row))
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		return stream.Stop()
	case <-done:
		return nil
	}
}

func formatRow(row map[string]string) string {
	var b strings.Builder
	first := true
	for k, v := range row {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}
