package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/yapyard-server/internal/client"
	"github.com/vovakirdan/yapyard-server/internal/config"
	applog "github.com/vovakirdan/yapyard-server/internal/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chatcli: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	server      string
	email       string
	password    string
	signupName  string
	bio         string
	seenWorkers int
	logLevel    string
}

func newRootCommand() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "chatcli",
		Short:         "Terminal client for yapyard",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&opts.email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.password, "password", "", "account password")
	cmd.Flags().StringVar(&opts.signupName, "signup", "", "create the account with this full name before logging in")
	cmd.Flags().StringVar(&opts.bio, "bio", "yapping on yapyard", "bio used with --signup")
	cmd.Flags().IntVar(&opts.seenWorkers, "seen-workers", config.Default().SeenWorkers, "background mark-seen workers")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "trace, debug, info, warn or error")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	logger := applog.NewWithWriter(opts.logLevel, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	api := client.NewAPI(strings.TrimRight(opts.server, "/"))
	var (
		me  client.Contact
		err error
	)
	if opts.signupName != "" {
		me, err = api.Signup(ctx, client.SignupInput{
			FullName: opts.signupName,
			Email:    opts.email,
			Password: opts.password,
			Bio:      opts.bio,
		})
	} else {
		me, err = api.Login(ctx, opts.email, opts.password)
	}
	if err != nil {
		return err
	}

	session, err := client.NewSession(api, client.SessionConfig{
		SocketURL:   socketURL(opts.server),
		SeenWorkers: opts.seenWorkers,
	}, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Connect(ctx); err != nil {
		return err
	}
	if err := session.LoadContacts(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		if err := session.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("connection lost")
		}
	}()

	ui := &terminal{session: session, out: out}
	fmt.Fprintf(out, "Logged in as %s (%s). Type /help for commands.\n", me.FullName, me.ID)
	ui.printContacts()

	go ui.printUpdates(ctx)
	ui.readCommands(ctx, in)
	return nil
}

func socketURL(server string) string {
	base := strings.TrimRight(server, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}
