// Command classbook is the terminal client for the classbook reservation API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"classbook/internal/apiclient"
	"classbook/internal/apperr"
	"classbook/internal/catalog"
	"classbook/internal/config"
	"classbook/internal/events"
	"classbook/internal/reservations"
	"classbook/internal/session"
)

type app struct {
	cfg      *config.Config
	client   *apiclient.Client
	session  *session.Session
	catalog  *catalog.Cache
	bookings *reservations.Manager
	bus      *events.Bus
	logger   zerolog.Logger
	out      io.Writer
	loc      *time.Location
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"status":       {"show the signed-in user and what is loaded", runStatus},
	"signin":       {"-email E -password P", runSignIn},
	"signup":       {"-name N -email E -password P", runSignUp},
	"signout":      {"forget the stored token", runSignOut},
	"whoami":       {"print the signed-in user", runWhoAmI},
	"profile":      {"[-name N] [-email E]", runProfile},
	"rooms":        {"[-q text] [-min-capacity N] [-equipment a,b] [-sort name-asc|name-desc|cap-asc|cap-desc]", runRooms},
	"room":         {"ID", runRoom},
	"create-room":  {"-name N -capacity N -equipment a,b", runCreateRoom},
	"book":         {"-room ID -start 'YYYY-MM-DD HH:MM' -end 'YYYY-MM-DD HH:MM'", runBook},
	"reservations": {"list upcoming and past reservations", runReservations},
	"cancel":       {"ID [ID...]", runCancel},
	"export":       {"[-out reservations.xlsx]", runExport},
}

func main() {
	configPath := flag.String("config", os.Getenv("CLASSBOOK_CONFIG_PATH"), "path to config.yaml")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}

	if err := config.LoadEnv(); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, &logger, os.Stdout)
	a.session.Restore(ctx)

	if err := cmd.run(ctx, a, flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		stop()
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, logger *zerolog.Logger, out io.Writer) *app {
	bus := events.NewBus()

	client := apiclient.New(cfg.Client.BaseURL, cfg.ClientTimeout(), nil, logger)
	if ttl := cfg.RedisCacheTTL(); ttl > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, ttl)
	}

	sess := session.New(&session.FileTokenStore{Path: cfg.TokenPath()}, client, logger, bus)
	client.SetTokenSource(sess)
	client.OnUnauthorized(sess.Invalidate)

	a := &app{
		cfg:      cfg,
		client:   client,
		session:  sess,
		catalog:  catalog.NewCache(client, sess, logger, bus),
		bookings: reservations.NewManager(client, sess, logger, bus),
		bus:      bus,
		logger:   logger.With().Str("component", "cli").Logger(),
		out:      out,
		loc:      time.Local,
	}

	bus.Subscribe(events.SessionSignedOut, func(events.Event) error {
		a.catalog.Reset()
		a.bookings.Reset()
		return nil
	})
	// The list is stale once a reservation was added; the next Fetch reloads it.
	bus.Subscribe(events.ReservationCreated, func(events.Event) error {
		a.bookings.Reset()
		return nil
	})
	return a
}

// loadAll fetches the catalog and the user's reservations concurrently.
func (a *app) loadAll(ctx context.Context) error {
	var (
		wg          sync.WaitGroup
		roomsErr    error
		bookingsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		roomsErr = a.catalog.Refresh(ctx)
	}()
	go func() {
		defer wg.Done()
		bookingsErr = a.bookings.Fetch(ctx)
	}()
	wg.Wait()
	return errors.Join(roomsErr, bookingsErr)
}

func describe(err error) string {
	switch {
	case errors.Is(err, apperr.AuthenticationMissing):
		return "not signed in: run `classbook signin` first"
	case errors.Is(err, apperr.AuthenticationInvalid):
		return "session expired or rejected: sign in again"
	case errors.Is(err, apperr.NetworkFailure):
		return fmt.Sprintf("cannot reach the server: %v", err)
	default:
		return fmt.Sprintf("error: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: classbook [-config path] [-v] <command> [flags]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-13s %s\n", name, commands[name].usage)
	}
}
