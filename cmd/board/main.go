package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-board/internal/api/client"
	"github.com/spec-kit/ticket-board/internal/auth"
	"github.com/spec-kit/ticket-board/internal/config"
	"github.com/spec-kit/ticket-board/internal/domain"
	"github.com/spec-kit/ticket-board/internal/events"
	"github.com/spec-kit/ticket-board/internal/observability"
	"github.com/spec-kit/ticket-board/internal/persistence"
	"github.com/spec-kit/ticket-board/internal/realtime"
	"github.com/spec-kit/ticket-board/internal/repository"
	"github.com/spec-kit/ticket-board/internal/service"
	"github.com/spec-kit/ticket-board/internal/tui"
	"github.com/spec-kit/ticket-board/internal/worker"
)

const usage = `board is a terminal kanban board for the ticket backend.

Usage:
  board [run]              open the board
  board import-session     store a token issued by the login page
  board logout             clear the stored session

Flags:
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	command := "run"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	var envFiles []string
	flagSet := pflag.NewFlagSet("board "+command, pflag.ContinueOnError)
	flagSet.StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the environment")
	flagSet.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flagSet.PrintDefaults()
	}

	var token, userID, userName, userEmail string
	if command == "import-session" {
		flagSet.StringVar(&token, "token", "", "bearer token issued by the login page")
		flagSet.StringVar(&userID, "user-id", "", "id of the signed-in user")
		flagSet.StringVar(&userName, "user-name", "", "display name of the signed-in user")
		flagSet.StringVar(&userEmail, "user-email", "", "email of the signed-in user")
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, err := persistence.OpenLocalStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open local storage: %w", err)
	}
	defer storage.Close()

	switch command {
	case "run":
		return runBoard(ctx, cfg, logger, storage)
	case "import-session":
		if token == "" || userID == "" {
			return errors.New("--token and --user-id are required")
		}
		identity := domain.Identity{ID: userID, Name: userName, Email: userEmail}
		if err := auth.ImportSession(ctx, storage, token, identity, time.Now()); err != nil {
			return err
		}
		logger.Info("session imported", zap.String("user_id", userID))
		fmt.Println("session stored")
		return nil
	case "logout":
		guard := auth.NewSessionGuard(storage, logger, nil)
		guard.Logout(ctx)
		fmt.Println("signed out")
		return nil
	default:
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// loginRedirect remembers why the session ended so the login hint can be
// shown once the terminal is released.
type loginRedirect struct {
	mu      sync.Mutex
	reason  domain.InvalidReason
	program *tea.Program
}

func (r *loginRedirect) redirect(reason domain.InvalidReason) {
	r.mu.Lock()
	r.reason = reason
	program := r.program
	r.mu.Unlock()
	if program != nil {
		program.Quit()
	}
}

func (r *loginRedirect) attach(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.program = p
}

func (r *loginRedirect) hint(loginURL string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.reason {
	case "":
		return ""
	case domain.InvalidReasonLogout:
		return "signed out"
	}
	return fmt.Sprintf("session %s: sign in at %s, then run `board import-session`", r.reason, loginURL)
}

func runBoard(ctx context.Context, cfg *config.Config, logger *zap.Logger, storage *persistence.LocalStorage) error {
	redirect := &loginRedirect{}
	guard := auth.NewSessionGuard(storage, logger, redirect.redirect)
	if err := guard.Activate(ctx); err != nil {
		fmt.Fprintln(os.Stderr, redirect.hint(cfg.App.LoginURL))
		return err
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(func(e events.Event, err error) {
		logger.Warn("event handler failed", zap.String("event", string(e.Type)), zap.Error(err))
	})

	api := client.NewCardsClient(cfg.API, guard, logger, metrics)
	store := repository.NewTicketStore()
	roster := repository.NewTeamRoster()
	changes := tui.ChangeSignal(store)

	board := service.NewBoardService(service.BoardDependencies{
		Store:             store,
		Roster:            roster,
		API:               api,
		Gate:              guard,
		Logger:            logger,
		ResyncOnReconnect: cfg.Realtime.ResyncOnReconnect,
	})
	form := service.NewFormController(api, store, roster, guard, logger)
	worker.StartSyncWorker(board, dispatcher)

	transport, closeTransport, err := newTransport(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	channel := realtime.NewChannel(transport, guard, dispatcher, logger, metrics, realtime.Options{
		ReconnectAttempts: cfg.Realtime.ReconnectAttempts,
		ReconnectDelay:    cfg.Realtime.ReconnectDelay(),
	})
	guard.OnInvalidate(channel.Close)
	if err := channel.Start(ctx); err != nil {
		return err
	}
	defer channel.Close()

	model := tui.NewModel(ctx, tui.Options{
		Board:   board,
		Form:    form,
		Session: guard,
		Channel: channel,
		Changes: changes,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	redirect.attach(program)

	go func() {
		if waitForShutdown(ctx, logger) {
			program.Quit()
		}
	}()

	_, runErr := program.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}

	snapshot := metrics.Snapshot()
	logger.Info("board closed",
		zap.Any("requests", snapshot.Requests),
		zap.Any("errors", snapshot.Errors),
		zap.Any("events", snapshot.Events),
		zap.Any("latency", snapshot.Latency))

	if hint := redirect.hint(cfg.App.LoginURL); hint != "" {
		fmt.Fprintln(os.Stderr, hint)
	}
	return runErr
}

// newTransport picks the sync channel transport from configuration.
func newTransport(ctx context.Context, cfg *config.Config, logger *zap.Logger) (realtime.Transport, func(), error) {
	switch cfg.Realtime.Transport {
	case config.TransportRedis:
		r := persistence.NewRedis(ctx, cfg.Redis, logger)
		return realtime.NewRedisTransport(r.Client, r.Channel), r.Close, nil
	default:
		endpoint, err := cfg.Realtime.SocketEndpoint()
		if err != nil {
			return nil, nil, fmt.Errorf("socket endpoint: %w", err)
		}
		logger.Info("realtime endpoint", zap.String("url", endpoint))
		return realtime.NewWebSocketTransport(endpoint, cfg.Realtime.ReadTimeout()), func() {}, nil
	}
}

// waitForShutdown reports whether a termination signal arrived before ctx ended.
func waitForShutdown(ctx context.Context, logger *zap.Logger) bool {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		return true
	case <-ctx.Done():
		return false
	}
}
