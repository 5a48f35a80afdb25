package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/wordstage/internal/cardstore"
	"github.com/conorfennell/wordstage/internal/config"
	"github.com/conorfennell/wordstage/internal/review"
	"github.com/conorfennell/wordstage/internal/srs"
	"github.com/conorfennell/wordstage/internal/storage"
	"github.com/conorfennell/wordstage/internal/web"
	"github.com/conorfennell/wordstage/internal/writing"
)

const usage = `Usage: wordstage [flags] <command> [args]

Commands:
  review                  review the cards that are due (default)
  add <english> <target>  add a card
  remove <id>             remove a card
  list                    list every card
  stats                   show the due count and tier counts
  import <dir|git-url>    import the cards of markdown deck files
  words                   show the words for a writing exercise
  write [file]            evaluate a text read from file or stdin
  serve                   run the JSON HTTP API

Flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every command needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *cardstore.Store
	engine  *srs.Engine
	session *review.Session
	in      io.Reader
	out     io.Writer
}

func run(args []string, in io.Reader, out, errOut io.Writer) error {
	flags := pflag.NewFlagSet("wordstage", pflag.ContinueOnError)
	flags.SetOutput(errOut)
	flags.Usage = func() {
		fmt.Fprint(errOut, usage)
		flags.PrintDefaults()
	}
	config.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg, errOut)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := openBackend(cfg.Store)
	if err != nil {
		return err
	}
	defer closeBackend()

	store, err := cardstore.Open(ctx, backend, logger)
	if err != nil {
		return err
	}

	mode, err := review.ParseMode(cfg.Review.Direction)
	if err != nil {
		return err
	}
	engine := srs.NewEngine(nil)
	session := review.NewSession(store, engine, logger)
	session.BatchSize = cfg.Review.BatchSize
	session.Mode = mode

	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		engine:  engine,
		session: session,
		in:      in,
		out:     out,
	}

	command, rest := "review", []string(nil)
	if flags.NArg() > 0 {
		command, rest = flags.Arg(0), flags.Args()[1:]
	}

	switch command {
	case "review":
		return a.review(ctx, time.Now)
	case "add":
		return a.add(ctx, rest)
	case "remove":
		return a.remove(ctx, rest)
	case "list":
		return a.list()
	case "stats":
		return a.stats(time.Now())
	case "import":
		return a.importDeck(ctx, rest)
	case "words":
		return a.words()
	case "write":
		return a.write(ctx, rest)
	case "serve":
		return a.serve(ctx)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// openBackend returns the configured card store backend and a function that
// releases it.
func openBackend(cfg config.StoreConfig) (cardstore.Backend, func() error, error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := storage.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return storage.NewFileBackend(cfg.Path), func() error { return nil }, nil
	}
}

// newEvaluator builds the Gemini evaluator from the writing settings.
func (a *app) newEvaluator(ctx context.Context) (writing.Evaluator, error) {
	return writing.NewGeminiEvaluator(ctx, a.logger, writing.GeminiConfig{
		APIKey:     a.cfg.Writing.APIKey,
		Model:      a.cfg.Writing.Model,
		MaxRetries: a.cfg.Writing.MaxRetries,
	})
}

func (a *app) serve(ctx context.Context) error {
	opts := web.Options{
		WordCount: a.cfg.Writing.Words,
		Level:     a.cfg.Writing.Level,
	}
	evaluator, err := a.newEvaluator(ctx)
	if err != nil {
		a.logger.Warn("Writing evaluation disabled", "error", err)
	} else {
		opts.Evaluator = evaluator
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           web.NewServer(a.store, a.engine, a.session, a.logger, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
