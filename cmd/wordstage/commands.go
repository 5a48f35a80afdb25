package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/conorfennell/wordstage/internal/importer"
	"github.com/conorfennell/wordstage/internal/review"
	"github.com/conorfennell/wordstage/internal/srs"
	"github.com/conorfennell/wordstage/internal/writing"
)

// review runs an interactive session on the app's input. A blank line asks
// the same card again; end of input stops early and commits what was answered
// correctly so far.
func (a *app) review(ctx context.Context, clock func() time.Time) error {
	now := clock()
	a.session.Due(now)
	if drawn := a.session.Start(now); drawn == 0 {
		fmt.Fprintln(a.out, "Nothing to review.")
		return nil
	}

	scanner := bufio.NewScanner(a.in)
	for ctx.Err() == nil {
		prompt, ok := a.session.Current()
		if !ok {
			var err error
			prompt, err = a.session.Next()
			if errors.Is(err, review.ErrSessionComplete) {
				break
			}
		}

		st := a.session.Status()
		fmt.Fprintf(a.out, "[%d left, %d done] %s: ", st.InReview, st.Reviewed, prompt.Shown())
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			break
		}

		outcome, err := a.session.Check(scanner.Text())
		if err != nil {
			return err
		}
		switch {
		case !outcome.Checked:
		case outcome.Correct:
			fmt.Fprintln(a.out, "Correct.")
		default:
			fmt.Fprintf(a.out, "Wrong, expected: %s\n", prompt.Direction.Expected(prompt.Card))
		}
	}

	reviewed := a.session.Status().Reviewed
	if err := a.session.End(context.WithoutCancel(ctx), clock()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Reviewed %d cards, %d still due.\n", reviewed, a.session.Status().Backlog)
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("add needs an english word and its translation")
	}
	card, added, err := a.store.Add(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(a.out, "Already known: %s (%s)\n", card.English, card.ID)
		return nil
	}
	fmt.Fprintf(a.out, "Added %s → %s (%s)\n", card.English, card.Target, card.ID)
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("remove needs a card id")
	}
	if err := a.store.Remove(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Removed %s\n", args[0])
	return nil
}

func (a *app) list() error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENGLISH\tTARGET\tSTAGE\tNEXT REVIEW")
	for _, c := range a.store.Cards() {
		next := "-"
		if c.NextReview != nil {
			next = c.NextReview.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID[:12], c.English, c.Target, c.Stage, next)
	}
	return tw.Flush()
}

func (a *app) stats(now time.Time) error {
	cards := a.store.Cards()
	counts := srs.CountByTier(cards)
	fmt.Fprintf(a.out, "%d cards, %d due\n", len(cards), len(a.engine.CardsToReview(cards, now)))
	for t, n := range counts {
		fmt.Fprintf(a.out, "  %-12s %d\n", srs.Tier(t), n)
	}
	return nil
}

func (a *app) importDeck(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("import needs a directory or git URL")
	}
	report, err := importer.New(a.store, a.cfg.Import.ReposDir, a.logger).Import(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Found %d cards in %d files, %d new, %d errors.\n",
		report.Parsed, report.Files, report.Added, len(report.Errors))
	for _, e := range report.Errors {
		fmt.Fprintf(a.out, "- %s\n", e)
	}
	return nil
}

func (a *app) wordList() string {
	return writing.FormatWordList(writing.SelectWords(a.store.Cards(), a.cfg.Writing.Words))
}

func (a *app) words() error {
	fmt.Fprintln(a.out, writing.Instructions(a.wordList()))
	return nil
}

// write evaluates a text against the current word list. The text is read from
// the named file, or from the app's input when no file is given.
func (a *app) write(ctx context.Context, args []string) error {
	var (
		text []byte
		err  error
	)
	switch len(args) {
	case 0:
		text, err = io.ReadAll(a.in)
	case 1:
		text, err = os.ReadFile(args[0])
	default:
		return errors.New("write takes at most one file")
	}
	if err != nil {
		return fmt.Errorf("failed to read text: %w", err)
	}

	evaluator, err := a.newEvaluator(ctx)
	if err != nil {
		return err
	}
	eval, err := evaluator.Evaluate(ctx, writing.Request{
		Level:    a.cfg.Writing.Level,
		WordList: a.wordList(),
		Text:     strings.TrimSpace(string(text)),
	})
	if err != nil {
		return err
	}

	for _, c := range []struct {
		name       string
		assessment writing.Assessment
	}{
		{"Words", eval.Words},
		{"Spelling", eval.Spelling},
		{"Grammar", eval.Grammar},
		{"Semantics", eval.Semantics},
	} {
		fmt.Fprintf(a.out, "%s: %.1f/10\n  %s\n", c.name, c.assessment.Score, c.assessment.Feedback)
	}
	fmt.Fprintf(a.out, "\n%s\n\n%s\n\nFinal score: %.1f/10\n", eval.Summary, eval.CorrectedText, eval.FinalScore())
	return nil
}
