package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/conorfennell/wordstage/internal/cardstore"
	"github.com/conorfennell/wordstage/internal/gitsource"
	"github.com/conorfennell/wordstage/internal/parser"
)

// Report summarizes one import.
type Report struct {
	Source string
	Files  int
	Parsed int
	Added  int
	Errors []error
}

// Importer adds the cards of markdown deck files to a store.
type Importer struct {
	store    *cardstore.Store
	reposDir string
	logger   *slog.Logger

	// syncRepo is gitsource.Sync, swapped in tests.
	syncRepo func(ctx context.Context, logger *slog.Logger, url, localPath string) error
}

// New returns an importer that clones git sources under reposDir.
func New(store *cardstore.Store, reposDir string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:    store,
		reposDir: reposDir,
		logger:   logger,
		syncRepo: gitsource.Sync,
	}
}

// IsGitSource reports whether source looks like a git URL rather than a path.
func IsGitSource(source string) bool {
	return strings.HasSuffix(source, ".git") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://")
}

// Import reads every .md deck under source, a directory or a git URL, and
// adds the pairs it finds. Duplicates are skipped; parse errors are collected
// in the report and do not stop the import.
func (im *Importer) Import(ctx context.Context, source string) (*Report, error) {
	report := &Report{Source: source}
	path := source

	if IsGitSource(source) {
		localPath, err := gitURLToLocalPath(im.reposDir, source)
		if err != nil {
			return nil, err
		}
		if err := im.syncRepo(ctx, im.logger, source, localPath); err != nil {
			return nil, fmt.Errorf("failed to sync %s: %w", source, err)
		}
		path = localPath
	}

	var pairs []cardstore.Pair
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		report.Files++
		filePairs, parseErr := parser.ParseFile(p)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", p, parseErr))
		}
		pairs = append(pairs, filePairs...)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, walkErr)
	}
	report.Parsed = len(pairs)

	added, err := im.store.AddAll(ctx, pairs)
	report.Added = added
	if err != nil {
		if errors.Is(err, cardstore.ErrPersist) {
			return report, err
		}
		report.Errors = append(report.Errors, err)
	}

	im.logger.Info("Import complete",
		"source", source,
		"files", report.Files,
		"parsed", report.Parsed,
		"added", report.Added,
		"errors", len(report.Errors),
	)
	return report, nil
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
