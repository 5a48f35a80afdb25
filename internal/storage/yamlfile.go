package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/conorfennell/wordstage/internal/domain"
)

// ErrNotFound is returned by Load when no card set has been saved yet.
var ErrNotFound = errors.New("card set not found")

// yamlDocument mirrors the data.yaml layout: a top-level "cards" list.
type yamlDocument struct {
	Cards []yamlCard `yaml:"cards"`
}

type yamlCard struct {
	English            string     `yaml:"english"`
	Target             string     `yaml:"target"`
	Stage              int        `yaml:"stage"`
	NextReview         *time.Time `yaml:"nextReview"`
	LastReviewFailures int        `yaml:"lastReviewFailures,omitempty"`
}

// FileBackend stores the card set in a single YAML file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the YAML file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the file location.
func (b *FileBackend) Path() string {
	return b.path
}

// Load reads and decodes the card file.
func (b *FileBackend) Load(ctx context.Context) ([]domain.Card, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", b.path, err)
	}

	cards := make([]domain.Card, 0, len(doc.Cards))
	for _, yc := range doc.Cards {
		cards = append(cards, domain.Card{
			English:            yc.English,
			Target:             yc.Target,
			Stage:              domain.Stage(yc.Stage),
			NextReview:         yc.NextReview,
			LastReviewFailures: yc.LastReviewFailures,
		})
	}
	return cards, nil
}

// Save replaces the file with the given cards. The data is written to a
// temporary file in the same directory and renamed over the old one, so a
// reader sees either the previous or the new card set.
func (b *FileBackend) Save(ctx context.Context, cards []domain.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := yamlDocument{Cards: make([]yamlCard, 0, len(cards))}
	for _, c := range cards {
		doc.Cards = append(doc.Cards, yamlCard{
			English:            c.English,
			Target:             c.Target,
			Stage:              int(c.Stage),
			NextReview:         c.NextReview,
			LastReviewFailures: c.LastReviewFailures,
		})
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to encode cards: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", b.path, err)
	}
	return nil
}
