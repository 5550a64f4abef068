package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

// extensions are tried in order for each dimension file.
var extensions = []string{".yaml", ".yml", ".json"}

// Slug turns a destination into its directory name: "Hà Nội" -> "ha-noi".
func Slug(destination string) string {
	return strings.ReplaceAll(itinerary.NormalizeName(destination), " ", "-")
}

// FileSource reads records from <dir>/<destination-slug>/<dimension>.{yaml,yml,json}.
// A file holds a list of records. Missing files yield no records.
type FileSource struct {
	dir    string
	logger zerolog.Logger

	mu      sync.RWMutex
	cache   map[string][]itinerary.Record
	watcher *fsnotify.Watcher
}

// NewFileSource creates a file-backed reference source rooted at dir.
func NewFileSource(dir string, logger zerolog.Logger) *FileSource {
	return &FileSource{
		dir:    dir,
		logger: logger.With().Str("component", "reference-files").Logger(),
		cache:  make(map[string][]itinerary.Record),
	}
}

// FetchReferenceData returns the destination's records for dimension that are
// available during dates.
func (s *FileSource) FetchReferenceData(ctx context.Context, dimension itinerary.Dimension, destination string, dates itinerary.DateRange) ([]itinerary.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := s.load(Slug(destination), dimension)
	if err != nil {
		return nil, err
	}

	out := make([]itinerary.Record, 0, len(records))
	for _, rec := range records {
		if rec.AvailableDuring(dates) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func cacheKey(slug string, dimension itinerary.Dimension) string {
	return slug + "/" + string(dimension)
}

func (s *FileSource) load(slug string, dimension itinerary.Dimension) ([]itinerary.Record, error) {
	key := cacheKey(slug, dimension)

	s.mu.RLock()
	if cached, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	records, path, err := s.readDimension(slug, dimension)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = records
	s.mu.Unlock()

	if path != "" {
		s.logger.Debug().
			Str("path", path).
			Int("records", len(records)).
			Msg("Reference data loaded from file")
	}
	return records, nil
}

func (s *FileSource) readDimension(slug string, dimension itinerary.Dimension) ([]itinerary.Record, string, error) {
	base := filepath.Join(s.dir, slug, string(dimension))
	for _, ext := range extensions {
		path := base + ext
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, path, fmt.Errorf("failed to read reference file: %w", err)
		}

		records, err := parseRecords(path, data)
		if err != nil {
			return nil, path, err
		}
		return records, path, nil
	}
	return nil, "", nil
}

func parseRecords(path string, data []byte) ([]itinerary.Record, error) {
	var records []itinerary.Record
	var err error
	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, &records)
	} else {
		err = yaml.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference file %s: %w", path, err)
	}

	valid := records[:0]
	for _, rec := range records {
		if strings.TrimSpace(rec.Name) == "" {
			continue
		}
		valid = append(valid, rec)
	}
	return valid, nil
}

// Invalidate drops cached records for a destination slug, or everything when slug is empty.
func (s *FileSource) Invalidate(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slug == "" {
		s.cache = make(map[string][]itinerary.Record)
		return
	}
	prefix := slug + "/"
	for key := range s.cache {
		if strings.HasPrefix(key, prefix) {
			delete(s.cache, key)
		}
	}
}

// Watch invalidates cached records when files under the root change. It returns
// once the watcher is running; watching stops when ctx is done or Close is called.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	err = filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch reference directory: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go s.processEvents(ctx, watcher)

	s.logger.Info().Str("dir", s.dir).Msg("Started watching reference data")
	return nil
}

func (s *FileSource) processEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						s.logger.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch new directory")
					}
				}
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			slug := s.slugFor(event.Name)
			s.Invalidate(slug)
			s.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Str("destination", slug).
				Msg("Reference data changed")

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// slugFor returns the destination directory a changed path belongs to. Paths
// directly under the root invalidate everything.
func (s *FileSource) slugFor(path string) string {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

// Close stops watching.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

// Destinations lists the destination slugs present under the root.
func (s *FileSource) Destinations() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list reference directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
