package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kikiluvv/cuepoint/internal/analyzer"
	"github.com/kikiluvv/cuepoint/internal/logging"
	"github.com/rs/zerolog"
)

// Key identifies one analysis of one version of a local file
type Key struct {
	URI            string
	Size           int64
	ModTime        time.Time
	SceneThreshold float64
	LoudnessWindow float64
}

// KeyFor stats the file behind uri. ok is false for sources that are not
// local files.
func KeyFor(uri string, settings analyzer.Settings) (key Key, ok bool, err error) {
	if !analyzer.IsLocal(uri) {
		return Key{}, false, nil
	}

	path := analyzer.LocalPath(uri)
	info, err := os.Stat(path)
	if err != nil {
		return Key{}, false, err
	}
	if abs, absErr := filepath.Abs(path); absErr == nil {
		path = abs
	}

	return Key{
		URI:            path,
		Size:           info.Size(),
		ModTime:        info.ModTime().UTC(),
		SceneThreshold: settings.SceneThreshold,
		LoudnessWindow: settings.LoudnessWindow,
	}, true, nil
}

// CachedAnalyzer serves repeat analyses of unchanged local files from the
// store and records fresh ones
type CachedAnalyzer struct {
	logger   zerolog.Logger
	store    *Store
	next     analyzer.Analyzer
	settings analyzer.Settings
}

// NewCachedAnalyzer wraps next with store
func NewCachedAnalyzer(logger zerolog.Logger, store *Store, next analyzer.Analyzer, settings analyzer.Settings) *CachedAnalyzer {
	return &CachedAnalyzer{
		logger:   logging.WithComponent(logger, "cache"),
		store:    store,
		next:     next,
		settings: settings,
	}
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, uri string) (*analyzer.Analysis, error) {
	key, ok, err := KeyFor(uri, c.settings)
	if err != nil || !ok {
		// remote sources are never cached; missing files are reported by next
		return c.next.Analyze(ctx, uri)
	}

	cached, hit, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("input", uri).Msg("cache lookup failed")
	}
	if hit {
		c.logger.Debug().Str("input", uri).Msg("cache hit")
		return cached, nil
	}

	result, err := c.next.Analyze(ctx, uri)
	if err != nil {
		return nil, err
	}

	if err := c.store.Put(ctx, key, result); err != nil {
		c.logger.Warn().Err(err).Str("input", uri).Msg("cache write failed")
	} else {
		c.logger.Debug().Str("input", uri).Msg("analysis cached")
	}
	return result, nil
}
