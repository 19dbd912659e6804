package audiocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"manimate/internal/logging"
	"manimate/internal/media/ffprobe"
	"manimate/internal/tts"
)

const (
	artifactExt   = ".mp3"
	partialPrefix = ".partial-"
	lockDir       = ".locks"
	lockRetry     = 50 * time.Millisecond
	stampLayout   = "20060102T150405.000000000Z"
)

var (
	// ErrSynthesis marks a failed synthesis. Callers continue without narration.
	ErrSynthesis = errors.New("narration synthesis failed")
	// ErrUnmeasurable marks audio whose duration could not be read.
	ErrUnmeasurable = errors.New("narration duration unavailable")
)

// Artifact is a cached narration clip. The zero value means "no narration".
type Artifact struct {
	Key             string
	Path            string
	DurationSeconds float64
}

// IsZero reports whether the artifact carries no audio.
func (a Artifact) IsZero() bool {
	return a.Path == ""
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the timestamp source used in artifact names.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger attaches a logger for cache hits and misses.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logging.NewComponentLogger(logger, "audiocache")
	}
}

// Cache is a directory-backed content-addressed narration store. It is safe
// for concurrent use. Population of a single key is serialized in-process and
// across processes through a flock on .locks/<key>.lock.
type Cache struct {
	dir    string
	synth  tts.Synthesizer
	prober ffprobe.Prober
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New opens (creating if needed) the cache directory.
func New(dir string, synth tts.Synthesizer, prober ffprobe.Prober, opts ...Option) (*Cache, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("audiocache: directory required")
	}
	if prober == nil {
		return nil, errors.New("audiocache: duration prober required")
	}
	if err := os.MkdirAll(filepath.Join(dir, lockDir), 0o755); err != nil {
		return nil, fmt.Errorf("audiocache: create %s: %w", dir, err)
	}
	c := &Cache{
		dir:    dir,
		synth:  synth,
		prober: prober,
		logger: logging.NewComponentLogger(nil, "audiocache"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key returns hex(sha256(text + "_" + voice)).
func Key(text, voice string) string {
	sum := sha256.Sum256([]byte(text + "_" + voice))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the artifact path stored for key. When several exist the
// lexicographically first (oldest) wins.
func (c *Cache) Lookup(key string) (string, bool, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, key+"-*"+artifactExt))
	if err != nil {
		return "", false, fmt.Errorf("audiocache: lookup %s: %w", key, err)
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	sort.Strings(matches)
	return matches[0], true, nil
}

// GetOrCreate returns narration for text in voice, synthesizing it on a
// cache miss. Blank text yields a zero Artifact and no error. Failures yield a
// zero Artifact and an error wrapping ErrSynthesis or ErrUnmeasurable; they
// never abort the caller's job.
func (c *Cache) GetOrCreate(ctx context.Context, text, voice string) (Artifact, error) {
	if strings.TrimSpace(text) == "" {
		return Artifact{}, nil
	}
	key := Key(text, voice)

	unlock, err := c.lockKey(ctx, key)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	defer unlock()

	path, found, err := c.Lookup(key)
	if err != nil {
		return Artifact{}, err
	}
	if found {
		duration, err := c.prober.Duration(ctx, path)
		if err != nil {
			return Artifact{}, fmt.Errorf("%w: %s: %w", ErrUnmeasurable, path, err)
		}
		c.logger.Debug("narration cache hit", logging.String("key", key), logging.String("path", path))
		return Artifact{Key: key, Path: path, DurationSeconds: duration}, nil
	}

	if c.synth == nil {
		return Artifact{}, fmt.Errorf("%w: no synthesizer configured", ErrSynthesis)
	}
	path, err = c.populate(ctx, key, text, voice)
	if err != nil {
		return Artifact{}, err
	}
	duration, err := c.prober.Duration(ctx, path)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %s: %w", ErrUnmeasurable, path, err)
	}
	c.logger.Debug("narration synthesized",
		logging.String("key", key),
		logging.String("path", path),
		logging.Float64("duration_seconds", duration),
	)
	return Artifact{Key: key, Path: path, DurationSeconds: duration}, nil
}

func (c *Cache) populate(ctx context.Context, key, text, voice string) (string, error) {
	tmp, err := os.CreateTemp(c.dir, partialPrefix+key+"-*"+artifactExt)
	if err != nil {
		return "", fmt.Errorf("%w: create partial file: %w", ErrSynthesis, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	if err := c.synth.Synthesize(ctx, text, voice, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	if info, err := os.Stat(tmpPath); err != nil || info.Size() == 0 {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: synthesizer produced no audio", ErrSynthesis)
	}

	final := filepath.Join(c.dir, key+"-"+c.now().UTC().Format(stampLayout)+artifactExt)
	if err := os.Rename(tmpPath, final); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: publish artifact: %w", ErrSynthesis, err)
	}
	return final, nil
}

// lockKey takes the in-process mutex for key, then the file lock shared with
// other manimate processes using the same cache directory.
func (c *Cache) lockKey(ctx context.Context, key string) (func(), error) {
	c.mu.Lock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	c.mu.Unlock()
	lock.Lock()

	fileLock := flock.New(filepath.Join(c.dir, lockDir, key+".lock"))
	locked, err := fileLock.TryLockContext(ctx, lockRetry)
	if err != nil || !locked {
		lock.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("lock key %s: %w", key, err)
	}
	return func() {
		_ = fileLock.Unlock()
		lock.Unlock()
	}, nil
}
