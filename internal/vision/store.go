package vision

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // template decode
	_ "image/png"  // template decode
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/droidstage/droidstage/internal/infrastructure/logging"
)

// Store loads template images by name from a root directory and caches
// the decoded grayscale form. A filesystem watcher invalidates cache
// entries when template files change on disk, so long runs pick up
// edited templates without a restart.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	root   string
	logger *logging.Logger

	mu    sync.RWMutex
	cache map[string]*image.Gray

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// templateExtensions are tried in order when a template name carries no
// file extension.
var templateExtensions = []string{".png", ".jpg", ".jpeg"}

// NewStore creates a Store rooted at dir.
//
// A watcher failure is downgraded to a warning: the store still works, it
// just serves possibly stale cache entries for files edited mid-run.
//
// Returns:
//   - *Store: Ready store
//   - error: ErrTemplateDir if dir does not exist or is not a directory
func NewStore(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplateDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", ErrTemplateDir, dir)
	}

	s := &Store{
		root:   dir,
		logger: logger,
		cache:  make(map[string]*image.Gray),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("template watcher unavailable, cached templates will not refresh", "error", err)
		return s, nil
	}
	if err := watcher.Add(dir); err != nil {
		logger.Warn("template watcher cannot watch directory", "dir", dir, "error", err)
		watcher.Close()
		return s, nil
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watch()

	return s, nil
}

// Get returns the decoded grayscale template for name. The name resolves
// relative to the store root, trying .png/.jpg/.jpeg when it carries no
// extension. Results are cached until the underlying file changes.
func (s *Store) Get(name string) (*image.Gray, error) {
	s.mu.RLock()
	img, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := s.load(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = img
	s.mu.Unlock()
	return img, nil
}

// load reads and decodes one template from disk.
func (s *Store) load(name string) (*image.Gray, error) {
	candidates := []string{filepath.Join(s.root, name)}
	if filepath.Ext(name) == "" {
		candidates = candidates[:0]
		for _, ext := range templateExtensions {
			candidates = append(candidates, filepath.Join(s.root, name+ext))
		}
	}

	for _, path := range candidates {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("vision: opening template %q: %w", name, err)
		}

		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("vision: decoding template %q: %w", name, err)
		}
		return ToGray(img), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
}

// watch drains filesystem events and invalidates affected cache entries.
func (s *Store) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.invalidate(ev.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("template watcher error", "error", err)
		}
	}
}

// invalidate drops the cache entries a changed file may back, keyed both
// with and without the file extension.
func (s *Store) invalidate(path string) {
	base := filepath.Base(path)
	bare := strings.TrimSuffix(base, filepath.Ext(base))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{base, bare} {
		if _, ok := s.cache[key]; ok {
			delete(s.cache, key)
			s.logger.Debug("template cache invalidated", "template", key)
		}
	}
}

// Close stops the filesystem watcher. The store remains usable for Get.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}
