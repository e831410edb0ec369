package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML profile and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Profile
	onChange []func(*Profile)
	onError  func(error)
}

// NewLoader creates a Loader and performs the initial load. A profile that
// fails validation is rejected.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	p, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = p
	return l, nil
}

// Path returns the watched file.
func (l *Loader) Path() string { return l.path }

// Profile returns the current (latest valid) profile.
func (l *Loader) Profile() *Profile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the profile reloads.
func (l *Loader) OnChange(fn func(*Profile)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// OnError registers a callback for reloads that fail; the previous profile
// stays active.
func (l *Loader) OnError(fn func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onError = fn
}

// Watch starts a background goroutine that hot-reloads the profile on file
// changes. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("profile watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("profile watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						l.reportError(err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.reportError(fmt.Errorf("profile watcher: %w", err))
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the profile. On error the current
// profile is kept.
func (l *Loader) Reload() (*Profile, error) {
	p, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = p
	callbacks := make([]func(*Profile), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(p)
	}
	return p, nil
}

func (l *Loader) reportError(err error) {
	l.mu.RLock()
	fn := l.onError
	l.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (l *Loader) load() (*Profile, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", l.path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML profile, applies defaults and validates it.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	applyDefaults(&p)
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
