// Package service hooks the facade into a host service's lifecycle. Embed a
// Mixin and call OnStart and OnStop from the host's start and stop hooks;
// handlers then use the DB field.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/shrek82/simplemysql/cache"
	"github.com/shrek82/simplemysql/config"
	"github.com/shrek82/simplemysql/core"
)

// ErrStarted is returned by OnStart on a mixin that is already running.
var ErrStarted = errors.New("service: already started")

// Mixin owns one facade for the lifetime of a service.
type Mixin struct {
	Config core.Config
	DB     *core.DB

	mu sync.Mutex
	// cache is closed on stop when the mixin built it, and rebuilt with
	// newCache on the next start.
	cache    cache.Cache
	newCache func() (cache.Cache, error)
}

// FromEnv builds a mixin from config.Load(files...).
func FromEnv(files ...string) (*Mixin, error) {
	s, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	cfg := s.DBConfig(nil)
	c, err := s.Cache()
	if err != nil {
		return nil, err
	}
	cfg.Cache = c
	m := &Mixin{Config: cfg, cache: c}
	if c != nil {
		m.newCache = s.Cache
	}
	return m, nil
}

// OnStart opens the facade. Connections are made lazily, so it only fails
// on a bad configuration.
func (m *Mixin) OnStart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DB != nil {
		return ErrStarted
	}
	if m.cache == nil && m.newCache != nil {
		c, err := m.newCache()
		if err != nil {
			return err
		}
		m.cache, m.Config.Cache = c, c
	}
	db, err := core.Open(m.Config)
	if err != nil {
		return err
	}
	m.DB = db
	return nil
}

// OnStop ends the facade. Stopping a mixin that never started is a no-op.
func (m *Mixin) OnStop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.DB != nil {
		errs = append(errs, m.DB.End())
		m.DB = nil
	}
	if m.cache != nil {
		errs = append(errs, m.cache.Close())
		m.cache, m.Config.Cache = nil, nil
	}
	return errors.Join(errs...)
}
