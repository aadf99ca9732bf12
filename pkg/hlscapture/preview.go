package hlscapture

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Preview is a revocable reference to a captured image. Releasing it more
// than once is allowed.
type Preview struct {
	ID string

	store *PreviewStore
	once  sync.Once
}

func (p *Preview) Release() {
	if p == nil {
		return
	}

	p.once.Do(func() {
		p.store.Release(p.ID)
	})
}

type previewEntry struct {
	image   []byte
	expires time.Time
}

type PreviewStore struct {
	logger zerolog.Logger
	ttl    time.Duration
	period time.Duration

	entries   map[string]previewEntry
	entriesMu sync.RWMutex

	cleanup   bool
	cleanupMu sync.Mutex
	shutdown  chan struct{}
}

func NewPreviewStore(ttl, cleanupPeriod time.Duration) *PreviewStore {
	return &PreviewStore{
		logger:  log.With().Str("module", "hlscapture").Str("submodule", "previews").Logger(),
		ttl:     ttl,
		period:  cleanupPeriod,
		entries: map[string]previewEntry{},
	}
}

func (s *PreviewStore) Register(image []byte) *Preview {
	id := uuid.NewString()

	s.entriesMu.Lock()
	s.entries[id] = previewEntry{
		image:   image,
		expires: time.Now().Add(s.ttl),
	}
	s.entriesMu.Unlock()

	s.cleanupStart()

	return &Preview{ID: id, store: s}
}

func (s *PreviewStore) Lookup(id string) ([]byte, bool) {
	s.entriesMu.RLock()
	entry, ok := s.entries[id]
	s.entriesMu.RUnlock()

	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}

	return entry.image, true
}

// Release removes preview image, unknown ids are ignored.
func (s *PreviewStore) Release(id string) {
	s.entriesMu.Lock()
	delete(s.entries, id)
	s.entriesMu.Unlock()
}

func (s *PreviewStore) Len() int {
	s.entriesMu.RLock()
	defer s.entriesMu.RUnlock()

	return len(s.entries)
}

func (s *PreviewStore) Shutdown() {
	s.cleanupStop()

	s.entriesMu.Lock()
	s.entries = map[string]previewEntry{}
	s.entriesMu.Unlock()
}

func (s *PreviewStore) removeExpired() {
	size := 0

	s.entriesMu.Lock()
	for id, entry := range s.entries {
		if time.Now().After(entry.expires) {
			delete(s.entries, id)
			s.logger.Debug().Str("id", id).Msg("preview expired")
		} else {
			size++
		}
	}
	s.entriesMu.Unlock()

	if size == 0 {
		s.cleanupStop()
	}
}

func (s *PreviewStore) cleanupStart() {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	// if already running
	if s.cleanup {
		return
	}

	s.shutdown = make(chan struct{})
	s.cleanup = true

	go func(shutdown chan struct{}) {
		ticker := time.NewTicker(s.period)
		defer ticker.Stop()

		for {
			select {
			case <-shutdown:
				return
			case <-ticker.C:
				s.removeExpired()
			}
		}
	}(s.shutdown)
}

func (s *PreviewStore) cleanupStop() {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()

	// if not running
	if !s.cleanup {
		return
	}

	s.cleanup = false
	close(s.shutdown)
}
