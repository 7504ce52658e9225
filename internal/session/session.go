// Package session holds the single active dataset a dashboard displays.
// Every input event replaces it outright; results from events older than
// the committed one are discarded.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
	"github.com/google/uuid"
)

// ErrStale is returned by Commit for a result older than the current one.
var ErrStale = errors.New("stale result")

// Session is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	id        string
	name      string
	view      *pipeline.View
	seq       uint64 // committed
	issued    uint64
	createdAt time.Time
	updatedAt time.Time
	now       func() time.Time
}

// Snapshot is the persisted form of a Session.
type Snapshot struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Seq       uint64         `json:"seq"`
	View      *pipeline.View `json:"view,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New constructs an empty in-memory session. Call Save to persist.
func New(name string) *Session {
	now := time.Now()
	return &Session{
		id:        uuid.NewString(),
		name:      name,
		createdAt: now,
		updatedAt: now,
		now:       time.Now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the display name given at creation.
func (s *Session) Name() string { return s.name }

// NextSeq reserves the sequence number for a new input event.
func (s *Session) NextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Commit installs view as the current dataset if seq is not older than the
// committed sequence number. Re-committing the same seq replaces the view.
func (s *Session) Commit(seq uint64, view pipeline.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != nil && seq < s.seq {
		return fmt.Errorf("%w: event %d is older than committed %d", ErrStale, seq, s.seq)
	}
	v := view
	s.view = &v
	s.seq = seq
	if seq > s.issued {
		s.issued = seq
	}
	s.updatedAt = s.now()
	return nil
}

// Current returns the committed view, its sequence number and whether any
// view has been committed yet.
func (s *Session) Current() (pipeline.View, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view == nil {
		return pipeline.View{}, 0, false
	}
	return *s.view, s.seq, true
}

// Snapshot captures the session for persistence or export.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ID:        s.id,
		Name:      s.name,
		Seq:       s.seq,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.view != nil {
		v := *s.view
		snap.View = &v
	}
	return snap
}

// Save writes the session as pretty JSON using atomic write.
func (s *Session) Save(path string) error {
	data, err := utils.PrettyJSON(s.Snapshot())
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(path, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load restores a session written by Save.
func Load(path string) (*Session, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	return &Session{
		id:        snap.ID,
		name:      snap.Name,
		view:      snap.View,
		seq:       snap.Seq,
		issued:    snap.Seq,
		createdAt: snap.CreatedAt,
		updatedAt: snap.UpdatedAt,
		now:       time.Now,
	}, nil
}
