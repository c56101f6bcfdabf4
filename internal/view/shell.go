package view

import (
	"context"
	"fmt"
	"sync"
)

// Tab names a screen of the app.
type Tab string

const (
	TabMinter  Tab = "minter"
	TabGallery Tab = "gallery"
)

// ParseTab validates a tab name.
func ParseTab(name string) (Tab, error) {
	switch Tab(name) {
	case TabMinter, TabGallery:
		return Tab(name), nil
	}
	return "", fmt.Errorf("unknown tab %q", name)
}

// Snapshot is the state of the whole app as the UI renders it.
type Snapshot struct {
	Tab     Tab           `json:"tab"`
	Minter  *MinterState  `json:"minter,omitempty"`
	Gallery *GalleryState `json:"gallery,omitempty"`
}

// Shell switches between the minter and the gallery. Only the active
// screen is open; switching closes the old one and remounts the new one
// from scratch.
type Shell struct {
	Minter   *MinterView
	Gallery  *GalleryView
	notifier *Notifier

	mu  sync.Mutex
	tab Tab
}

// NewShell creates a shell with the minter selected. Call Open to mount it.
func NewShell(minter *MinterView, gallery *GalleryView, n *Notifier) *Shell {
	return &Shell{Minter: minter, Gallery: gallery, notifier: n, tab: TabMinter}
}

// Notifier returns the change notifier shared by the screens.
func (s *Shell) Notifier() *Notifier {
	return s.notifier
}

// Open mounts the active screen.
func (s *Shell) Open(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open(ctx, s.tab)
}

// Close unmounts the active screen.
func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close(s.tab)
}

// SetTab switches screens. Selecting the active tab is a no-op.
func (s *Shell) SetTab(ctx context.Context, tab Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tab == s.tab {
		return
	}
	s.close(s.tab)
	s.tab = tab
	s.open(ctx, tab)
	s.notifier.Notify()
}

// Active returns the selected tab.
func (s *Shell) Active() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// Snapshot returns the active tab and its screen state.
func (s *Shell) Snapshot() Snapshot {
	tab := s.Active()
	snap := Snapshot{Tab: tab}
	switch tab {
	case TabMinter:
		m := s.Minter.Snapshot()
		snap.Minter = &m
	case TabGallery:
		g := s.Gallery.Snapshot()
		snap.Gallery = &g
	}
	return snap
}

func (s *Shell) open(ctx context.Context, tab Tab) {
	switch tab {
	case TabMinter:
		s.Minter.Open(ctx)
	case TabGallery:
		s.Gallery.Open(ctx)
	}
}

func (s *Shell) close(tab Tab) {
	switch tab {
	case TabMinter:
		s.Minter.Close()
	case TabGallery:
		s.Gallery.Close()
	}
}
