package core

import (
	"errors"
	"sync"
)

// LocalMedia owns the capture tracks of one call session.
type LocalMedia struct {
	mu      sync.Mutex
	audio   LocalTrack
	video   LocalTrack
	stopped bool
}

func NewLocalMedia(audio, video LocalTrack) *LocalMedia {
	return &LocalMedia{audio: audio, video: video}
}

func (m *LocalMedia) Audio() LocalTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio
}

func (m *LocalMedia) Video() LocalTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.video
}

// Tracks returns the present tracks, audio first.
func (m *LocalMedia) Tracks() []LocalTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LocalTrack, 0, 2)
	if m.audio != nil {
		out = append(out, m.audio)
	}
	if m.video != nil {
		out = append(out, m.video)
	}
	return out
}

// SwapVideo installs t as the video component and returns the previous one.
// The caller stops the returned track.
func (m *LocalMedia) SwapVideo(t LocalTrack) LocalTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.video
	m.video = t
	return prev
}

// Stop releases every track once.
func (m *LocalMedia) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	tracks := []LocalTrack{m.audio, m.video}
	m.mu.Unlock()

	var errs []error
	for _, t := range tracks {
		if t == nil {
			continue
		}
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *LocalMedia) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
