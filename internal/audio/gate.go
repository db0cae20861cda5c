package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Gate tracks microphone access for the whole process. Access is probed
// once, on the first Request, by opening a capture stream; later session
// starts reuse the result instead of re-prompting the OS.
type Gate struct {
	mu        sync.Mutex
	requested bool
	granted   bool
	err       error
}

func NewGate() *Gate {
	return &Gate{}
}

// Request probes microphone access. Repeat calls return the first outcome.
func (g *Gate) Request(sampleRate, framesPerBuffer int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.requested {
		return g.err
	}
	g.requested = true

	if err := portaudio.Initialize(); err != nil {
		g.err = fmt.Errorf("initialize audio: %w", err)
		return g.err
	}

	mic, err := NewMic(sampleRate, framesPerBuffer)
	if err != nil {
		g.err = fmt.Errorf("open microphone: %w", err)
		return g.err
	}
	_ = mic.stream.Close()

	g.granted = true
	return nil
}

func (g *Gate) Granted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

// Grant marks access as available without probing. Used when capture is
// managed outside this process.
func (g *Gate) Grant() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requested = true
	g.granted = true
	g.err = nil
}

func (g *Gate) Terminate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.requested && g.err == nil {
		_ = portaudio.Terminate()
	}
}
