package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a progress line on a terminal. On any other writer it
// prints the message once.
type Spinner struct {
	out     io.Writer
	tty     bool
	message string

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSpinner creates a spinner writing to out.
func NewSpinner(out io.Writer, message string) *Spinner {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = IsTerminal(f)
	}
	return &Spinner{out: out, tty: tty, message: message, stop: make(chan struct{})}
}

// Start begins the animation.
func (s *Spinner) Start() {
	if !s.tty {
		fmt.Fprintf(s.out, "%s...\n", s.message)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			select {
			case <-s.stop:
				fmt.Fprint(s.out, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(s.out, "\r%s %s", Bold.Render(spinnerFrames[frame%len(spinnerFrames)]), s.message)
			}
		}
	}()
}

// Stop ends the animation and clears the line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}

// Spin runs fn with a spinner on out. A nil out runs fn without one.
func Spin(out io.Writer, message string, fn func() error) error {
	if out == nil {
		return fn()
	}
	s := NewSpinner(out, message)
	s.Start()
	defer s.Stop()
	return fn()
}
