// Package device connects the episode engine to the emulator: controller
// input through a Dolphin named pipe, screen capture and the goal detector
// service.
package device

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/baldhumanity/aiai-go/episode"
)

// PipeActuator drives the main stick of a Dolphin controller through its
// pipe input. Stick axes arrive in [-1,1] and are written as [0,1] with 0.5
// centered.
type PipeActuator struct {
	w           io.Writer
	closer      io.Closer
	resetButton string
}

// OpenPipeActuator opens the named pipe at path for writing. Opening blocks
// until Dolphin has the pipe open for reading.
func OpenPipeActuator(path, resetButton string) (*PipeActuator, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, fmt.Errorf("device: cannot open controller pipe %s: %w", path, err)
	}
	a := NewPipeActuator(f, resetButton)
	a.closer = f
	return a, nil
}

// NewPipeActuator writes commands to w. resetButton is the button bound to
// loading the saved state.
func NewPipeActuator(w io.Writer, resetButton string) *PipeActuator {
	return &PipeActuator{w: w, resetButton: resetButton}
}

func (a *PipeActuator) Apply(cmd episode.Command) error {
	_, err := fmt.Fprintf(a.w, "SET MAIN %s %s\n", axis(cmd.X), axis(cmd.Y))
	if err != nil {
		return fmt.Errorf("device: cannot write stick position: %w", err)
	}
	return nil
}

// Reset taps the reset button.
func (a *PipeActuator) Reset() error {
	if a.resetButton == "" {
		return fmt.Errorf("device: no reset button configured")
	}
	_, err := fmt.Fprintf(a.w, "PRESS %s\nRELEASE %s\n", a.resetButton, a.resetButton)
	if err != nil {
		return fmt.Errorf("device: cannot press %s: %w", a.resetButton, err)
	}
	return nil
}

func (a *PipeActuator) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func axis(v float64) string {
	v = (v + 1) / 2
	v = min(max(v, 0), 1)
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// LogActuator logs commands instead of sending them, for dry runs.
type LogActuator struct {
	Logger *log.Logger
}

func (a LogActuator) Apply(cmd episode.Command) error {
	a.Logger.Debug("stick", "x", cmd.X, "y", cmd.Y)
	return nil
}

func (a LogActuator) Reset() error {
	a.Logger.Debug("reset game state")
	return nil
}
