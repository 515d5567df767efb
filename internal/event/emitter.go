package event

import (
	"context"
	"io"
	"log"
	"sync"

	"serum-swap/internal/domain"
)

// Emitter publishes a DidSwap before the swap's acceptance is decided.
type Emitter interface {
	Emit(ctx context.Context, e domain.DidSwap) error
}

// LogEmitter writes each event as a program data line.
type LogEmitter struct {
	logger *log.Logger
}

// NewLogEmitter creates an emitter writing to logger. A nil logger
// discards output.
func NewLogEmitter(logger *log.Logger) *LogEmitter {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LogEmitter{logger: logger}
}

// Emit implements Emitter.
func (l *LogEmitter) Emit(_ context.Context, e domain.DidSwap) error {
	l.logger.Print(LogLine(e))
	return nil
}

// Recorder keeps emitted events and their log lines in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.DidSwap
	lines  []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Emitter.
func (r *Recorder) Emit(_ context.Context, e domain.DidSwap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	r.lines = append(r.lines, LogLine(e))
	return nil
}

// Events returns the recorded events in emission order.
func (r *Recorder) Events() []domain.DidSwap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DidSwap(nil), r.events...)
}

// Logs returns the program data lines in emission order.
func (r *Recorder) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events, r.lines = nil, nil
}

var (
	_ Emitter = (*LogEmitter)(nil)
	_ Emitter = (*Recorder)(nil)
)
