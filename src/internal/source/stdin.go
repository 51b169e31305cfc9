// FILE: src/internal/source/stdin.go
package source

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"emulog/src/internal/core"

	"github.com/lixenwraith/log"
)

// StdinSource logs every line read from its reader through a sink,
// attributed to one emitter
type StdinSource struct {
	reader       io.Reader
	sink         Sink
	emitter      *Emitter
	defaultLevel core.Level
	done         chan struct{}
	finished     chan struct{}
	stopOnce     sync.Once
	totalLines   atomic.Uint64
	startTime    time.Time
	lastLineTime atomic.Value // time.Time
	logger       *log.Logger
}

// NewStdinSource creates a source over r. A nil reader selects os.Stdin.
func NewStdinSource(r io.Reader, sink Sink, emitter *Emitter, defaultLevel core.Level, logger *log.Logger) *StdinSource {
	if r == nil {
		r = os.Stdin
	}
	s := &StdinSource{
		reader:       r,
		sink:         sink,
		emitter:      emitter,
		defaultLevel: defaultLevel,
		done:         make(chan struct{}),
		finished:     make(chan struct{}),
		logger:       logger,
		startTime:    time.Now(),
	}
	s.lastLineTime.Store(time.Time{})
	return s
}

func (s *StdinSource) Start() error {
	go s.readLoop()
	s.logger.Info("msg", "Stdin source started",
		"component", "stdin_source",
		"emitter", s.emitter.Name)
	return nil
}

// Stop ends the read loop at the next line. A read blocked on the
// underlying reader is not interrupted.
func (s *StdinSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.logger.Info("msg", "Stdin source stopped", "component", "stdin_source")
	})
}

// Finished is closed once the reader is exhausted or the source stopped.
func (s *StdinSource) Finished() <-chan struct{} {
	return s.finished
}

func (s *StdinSource) GetStats() SourceStats {
	lastLine, _ := s.lastLineTime.Load().(time.Time)

	return SourceStats{
		Type:         "stdin",
		TotalLines:   s.totalLines.Load(),
		StartTime:    s.startTime,
		LastLineTime: lastLine,
		Details: map[string]any{
			"emitter": s.emitter.Name,
		},
	}
}

func (s *StdinSource) readLoop() {
	defer close(s.finished)

	scanner := bufio.NewScanner(s.reader)
	for scanner.Scan() {
		select {
		case <-s.done:
			return
		default:
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		lvl, ok := ExtractLevel(line)
		if !ok {
			lvl = s.defaultLevel
		}

		s.totalLines.Add(1)
		s.lastLineTime.Store(time.Now())
		s.sink.LogAs(s.emitter, lvl, line)
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("msg", "Scanner error reading stdin",
			"component", "stdin_source",
			"error", err)
	}
}

var levelMarkers = []struct {
	markers []string
	level   core.Level
}{
	{[]string{"[ERROR]", "ERROR:", " ERROR ", "ERR:", "[ERR]", "FATAL:", "[FATAL]"}, core.LevelError},
	{[]string{"[WARN]", "WARN:", " WARN ", "WARNING:", "[WARNING]"}, core.LevelWarning},
	{[]string{"[INFO]", "INFO:", " INFO ", "[INF]", "INF:"}, core.LevelInfo},
	{[]string{"[DEBUG]", "DEBUG:", " DEBUG ", "[DBG]", "DBG:"}, core.LevelDebug},
	{[]string{"[TRACE]", "TRACE:", " TRACE ", "[NOISY]", "NOISY:"}, core.LevelNoisy},
}

// ExtractLevel sniffs a severity marker in a free-form line.
func ExtractLevel(line string) (core.Level, bool) {
	upperLine := strings.ToUpper(line)
	for _, group := range levelMarkers {
		for _, marker := range group.markers {
			if strings.Contains(upperLine, marker) {
				return group.level, true
			}
		}
	}
	return 0, false
}
