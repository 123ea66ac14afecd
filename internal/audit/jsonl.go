package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/sprite-ai/smartcommit/internal/log"
)

var kindFiles = map[Kind]string{
	KindAPICall:         "api_calls.jsonl",
	KindHallucination:   "hallucinations.jsonl",
	KindSafetyViolation: "safety_violations.jsonl",
	KindAgentTrail:      "agent_trails.jsonl",
}

// JSONLSink appends one JSON object per line to a file per event kind.
// A lock file serializes writers across processes sharing the directory;
// mu does the same within the process, since a Flock is not reentrant.
type JSONLSink struct {
	session
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

// OpenJSONL creates dir if needed and returns a sink writing into it.
func OpenJSONL(dir string) (*JSONLSink, error) {
	if dir == "" {
		return nil, errors.New("audit directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}
	return &JSONLSink{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

// Dir is the directory the sink writes to.
func (s *JSONLSink) Dir() string { return s.dir }

func (s *JSONLSink) path(kind Kind) (string, error) {
	name, ok := kindFiles[kind]
	if !ok {
		return "", fmt.Errorf("unknown audit event kind %q", kind)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *JSONLSink) Record(_ context.Context, e Event) error {
	path, err := s.path(e.Kind)
	if err != nil {
		return err
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquiring audit lock: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			log.Warnf("releasing audit lock: %v", err)
		}
	}()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}

	s.add(e)
	return nil
}

func (s *JSONLSink) Query(ctx context.Context, q Query) ([]Event, error) {
	kinds := Kinds
	if q.Kind != "" {
		kinds = []Kind{q.Kind}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("acquiring audit lock: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			log.Warnf("releasing audit lock: %v", err)
		}
	}()

	var out []Event
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path, err := s.path(kind)
		if err != nil {
			return nil, err
		}
		events, err := readJSONL(path, q)
		if err != nil {
			return nil, err
		}
		out = append(out, events...)
	}
	return newestFirst(out, q.Limit), nil
}

func readJSONL(path string, q Query) ([]Event, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			log.Warnf("skipping malformed line %d in %s: %v", n, filepath.Base(path), err)
			continue
		}
		if q.match(e) {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

func (s *JSONLSink) Stats() Stats { return s.snapshot() }

func (s *JSONLSink) Close() error {
	return s.lock.Close()
}
