// Package logbuf keeps the last few lines written by a child process.
package logbuf

import (
	"bytes"
	"strings"
	"sync"
)

// Tail is an io.Writer that retains only the most recent lines. A key tool
// that fails loudly cannot grow the error message without bound.
type Tail struct {
	mu      sync.Mutex
	lines   []string
	next    int
	wrapped bool
	partial bytes.Buffer
}

// New returns a Tail holding at most n lines. n < 1 is treated as 1.
func New(n int) *Tail {
	if n < 1 {
		n = 1
	}
	return &Tail{lines: make([]string, n)}
}

func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.partial.Write(p)
	for {
		i := bytes.IndexByte(t.partial.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(t.partial.Next(i + 1))
		t.push(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func (t *Tail) push(line string) {
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.wrapped = true
	}
}

// Lines returns the retained lines, oldest first, including any trailing
// line that has no newline yet.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	if t.wrapped {
		out = append(out, t.lines[t.next:]...)
	}
	out = append(out, t.lines[:t.next]...)
	if t.partial.Len() > 0 {
		out = append(out, strings.TrimRight(t.partial.String(), "\r"))
	}
	return out
}

// String joins the non-blank retained lines with "; ".
func (t *Tail) String() string {
	var kept []string
	for _, l := range t.Lines() {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "; ")
}
