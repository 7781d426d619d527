package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Line reads answers one line at a time. It serves pipes and redirected
// input, where there is no terminal to draw on.
//
// A single reader goroutine owns the input. A cancelled Ask leaves the next
// line queued for the following Ask rather than dropping it.
type Line struct {
	in    *bufio.Reader
	out   io.Writer
	start sync.Once
	lines chan lineResult
}

// NewLine creates a line prompter reading from in and writing questions to out.
func NewLine(in io.Reader, out io.Writer) *Line {
	return &Line{in: bufio.NewReader(in), out: out, lines: make(chan lineResult)}
}

// read feeds lines until the first error, which is delivered before the
// channel closes.
func (l *Line) read() {
	defer close(l.lines)
	for {
		text, err := l.in.ReadString('\n')
		l.lines <- lineResult{text: text, err: err}
		if err != nil {
			return
		}
	}
}

type lineResult struct {
	text string
	err  error
}

func (l *Line) Ask(ctx context.Context, q Question) (string, error) {
	if q.Problem != "" {
		fmt.Fprintln(l.out, q.Problem)
	}
	if q.Hint != "" {
		fmt.Fprintf(l.out, "%s (%s): ", q.Label, q.Hint)
	} else {
		fmt.Fprintf(l.out, "%s: ", q.Label)
	}

	l.start.Do(func() { go l.read() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-l.lines:
		if !ok {
			return "", ErrNoInput
		}
		text := strings.TrimRight(res.text, "\r\n")
		if res.err != nil {
			if res.err == io.EOF && text != "" {
				return text, nil
			}
			if res.err == io.EOF {
				return "", ErrNoInput
			}
			return "", fmt.Errorf("prompt: read input: %w", res.err)
		}
		return text, nil
	}
}
