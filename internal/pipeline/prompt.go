package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// Prompter asks the operator a yes/no question with a bounded wait.
type Prompter interface {
	// Confirm returns false only on an explicit decline. Timeouts and
	// closed input default to proceeding.
	Confirm(question string) bool
}

// AlwaysYes disables gating: every confirmation proceeds immediately.
type AlwaysYes struct{}

func (AlwaysYes) Confirm(string) bool { return true }

// promptLine is one operator answer with the moment it was read, so an
// answer typed before a question was shown never counts for it.
type promptLine struct {
	text string
	at   time.Time
}

// consolePrompter reads operator answers from a single long-lived reader
// goroutine feeding a channel, so an abandoned prompt never leaks a reader
// mid-line into the next one.
type consolePrompter struct {
	out     io.Writer
	lines   chan promptLine
	timeout time.Duration
}

// NewConsolePrompter starts the reader goroutine over in and returns a
// Prompter whose unanswered questions default to "proceed" after timeout.
func NewConsolePrompter(in io.Reader, out io.Writer, timeout time.Duration) Prompter {
	p := &consolePrompter{
		out:     out,
		lines:   make(chan promptLine),
		timeout: timeout,
	}
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			p.lines <- promptLine{text: strings.TrimSpace(scanner.Text()), at: time.Now()}
		}
		close(p.lines)
	}()
	return p
}

func (p *consolePrompter) Confirm(question string) bool {
	asked := time.Now()
	fmt.Fprintf(p.out, "%s [1] Yes  [2] No (auto-continue in %s): ", question, p.timeout)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-p.lines:
			if !ok {
				return true
			}
			if line.at.Before(asked) {
				// Leftover input from before this question.
				continue
			}
			return line.text != "2"
		case <-timer.C:
			fmt.Fprintf(p.out, "\n[AUTO] No input received, continuing\n")
			return true
		}
	}
}
