package pipeline

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// blockedReader never returns, simulating an operator who walked away.
type blockedReader struct{}

func (blockedReader) Read([]byte) (int, error) {
	select {}
}

// answer writes one line to w shortly after the prompt is issued.
func answer(w io.Writer, line string) {
	go func() {
		time.Sleep(20 * time.Millisecond)
		io.WriteString(w, line+"\n")
	}()
}

func TestConfirmTimesOutToProceed(t *testing.T) {
	var out strings.Builder
	p := NewConsolePrompter(blockedReader{}, &out, 20*time.Millisecond)

	start := time.Now()
	assert.True(t, p.Confirm("Run stage collect?"))
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, out.String(), "[AUTO]")
}

func TestConfirmExplicitAnswers(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := NewConsolePrompter(pr, io.Discard, 2*time.Second)

	answer(pw, "1")
	assert.True(t, p.Confirm("first?"))
	answer(pw, "2")
	assert.False(t, p.Confirm("second?"))
	answer(pw, "anything")
	assert.True(t, p.Confirm("third?"))
}

func TestConfirmClosedInputProceeds(t *testing.T) {
	p := NewConsolePrompter(strings.NewReader(""), io.Discard, time.Second)
	assert.True(t, p.Confirm("anyone there?"))
}

func TestConfirmIgnoresInputTypedBeforeQuestion(t *testing.T) {
	// The decline is read before the question is ever asked; it must not
	// answer it.
	p := NewConsolePrompter(strings.NewReader("2\n"), io.Discard, 50*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.True(t, p.Confirm("unrelated later question?"))
}

func TestConfirmStaleDeclineThenFreshAnswer(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := NewConsolePrompter(pr, io.Discard, 2*time.Second)

	// A decline typed between prompts is discarded; the answer given after
	// the question is the one that counts.
	io.WriteString(pw, "2\n")
	time.Sleep(20 * time.Millisecond)
	answer(pw, "1")
	assert.True(t, p.Confirm("proceed?"))
}
