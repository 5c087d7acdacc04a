package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// feed pushes a byte string through the editor, collecting everything
// echoed and every submitted line.
func feed(e *Editor, input string) (echo string, lines []string) {
	var out strings.Builder
	for i := 0; i < len(input); i++ {
		res := e.Feed(input[i])
		out.Write(res.Echo)
		if res.Submitted {
			lines = append(lines, res.Line)
			out.WriteString(Prompt)
			e.BeginLine()
		}
	}
	return out.String(), lines
}

func newTestEditor() *Editor {
	e := NewEditor()
	e.BeginLine()
	return e
}

func TestTypeAndSubmit(t *testing.T) {
	e := newTestEditor()
	echo, lines := feed(e, "mount\r")
	require.Equal(t, []string{"mount"}, lines)
	require.Equal(t, "mount\r\n"+Prompt, echo)
}

func TestBackspaceEditing(t *testing.T) {
	// Typing "abc", backspace twice, "X", CR submits "aX".
	e := newTestEditor()
	_, lines := feed(e, "abc\b\bX\r")
	require.Equal(t, []string{"aX"}, lines)
}

func TestBackspaceEcho(t *testing.T) {
	e := newTestEditor()
	echo, _ := feed(e, "a\b")
	require.Equal(t, "a\b \b", echo)
}

func TestBackspaceOnEmptyLine(t *testing.T) {
	e := newTestEditor()
	echo, _ := feed(e, "\b\b")
	require.Equal(t, "", echo)
}

func TestEmptySubmission(t *testing.T) {
	e := newTestEditor()
	echo, lines := feed(e, "\r")
	require.Equal(t, []string{""}, lines)
	require.Equal(t, "\r\n"+Prompt, echo)
	// The blank line did not consume a history slot: up finds
	// nothing to recall.
	echo, _ = feed(e, "\x1b[A")
	require.Equal(t, "", echo)
}

func TestSilentTruncation(t *testing.T) {
	e := newTestEditor()
	input := strings.Repeat("a", 100)
	echo, _ := feed(e, input)
	// Echo stops at the line cap, without any error output.
	require.Equal(t, strings.Repeat("a", MaxLine-1), echo)
	_, lines := feed(e, "\r")
	require.Equal(t, []string{strings.Repeat("a", MaxLine-1)}, lines)
}

func TestUnrecognizedEscapeEchoedVerbatim(t *testing.T) {
	e := newTestEditor()
	echo, _ := feed(e, "\x1bxy")
	require.Equal(t, "xy", echo)
	// The sequence bytes did not land in the line buffer.
	_, lines := feed(e, "ok\r")
	require.Equal(t, []string{"ok"}, lines)
}

func TestCursorMovement(t *testing.T) {
	e := newTestEditor()
	echo, _ := feed(e, "ab\x1b[D")
	require.Equal(t, "ab\x1b[D", echo)
	// Right at the tail is a no-op once back at the end.
	echo, _ = feed(e, "\x1b[C\x1b[C")
	require.Equal(t, "\x1b[C", echo)
}

func TestCursorLeftStopsAtStart(t *testing.T) {
	e := newTestEditor()
	echo, _ := feed(e, "a\x1b[D\x1b[D")
	require.Equal(t, "a\x1b[D", echo)
}

func TestMidLineOverwrite(t *testing.T) {
	e := newTestEditor()
	_, lines := feed(e, "abc\x1b[D\x1b[DX\r")
	require.Equal(t, []string{"aXc"}, lines)
}

func TestMidLineBackspaceIgnored(t *testing.T) {
	e := newTestEditor()
	_, lines := feed(e, "abc\x1b[D\b\r")
	require.Equal(t, []string{"abc"}, lines)
}

func recallEcho(content string) string {
	return "\x1b[2K\r" + Prompt + content
}

func TestHistoryRecall(t *testing.T) {
	e := newTestEditor()
	_, lines := feed(e, "one\rtwo\r")
	require.Equal(t, []string{"one", "two"}, lines)

	echo, _ := feed(e, "\x1b[A")
	require.Equal(t, recallEcho("two"), echo)
	echo, _ = feed(e, "\x1b[A")
	require.Equal(t, recallEcho("one"), echo)
	// The oldest entry is reached; further up is a no-op.
	echo, _ = feed(e, "\x1b[A")
	require.Equal(t, "", echo)

	echo, _ = feed(e, "\x1b[B")
	require.Equal(t, recallEcho("two"), echo)

	// A recalled line resubmits as-is.
	_, lines = feed(e, "\r")
	require.Equal(t, []string{"two"}, lines)
}

func TestHistoryRecallEdit(t *testing.T) {
	e := newTestEditor()
	feed(e, "mount\r")
	feed(e, "\x1b[A")
	_, lines := feed(e, "\b\b\r")
	require.Equal(t, []string{"mou"}, lines)
}

func TestHistoryRingEviction(t *testing.T) {
	// With depth 3, submitting four commands leaves only the newest
	// three reachable.
	e := newTestEditor()
	feed(e, "c1\rc2\rc3\rc4\r")
	var recalled []string
	for {
		echo, _ := feed(e, "\x1b[A")
		if echo == "" {
			break
		}
		recalled = append(recalled, strings.TrimPrefix(echo, "\x1b[2K\r"+Prompt))
	}
	require.Equal(t, []string{"c4", "c3", "c2"}, recalled)
}

func TestDownFromFreshLineIsNoOp(t *testing.T) {
	e := newTestEditor()
	feed(e, "one\r")
	echo, _ := feed(e, "\x1b[B")
	require.Equal(t, "", echo)
}
