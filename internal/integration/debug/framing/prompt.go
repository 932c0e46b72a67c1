package framing

import (
	"strings"

	"github.com/dshills/dbgbridge/internal/integration/debug/dialect"
)

// promptMatcher finds the prompt ending a stripped response.
type promptMatcher interface {
	match(text string) (prompt string, ok bool)
}

func newMatcher(g dialect.PromptGrammar, onAmbiguous func(line string)) (promptMatcher, error) {
	if g.Style == dialect.PromptLiteral {
		return literalMatcher{prompt: g.Literal}, nil
	}
	c, err := g.Compile()
	if err != nil {
		return nil, err
	}
	return &patternMatcher{rx: c, onAmbiguous: onAmbiguous}, nil
}

// literalMatcher accepts text whose last line is the prompt.
type literalMatcher struct {
	prompt string
}

func (m literalMatcher) match(text string) (string, bool) {
	if strings.TrimSpace(lastLine(text)) == m.prompt {
		return m.prompt, true
	}
	return "", false
}

// patternMatcher tries, in order: the reversed last line against the
// reversed prompt pattern, the last line against the no-thread pattern,
// then every line from the end against the line pattern.
type patternMatcher struct {
	rx          *dialect.Compiled
	onAmbiguous func(line string)
}

func (m *patternMatcher) match(text string) (string, bool) {
	last := lastLine(text)

	// The reversed pattern cannot span a line break, so only the last
	// line needs reversing.
	rev := reverse(last)
	if loc := m.rx.Reverse.FindStringIndex(rev); loc != nil && loc[0] == 0 {
		return reverse(rev[:loc[1]]), true
	}

	if m.rx.NoThread.MatchString(last) {
		return last, true
	}

	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		loc := m.rx.Line.FindStringIndex(line)
		if loc == nil || loc[0] != 0 {
			continue
		}
		// "dates[1] = 33" looks like a thread prompt but is an assignment.
		rest := strings.TrimLeft(line[loc[1]:], " \t")
		if strings.HasPrefix(rest, "=") {
			if m.onAmbiguous != nil {
				m.onAmbiguous(line)
			}
			continue
		}
		return line[:loc[1]], true
	}
	return "", false
}

func lastLine(text string) string {
	return text[strings.LastIndexByte(text, '\n')+1:]
}

func reverse(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		b[len(s)-1-i] = s[i]
	}
	return string(b)
}

// CutOffPrompt removes prompt from the end of answer.
//
// For literal prompts the last occurrence of prompt, anything after it
// and the spaces before it are removed. For pattern prompts prompt is
// removed only when answer ends with it. In both cases one line break
// directly before the prompt goes too.
func CutOffPrompt(g dialect.PromptGrammar, answer, prompt string) string {
	if prompt == "" {
		return answer
	}

	var out string
	switch g.Style {
	case dialect.PromptLiteral:
		idx := strings.LastIndex(answer, prompt)
		if idx < 0 {
			return answer
		}
		out = strings.TrimRight(answer[:idx], " ")
	default:
		if !strings.HasSuffix(answer, prompt) {
			return answer
		}
		out = strings.TrimSuffix(answer, prompt)
	}

	if strings.HasSuffix(out, "\r\n") {
		return out[:len(out)-2]
	}
	return strings.TrimSuffix(out, "\n")
}
