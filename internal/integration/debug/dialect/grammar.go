package dialect

import (
	"errors"
	"fmt"
	"regexp"
)

// PromptStyle selects how a backend's prompt is recognized.
type PromptStyle int

const (
	// PromptLiteral is a fixed prompt printed on its own last line.
	PromptLiteral PromptStyle = iota
	// PromptPattern is a prompt that varies per thread or frame.
	PromptPattern
)

// String returns the style name.
func (s PromptStyle) String() string {
	switch s {
	case PromptLiteral:
		return "literal"
	case PromptPattern:
		return "pattern"
	default:
		return "unknown"
	}
}

// PromptGrammar is the rule set used to detect the end of a response.
type PromptGrammar struct {
	Style PromptStyle

	// Literal is the prompt text for PromptLiteral, without trailing blanks.
	Literal string

	// Line matches a prompt at the start of a line, e.g. "main[1] ".
	Line string
	// Reverse matches the reversed prompt at the start of reversed text.
	Reverse string
	// NoThread matches a whole last line holding a prompt without thread name.
	NoThread string
}

// LiteralPrompt returns a literal-suffix grammar.
func LiteralPrompt(prompt string) PromptGrammar {
	return PromptGrammar{Style: PromptLiteral, Literal: prompt}
}

// PatternPrompt returns a pattern grammar. All patterns must be anchored
// with ^ since they are applied at a fixed position.
func PatternPrompt(line, reverse, noThread string) PromptGrammar {
	return PromptGrammar{
		Style:    PromptPattern,
		Line:     line,
		Reverse:  reverse,
		NoThread: noThread,
	}
}

// Compiled holds the compiled regular expressions of a pattern grammar.
type Compiled struct {
	Line     *regexp.Regexp
	Reverse  *regexp.Regexp
	NoThread *regexp.Regexp
}

// Compile compiles the pattern forms of the grammar.
func (g PromptGrammar) Compile() (*Compiled, error) {
	if g.Style != PromptPattern {
		return nil, errors.New("prompt grammar is not pattern style")
	}

	var (
		c   Compiled
		err error
	)
	if c.Line, err = regexp.Compile(g.Line); err != nil {
		return nil, fmt.Errorf("line prompt pattern: %w", err)
	}
	if c.Reverse, err = regexp.Compile(g.Reverse); err != nil {
		return nil, fmt.Errorf("reverse prompt pattern: %w", err)
	}
	if c.NoThread, err = regexp.Compile(g.NoThread); err != nil {
		return nil, fmt.Errorf("no-thread prompt pattern: %w", err)
	}
	return &c, nil
}

func (g PromptGrammar) validate() error {
	switch g.Style {
	case PromptLiteral:
		if g.Literal == "" {
			return errors.New("literal prompt is empty")
		}
		return nil
	case PromptPattern:
		if g.Line == "" || g.Reverse == "" || g.NoThread == "" {
			return errors.New("pattern prompt needs line, reverse and no-thread patterns")
		}
		_, err := g.Compile()
		return err
	default:
		return fmt.Errorf("unknown prompt style %d", g.Style)
	}
}
