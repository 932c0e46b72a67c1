package framing

import "strings"

type stripState int

const (
	stripGround stripState = iota
	stripEscape
	stripEscapeInter
	stripCSI
	stripOSC
	stripDCS
)

// StripControl removes terminal control sequences and C0 control bytes
// other than newline and tab from s.
//
// CSI, OSC and DCS sequences are consumed up to their terminator. An
// unterminated sequence at the end of s is dropped.
func StripControl(s string) string {
	if !hasControl(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	state := stripGround
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case stripGround:
			switch {
			case c == 0x1B:
				state = stripEscape
			case c == '\n', c == '\t':
				b.WriteByte(c)
			case c < 0x20, c == 0x7F:
				// dropped
			default:
				b.WriteByte(c)
			}

		case stripEscape:
			switch {
			case c == '[':
				state = stripCSI
			case c == ']':
				state = stripOSC
			case c == 'P':
				state = stripDCS
			case c >= 0x20 && c <= 0x2F:
				state = stripEscapeInter
			default:
				state = stripGround
			}

		case stripEscapeInter:
			// Intermediates continue; anything else is the final byte.
			if c < 0x20 || c > 0x2F {
				state = stripGround
			}

		case stripCSI:
			if (c >= 0x40 && c <= 0x7E) || c < 0x20 {
				state = stripGround
			}

		case stripOSC:
			switch c {
			case 0x07:
				state = stripGround
			case 0x1B:
				state = stripEscape
			}

		case stripDCS:
			if c == 0x1B {
				state = stripEscape
			}
		}
	}
	return b.String()
}

func hasControl(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 0x20 && c != '\n' && c != '\t') || c == 0x7F {
			return true
		}
	}
	return false
}
