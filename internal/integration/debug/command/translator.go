// Package command renders generic debugger operations into the command
// text of a particular dialect.
//
// Every method is a pure function of its arguments and the profile.
// Operations a dialect cannot express return an *UnsupportedError that
// wraps ErrUnsupported; a supported operation never renders empty text.
package command

import (
	"strconv"
	"strings"

	"github.com/dshills/dbgbridge/internal/integration/debug/breakpoint"
	"github.com/dshills/dbgbridge/internal/integration/debug/dialect"
)

// Translator renders operations for one dialect.
type Translator struct {
	profile *dialect.Profile
}

// New creates a translator for profile.
func New(profile *dialect.Profile) *Translator {
	return &Translator{profile: profile}
}

// Profile returns the dialect the translator renders for.
func (t *Translator) Profile() *dialect.Profile {
	return t.profile
}

func (t *Translator) unsupported(op string, c dialect.Capability) error {
	return &UnsupportedError{Backend: t.profile.Backend(), Op: op, Capability: c}
}

func (t *Translator) require(op string, c dialect.Capability) error {
	if !t.profile.Has(c) {
		return t.unsupported(op, c)
	}
	return nil
}

// Print renders a print command. Internal prints use the dialect's
// non-user-visible variant when it has one.
func (t *Translator) Print(expr string, internal bool) (string, error) {
	verb := t.profile.PrintVerb()
	if internal && t.profile.InternalPrintVerb() != "" {
		verb = t.profile.InternalPrintVerb()
	}

	cmd := verb
	if flag := t.profile.PrintRawFlag(); flag != "" {
		cmd += " " + flag
	}
	if expr != "" {
		cmd += " " + expr
	}
	return cmd, nil
}

// Assign renders "<verb> <var> <op> <expr>". An empty assign verb yields
// a leading space, e.g. " x = 5".
func (t *Translator) Assign(variable, expr string) (string, error) {
	if t.profile.AssignNeedsNoDebug() && t.profile.Has(dialect.CapDebug) {
		return "", t.unsupported("assign", dialect.CapDebug)
	}
	op := t.profile.Language().AssignOperator()
	return t.profile.AssignVerb() + " " + variable + " " + op + " " + expr, nil
}

// Enable renders an enable command for ids.
func (t *Translator) Enable(ids string) (string, error) {
	if err := t.require("enable", dialect.CapDisable); err != nil {
		return "", err
	}
	return withArg("enable", ids), nil
}

// Disable renders a disable command for ids.
func (t *Translator) Disable(ids string) (string, error) {
	if err := t.require("disable", dialect.CapDisable); err != nil {
		return "", err
	}
	return withArg("disable", ids), nil
}

// Delete renders a delete command for ids.
func (t *Translator) Delete(ids string) (string, error) {
	if err := t.require("delete", dialect.CapDelete); err != nil {
		return "", err
	}
	return withArg("delete", ids), nil
}

// Condition renders "condition N expr". An empty expr removes the condition.
func (t *Translator) Condition(number int, expr string) (string, error) {
	if err := t.require("condition", dialect.CapCondition); err != nil {
		return "", err
	}
	return withArg("condition "+strconv.Itoa(number), expr), nil
}

// Ignore renders "ignore N count".
func (t *Translator) Ignore(number, count int) (string, error) {
	if err := t.require("ignore", dialect.CapIgnore); err != nil {
		return "", err
	}
	return "ignore " + strconv.Itoa(number) + " " + strconv.Itoa(count), nil
}

// Debug renders the command that loads program for debugging.
func (t *Translator) Debug(program, args string) (string, error) {
	verb := t.profile.DebugVerb()
	if verb == "" {
		return "", t.unsupported("debug", "")
	}
	cmd := verb + " " + program
	if args != "" {
		if args[0] != ' ' {
			cmd += " "
		}
		cmd += args
	}
	return cmd, nil
}

// Watch renders a watchpoint for expr. mode must be a non-empty subset of
// the dialect's supported watch modes.
func (t *Translator) Watch(expr string, mode breakpoint.WatchMode) (string, error) {
	verb, err := t.watchVerb(mode)
	if err != nil {
		return "", err
	}
	return verb + " " + expr, nil
}

// Unwatch removes a watchpoint set with the change mode.
func (t *Translator) Unwatch(expr string) (string, error) {
	if err := t.require("unwatch", dialect.CapUnwatch); err != nil {
		return "", err
	}
	verb := t.profile.WatchVerb(breakpoint.WatchChange)
	if verb == "" {
		return "", t.unsupported("unwatch", "")
	}
	return "un" + verb + " " + expr, nil
}

func (t *Translator) watchVerb(mode breakpoint.WatchMode) (string, error) {
	supported := t.profile.SupportedWatchModes()
	if mode == breakpoint.WatchNone || !mode.SubsetOf(supported) {
		return "", &UnsupportedError{
			Backend: t.profile.Backend(),
			Op:      "watch " + mode.String(),
		}
	}

	for _, bit := range []breakpoint.WatchMode{breakpoint.WatchChange, breakpoint.WatchRead, breakpoint.WatchAccess} {
		if mode.Has(bit) {
			return t.profile.WatchVerb(bit), nil
		}
	}
	return "", t.unsupported("watch", "")
}

// SetBreakpoint creates (set) or clears a breakpoint at position.
//
// A position starting with '0' and lacking ':' is a machine address and
// gets the address marker. When cond is non-empty and the dialect supports
// conditions, a condition command keyed to nextNumber follows on a second
// line. nextNumber is a prediction; the caller reconciles it.
func (t *Translator) SetBreakpoint(position string, set, temporary bool, cond string, nextNumber int) (string, error) {
	pos := t.addressPosition(position)

	if !set {
		return t.profile.ClearVerb() + " " + pos, nil
	}

	cmd := t.breakCommand(pos, temporary)
	if cond != "" && t.profile.Has(dialect.CapCondition) {
		c, err := t.Condition(nextNumber, cond)
		if err != nil {
			return "", err
		}
		cmd += "\n" + c
	}
	return cmd, nil
}

func (t *Translator) addressPosition(position string) string {
	marker := t.profile.AddressMarker()
	if marker == "" || strings.HasPrefix(position, marker) {
		return position
	}
	if strings.HasPrefix(position, "0") && !strings.Contains(position, ":") {
		return marker + position
	}
	return position
}

func (t *Translator) breakCommand(pos string, temporary bool) string {
	switch t.profile.BreakStyle() {
	case dialect.BreakStyleStop:
		if t.profile.IsFilePosition(pos) {
			return "stop at " + pos
		}
		return "stop in " + pos
	default:
		if temporary {
			return "tbreak " + pos
		}
		return "break " + pos
	}
}

// RestoreBreakpoint renders every command needed to recreate desc from
// scratch as breakpoint number. Unless asDummy, the disable, ignore,
// condition and command-list settings follow, each only when the dialect
// supports it. The result is a sequence of newline-terminated lines.
func (t *Translator) RestoreBreakpoint(desc breakpoint.Descriptor, position string, number int, cond string, asDummy bool) (string, error) {
	if err := desc.Validate(); err != nil {
		return "", err
	}

	var b strings.Builder
	num := strconv.Itoa(number)

	switch desc.Kind {
	case breakpoint.KindBreakpoint:
		b.WriteString(t.breakCommand(position, desc.Disposition == breakpoint.DispositionDelete))
		b.WriteByte('\n')

	case breakpoint.KindWatchpoint:
		expr := desc.Expression
		if expr == "" {
			expr = position
		}
		w, err := t.Watch(expr, desc.WatchMode)
		if err != nil {
			return "", err
		}
		b.WriteString(w)
		b.WriteByte('\n')

	case breakpoint.KindTracepoint:
		if err := t.require("trace", dialect.CapTrace); err != nil {
			return "", err
		}
		b.WriteString("trace " + position + "\n")

	default:
		return "", t.unsupported("restore "+desc.Kind.String(), "")
	}

	if asDummy {
		return b.String(), nil
	}

	if !desc.Enabled && t.profile.Has(dialect.CapDisable) {
		b.WriteString("disable " + num + "\n")
	} else if desc.Disposition == breakpoint.DispositionDisable && t.profile.Has(dialect.CapDisable) {
		b.WriteString("enable once " + num + "\n")
	}
	if desc.IgnoreCount > 0 && t.profile.Has(dialect.CapIgnore) {
		b.WriteString("ignore " + num + " " + strconv.Itoa(desc.IgnoreCount) + "\n")
	}
	if cond != "" && t.profile.Has(dialect.CapCondition) {
		b.WriteString("condition " + num + " " + cond + "\n")
	}
	if len(desc.Commands) > 0 && t.profile.Has(dialect.CapCommands) {
		b.WriteString("commands " + num + "\n")
		for _, c := range desc.Commands {
			b.WriteString(c + "\n")
		}
		b.WriteString("end\n")
	}

	return b.String(), nil
}

// InfoLocals renders the command listing local variables.
func (t *Translator) InfoLocals() (string, error) {
	return t.fixed("info locals", t.profile.InfoLocalsCommand())
}

// Pwd renders the command printing the debugger's working directory.
func (t *Translator) Pwd() (string, error) {
	if err := t.require("pwd", dialect.CapPwd); err != nil {
		return "", err
	}
	return t.fixed("pwd", t.profile.PwdCommand())
}

// InfoBreakpoints renders the command listing breakpoints.
func (t *Translator) InfoBreakpoints() (string, error) {
	return t.fixed("info breakpoints", t.profile.InfoBreakpointsCommand())
}

// Jump renders "jump pos".
func (t *Translator) Jump(position string) (string, error) {
	if err := t.require("jump", dialect.CapJump); err != nil {
		return "", err
	}
	return "jump " + t.addressPosition(position), nil
}

// Make renders "make args".
func (t *Translator) Make(args string) (string, error) {
	if err := t.require("make", dialect.CapMake); err != nil {
		return "", err
	}
	return withArg("make", args), nil
}

// Attach renders "attach pid".
func (t *Translator) Attach(pid int) (string, error) {
	if err := t.require("attach", dialect.CapAttach); err != nil {
		return "", err
	}
	return "attach " + strconv.Itoa(pid), nil
}

// Registers renders the register dump command.
func (t *Translator) Registers() (string, error) {
	if err := t.require("registers", dialect.CapRegisters); err != nil {
		return "", err
	}
	return "info registers", nil
}

// Examine renders a memory examine command.
func (t *Translator) Examine(expr string) (string, error) {
	if err := t.require("examine", dialect.CapExamine); err != nil {
		return "", err
	}
	return withArg("x", expr), nil
}

func (t *Translator) fixed(op, cmd string) (string, error) {
	if cmd == "" {
		return "", t.unsupported(op, "")
	}
	return cmd, nil
}

func withArg(verb, arg string) string {
	if arg == "" {
		return verb
	}
	return verb + " " + arg
}

// IDs formats breakpoint numbers as a space-separated list.
func IDs(numbers ...int) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

// CleanMemberName removes the quotes some Perl-style debuggers put around
// member names, e.g. 'key' becomes key.
func CleanMemberName(name string) string {
	if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
		return name[1 : len(name)-1]
	}
	return name
}
