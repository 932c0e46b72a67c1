package command

import (
	"fmt"
	"strings"

	"github.com/dshills/dbgbridge/internal/integration/debug/breakpoint"
)

// OpKind identifies a generic operation.
type OpKind int

const (
	OpRaw OpKind = iota
	OpPrint
	OpAssign
	OpEnable
	OpDisable
	OpDelete
	OpCondition
	OpIgnore
	OpDebug
	OpWatch
	OpUnwatch
	OpBreak
	OpClear
	OpRestore
	OpInfoLocals
	OpInfoBreakpoints
	OpPwd
	OpJump
	OpMake
	OpAttach
	OpRegisters
	OpExamine
)

var opNames = map[OpKind]string{
	OpRaw:             "raw",
	OpPrint:           "print",
	OpAssign:          "assign",
	OpEnable:          "enable",
	OpDisable:         "disable",
	OpDelete:          "delete",
	OpCondition:       "condition",
	OpIgnore:          "ignore",
	OpDebug:           "debug",
	OpWatch:           "watch",
	OpUnwatch:         "unwatch",
	OpBreak:           "break",
	OpClear:           "clear",
	OpRestore:         "restore",
	OpInfoLocals:      "info-locals",
	OpInfoBreakpoints: "info-breakpoints",
	OpPwd:             "pwd",
	OpJump:            "jump",
	OpMake:            "make",
	OpAttach:          "attach",
	OpRegisters:       "registers",
	OpExamine:         "examine",
}

// String returns the operation name.
func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return "unknown"
}

// Operation is a dialect-independent debugger request.
// Only the fields relevant to Kind are used.
type Operation struct {
	Kind OpKind

	Text       string // raw command, expression or argument string
	Variable   string
	Position   string
	Condition  string
	Internal   bool
	Temporary  bool
	AsDummy    bool
	Number     int
	Count      int
	WatchMode  breakpoint.WatchMode
	Descriptor breakpoint.Descriptor
}

// String returns a short description for logs.
func (op Operation) String() string {
	switch {
	case op.Position != "":
		return fmt.Sprintf("%s %s", op.Kind, op.Position)
	case op.Text != "":
		return fmt.Sprintf("%s %s", op.Kind, op.Text)
	default:
		return op.Kind.String()
	}
}

// Raw sends line to the debugger unchanged.
func Raw(line string) Operation { return Operation{Kind: OpRaw, Text: line} }

// Print prints expr for the user.
func Print(expr string) Operation { return Operation{Kind: OpPrint, Text: expr} }

// Output prints expr with the dialect's internal print variant.
func Output(expr string) Operation { return Operation{Kind: OpPrint, Text: expr, Internal: true} }

// Assign sets variable to expr.
func Assign(variable, expr string) Operation {
	return Operation{Kind: OpAssign, Variable: variable, Text: expr}
}

// Enable enables the breakpoints in ids.
func Enable(ids string) Operation { return Operation{Kind: OpEnable, Text: ids} }

// Disable disables the breakpoints in ids.
func Disable(ids string) Operation { return Operation{Kind: OpDisable, Text: ids} }

// Delete deletes the breakpoints in ids.
func Delete(ids string) Operation { return Operation{Kind: OpDelete, Text: ids} }

// Condition sets the condition of breakpoint number.
func Condition(number int, expr string) Operation {
	return Operation{Kind: OpCondition, Number: number, Text: expr}
}

// Ignore sets the ignore count of breakpoint number.
func Ignore(number, count int) Operation {
	return Operation{Kind: OpIgnore, Number: number, Count: count}
}

// Debug loads program with args.
func Debug(program, args string) Operation {
	return Operation{Kind: OpDebug, Position: program, Text: args}
}

// Watch sets a watchpoint on expr.
func Watch(expr string, mode breakpoint.WatchMode) Operation {
	return Operation{Kind: OpWatch, Text: expr, WatchMode: mode}
}

// Unwatch removes a watchpoint on expr.
func Unwatch(expr string) Operation { return Operation{Kind: OpUnwatch, Text: expr} }

// Break sets a breakpoint. Number is filled in with the predicted
// breakpoint number before rendering.
func Break(position string, temporary bool, cond string) Operation {
	return Operation{Kind: OpBreak, Position: position, Temporary: temporary, Condition: cond}
}

// Clear removes the breakpoint at position.
func Clear(position string) Operation { return Operation{Kind: OpClear, Position: position} }

// Restore recreates desc as breakpoint number.
func Restore(desc breakpoint.Descriptor, position string, number int, cond string, asDummy bool) Operation {
	return Operation{
		Kind:       OpRestore,
		Descriptor: desc,
		Position:   position,
		Number:     number,
		Condition:  cond,
		AsDummy:    asDummy,
	}
}

// InfoLocals lists local variables.
func InfoLocals() Operation { return Operation{Kind: OpInfoLocals} }

// InfoBreakpoints lists breakpoints.
func InfoBreakpoints() Operation { return Operation{Kind: OpInfoBreakpoints} }

// Pwd prints the debugger's working directory.
func Pwd() Operation { return Operation{Kind: OpPwd} }

// Jump continues execution at position.
func Jump(position string) Operation { return Operation{Kind: OpJump, Position: position} }

// Make runs make with args.
func Make(args string) Operation { return Operation{Kind: OpMake, Text: args} }

// Attach attaches to process pid.
func Attach(pid int) Operation { return Operation{Kind: OpAttach, Number: pid} }

// Registers dumps machine registers.
func Registers() Operation { return Operation{Kind: OpRegisters} }

// Examine dumps memory at expr.
func Examine(expr string) Operation { return Operation{Kind: OpExamine, Text: expr} }

// Render translates op into command lines, one per debugger request.
func (t *Translator) Render(op Operation) ([]string, error) {
	text, err := t.render(op)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", op.Kind, err)
	}
	return splitLines(text), nil
}

func (t *Translator) render(op Operation) (string, error) {
	switch op.Kind {
	case OpRaw:
		return op.Text, nil
	case OpPrint:
		return t.Print(op.Text, op.Internal)
	case OpAssign:
		return t.Assign(op.Variable, op.Text)
	case OpEnable:
		return t.Enable(op.Text)
	case OpDisable:
		return t.Disable(op.Text)
	case OpDelete:
		return t.Delete(op.Text)
	case OpCondition:
		return t.Condition(op.Number, op.Text)
	case OpIgnore:
		return t.Ignore(op.Number, op.Count)
	case OpDebug:
		return t.Debug(op.Position, op.Text)
	case OpWatch:
		return t.Watch(op.Text, op.WatchMode)
	case OpUnwatch:
		return t.Unwatch(op.Text)
	case OpBreak:
		return t.SetBreakpoint(op.Position, true, op.Temporary, op.Condition, op.Number)
	case OpClear:
		return t.SetBreakpoint(op.Position, false, false, "", 0)
	case OpRestore:
		return t.RestoreBreakpoint(op.Descriptor, op.Position, op.Number, op.Condition, op.AsDummy)
	case OpInfoLocals:
		return t.InfoLocals()
	case OpInfoBreakpoints:
		return t.InfoBreakpoints()
	case OpPwd:
		return t.Pwd()
	case OpJump:
		return t.Jump(op.Position)
	case OpMake:
		return t.Make(op.Text)
	case OpAttach:
		return t.Attach(op.Number)
	case OpRegisters:
		return t.Registers()
	case OpExamine:
		return t.Examine(op.Text)
	default:
		return "", t.unsupported(op.Kind.String(), "")
	}
}

// splitLines splits multi-command text. Empty raw input stays a single
// empty command line.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
