package app

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/dbgbridge/internal/integration/debug/breakpoint"
	"github.com/dshills/dbgbridge/internal/integration/debug/command"
)

// CommandPrefix starts a console command. Other lines go to the debugger
// unchanged.
const CommandPrefix = ":"

// Action says how the console handles a parsed line.
type Action int

const (
	// ActionExecute sends Command.Op through the session.
	ActionExecute Action = iota
	// ActionBreakpoint sets or clears a breakpoint with number tracking.
	ActionBreakpoint
	// ActionInfo lists breakpoints and parses the listing.
	ActionInfo
	// ActionInterrupt stops the running program.
	ActionInterrupt
	// ActionRestart relaunches the debugger.
	ActionRestart
	// ActionHelp prints the command list.
	ActionHelp
	// ActionQuit ends the console.
	ActionQuit
)

// Command is one parsed console line.
type Command struct {
	Action Action
	Op     command.Operation

	// Breakpoint fields, for ActionBreakpoint.
	Position  string
	Set       bool
	Temporary bool
	Condition string
}

type commandSpec struct {
	usage string
	help  string
	parse func(name, args string) (Command, error)
}

var commands map[string]commandSpec

func init() {
	commands = map[string]commandSpec{
		"break":     {"POSITION [if COND]", "set a breakpoint", parseBreak(false)},
		"tbreak":    {"POSITION [if COND]", "set a temporary breakpoint", parseBreak(true)},
		"clear":     {"POSITION", "clear breakpoints at a position", parseClear},
		"print":     {"EXPR", "print an expression", exprOp(command.Print)},
		"output":    {"EXPR", "print an expression without history", exprOp(command.Output)},
		"assign":    {"VAR EXPR", "assign a value to a variable", parseAssign},
		"watch":     {"EXPR [r|w|a]", "set a watchpoint", parseWatch},
		"unwatch":   {"EXPR", "remove a watchpoint", exprOp(command.Unwatch)},
		"enable":    {"N...", "enable breakpoints", idsOp(command.Enable)},
		"disable":   {"N...", "disable breakpoints", idsOp(command.Disable)},
		"delete":    {"N...", "delete breakpoints", idsOp(command.Delete)},
		"condition": {"N [EXPR]", "set or remove a breakpoint condition", parseCondition},
		"ignore":    {"N COUNT", "ignore the next COUNT hits", parseIgnore},
		"info":      {"", "list breakpoints", fixed(Command{Action: ActionInfo})},
		"locals":    {"", "show local variables", fixed(Command{Op: command.InfoLocals()})},
		"pwd":       {"", "show the working directory", fixed(Command{Op: command.Pwd()})},
		"debug":     {"PROGRAM [ARGS]", "load a program", parseDebug},
		"jump":      {"POSITION", "continue at a position", parseJump},
		"make":      {"[ARGS]", "run make", parseMake},
		"attach":    {"PID", "attach to a process", parseAttach},
		"registers": {"", "show registers", fixed(Command{Op: command.Registers()})},
		"x":         {"EXPR", "examine memory", exprOp(command.Examine)},
		"interrupt": {"", "stop the running program", fixed(Command{Action: ActionInterrupt})},
		"restart":   {"", "relaunch the debugger", fixed(Command{Action: ActionRestart})},
		"help":      {"", "show this list", fixed(Command{Action: ActionHelp})},
		"quit":      {"", "leave the console", fixed(Command{Action: ActionQuit})},
	}
}

// ParseLine parses a console line. Lines without CommandPrefix become raw
// debugger commands.
func ParseLine(line string) (Command, error) {
	if !strings.HasPrefix(line, CommandPrefix) {
		return Command{Op: command.Raw(line)}, nil
	}

	name, args, _ := strings.Cut(strings.TrimPrefix(line, CommandPrefix), " ")
	args = strings.TrimSpace(args)
	spec, ok := commands[name]
	if !ok {
		return Command{}, fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	cmd, err := spec.parse(name, args)
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Help returns the command list, one command per line.
func Help() string {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		spec := commands[n]
		usage := strings.TrimSpace(CommandPrefix + n + " " + spec.usage)
		fmt.Fprintf(&b, "  %-28s %s\n", usage, spec.help)
	}
	b.WriteString("  other lines are sent to the debugger as typed\n")
	return b.String()
}

func usage(name string) error {
	return &UsageError{Command: name, Usage: commands[name].usage}
}

func fixed(c Command) func(string, string) (Command, error) {
	return func(string, string) (Command, error) { return c, nil }
}

func exprOp(fn func(string) command.Operation) func(string, string) (Command, error) {
	return func(name, args string) (Command, error) {
		if args == "" {
			return Command{}, usage(name)
		}
		return Command{Op: fn(args)}, nil
	}
}

func idsOp(fn func(string) command.Operation) func(string, string) (Command, error) {
	return func(name, args string) (Command, error) {
		fields := strings.Fields(args)
		if len(fields) == 0 {
			return Command{}, usage(name)
		}
		nums := make([]int, len(fields))
		for i, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil || n <= 0 {
				return Command{}, usage(name)
			}
			nums[i] = n
		}
		return Command{Op: fn(command.IDs(nums...))}, nil
	}
}

func parseBreak(temporary bool) func(string, string) (Command, error) {
	return func(name, args string) (Command, error) {
		pos, cond := splitCondition(args)
		if pos == "" {
			return Command{}, usage(name)
		}
		return Command{
			Action:    ActionBreakpoint,
			Position:  pos,
			Set:       true,
			Temporary: temporary,
			Condition: cond,
		}, nil
	}
}

// splitCondition splits "POS if COND".
func splitCondition(args string) (pos, cond string) {
	pos, cond, found := strings.Cut(args, " if ")
	if !found {
		return strings.TrimSpace(args), ""
	}
	return strings.TrimSpace(pos), strings.TrimSpace(cond)
}

func parseClear(name, args string) (Command, error) {
	if args == "" {
		return Command{}, usage(name)
	}
	return Command{Action: ActionBreakpoint, Position: args}, nil
}

func parseAssign(name, args string) (Command, error) {
	variable, expr, ok := strings.Cut(args, " ")
	expr = strings.TrimSpace(expr)
	if !ok || variable == "" || expr == "" {
		return Command{}, usage(name)
	}
	return Command{Op: command.Assign(variable, expr)}, nil
}

// watchModeWords are the trailing tokens accepted as a watch mode.
var watchModeWords = map[string]bool{
	"r": true, "w": true, "a": true, "rw": true,
	"read": true, "write": true, "change": true, "access": true,
}

func parseWatch(name, args string) (Command, error) {
	if args == "" {
		return Command{}, usage(name)
	}

	expr, mode := args, breakpoint.WatchChange
	if i := strings.LastIndex(args, " "); i > 0 {
		last := args[i+1:]
		if watchModeWords[strings.ToLower(last)] {
			m, err := breakpoint.ParseWatchMode(last)
			if err != nil {
				return Command{}, err
			}
			expr, mode = strings.TrimSpace(args[:i]), m
		}
	}
	return Command{Op: command.Watch(expr, mode)}, nil
}

func parseCondition(name, args string) (Command, error) {
	numText, expr, _ := strings.Cut(args, " ")
	n, err := strconv.Atoi(numText)
	if err != nil || n <= 0 {
		return Command{}, usage(name)
	}
	return Command{Op: command.Condition(n, strings.TrimSpace(expr))}, nil
}

func parseIgnore(name, args string) (Command, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return Command{}, usage(name)
	}
	n, err1 := strconv.Atoi(fields[0])
	count, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || n <= 0 || count < 0 {
		return Command{}, usage(name)
	}
	return Command{Op: command.Ignore(n, count)}, nil
}

func parseDebug(name, args string) (Command, error) {
	program, rest, _ := strings.Cut(args, " ")
	if program == "" {
		return Command{}, usage(name)
	}
	return Command{Op: command.Debug(program, strings.TrimSpace(rest))}, nil
}

func parseJump(name, args string) (Command, error) {
	if args == "" {
		return Command{}, usage(name)
	}
	return Command{Op: command.Jump(args)}, nil
}

func parseMake(_, args string) (Command, error) {
	return Command{Op: command.Make(args)}, nil
}

func parseAttach(name, args string) (Command, error) {
	pid, err := strconv.Atoi(args)
	if err != nil || pid <= 0 {
		return Command{}, usage(name)
	}
	return Command{Op: command.Attach(pid)}, nil
}
