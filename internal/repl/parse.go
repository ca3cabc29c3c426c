// Package repl is the line-oriented interactive shell behind `diver chat`.
package repl

import "strings"

// Kind identifies a parsed shell command.
type Kind int

const (
	CmdEmpty Kind = iota
	CmdAsk
	CmdIndex
	CmdFind
	CmdEdit
	CmdRun
	CmdCd
	CmdApply
	CmdClear
	CmdHelp
	CmdQuit
	CmdShell
	CmdUnknown
)

// Command is one parsed input line.
type Command struct {
	Kind Kind
	// Arg is the question, query, path or shell line.
	Arg string
	// Ext is the --ext filter of :find.
	Ext string
	// Name is the command word as typed, for error messages.
	Name string
}

var commands = map[string]Kind{
	"index":  CmdIndex,
	"find":   CmdFind,
	"search": CmdFind,
	"edit":   CmdEdit,
	"run":    CmdRun,
	"cd":     CmdCd,
	"apply":  CmdApply,
	"clear":  CmdClear,
	"help":   CmdHelp,
	"quit":   CmdQuit,
	"exit":   CmdQuit,
	"q":      CmdQuit,
}

// Parse classifies a line: ":cmd args", "!shell line" or a question.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return Command{Kind: CmdEmpty}
	case strings.HasPrefix(line, "!"):
		return Command{Kind: CmdShell, Arg: strings.TrimSpace(line[1:]), Name: "!"}
	case !strings.HasPrefix(line, ":"):
		return Command{Kind: CmdAsk, Arg: line}
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)
	kind, ok := commands[name]
	if !ok {
		return Command{Kind: CmdUnknown, Name: name, Arg: rest}
	}
	cmd := Command{Kind: kind, Name: name, Arg: rest}
	if kind == CmdFind {
		cmd.Arg, cmd.Ext = splitExt(rest)
	}
	return cmd
}

// splitExt pulls "--ext X", "--ext=X" or "-e X" out of args.
func splitExt(args string) (query, ext string) {
	fields := strings.Fields(args)
	kept := fields[:0]
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case strings.HasPrefix(f, "--ext="):
			ext = strings.TrimPrefix(f, "--ext=")
		case (f == "--ext" || f == "-e") && i+1 < len(fields):
			ext = fields[i+1]
			i++
		default:
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " "), ext
}

const helpText = `Commands:
  <question>            ask about the codebase
  :find <query> [--ext .py]
                        search without asking the model
  :index                rebuild the index
  :edit <file>          open a file in your editor
  :run <file>           compile and run a source file
  :apply [file]         write the last answer to a file (default: the files it was based on)
  :cd <dir>             switch to another project root
  :clear                forget the conversation
  :help                 show this help
  :quit                 exit
  !<command>            run a shell command`
