package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"diver/internal/index"
	"diver/internal/llm"
	"diver/internal/search"
	"diver/internal/workspace"
)

// maxHistory bounds the conversation sent with each question.
const maxHistory = 20

// Backend is what the shell needs from the application.
type Backend interface {
	Search(ctx context.Context, query, ext string) ([]search.Result, error)
	Index(ctx context.Context, opts ...index.Option) (*index.Stats, error)
	Retarget(root string) error
	Root() string
}

// Generator produces an answer for a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message) (string, error)
}

// Options configures a Shell.
type Options struct {
	In       io.Reader
	Out      io.Writer
	Editor   string
	Runner   *workspace.Runner
	Renderer Renderer
	Logger   *slog.Logger
}

// Shell reads commands and questions line by line.
type Shell struct {
	backend Backend
	gen     Generator
	in      *bufio.Scanner
	out     io.Writer
	editor  string
	runner  *workspace.Runner
	render  Renderer
	logger  *slog.Logger

	history     []llm.Message
	lastAnswer  string
	lastSources []string
}

// New creates a Shell. Nil options fall back to stdin, stdout and plain
// rendering.
func New(b Backend, gen Generator, opts Options) *Shell {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Renderer == nil {
		opts.Renderer = PlainRenderer{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	sc := bufio.NewScanner(opts.In)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Shell{
		backend: b,
		gen:     gen,
		in:      sc,
		out:     opts.Out,
		editor:  opts.Editor,
		runner:  opts.Runner,
		render:  opts.Renderer,
		logger:  opts.Logger,
	}
}

// Run reads lines until :quit, end of input or ctx is done. Command
// failures are printed and the loop continues.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, s.render.Title("diver")+" "+s.render.Dim("type :help for commands"))
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(s.out, s.render.Prompt("\n> "))
		line, ok := s.readLine()
		if !ok {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		quit, err := s.Execute(ctx, Parse(line))
		if err != nil {
			fmt.Fprintln(s.out, s.render.Error(err.Error()))
		}
		if quit {
			return nil
		}
	}
}

func (s *Shell) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return s.in.Text(), true
}

// Execute runs one command and reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, cmd Command) (bool, error) {
	switch cmd.Kind {
	case CmdEmpty:
		return false, nil
	case CmdQuit:
		return true, nil
	case CmdHelp:
		fmt.Fprintln(s.out, s.render.Dim(helpText))
		return false, nil
	case CmdClear:
		s.history, s.lastAnswer, s.lastSources = nil, "", nil
		fmt.Fprintln(s.out, s.render.Dim("Conversation cleared."))
		return false, nil
	case CmdIndex:
		return false, s.index(ctx)
	case CmdFind:
		return false, s.find(ctx, cmd.Arg, cmd.Ext)
	case CmdAsk:
		return false, s.ask(ctx, cmd.Arg)
	case CmdEdit:
		return false, s.edit(ctx, cmd.Arg)
	case CmdRun:
		return false, s.run(ctx, cmd.Arg)
	case CmdCd:
		return false, s.cd(cmd.Arg)
	case CmdApply:
		return false, s.apply(ctx, cmd.Arg)
	case CmdShell:
		return false, s.shell(ctx, cmd.Arg)
	default:
		return false, fmt.Errorf("unknown command :%s (try :help)", cmd.Name)
	}
}

func (s *Shell) index(ctx context.Context) error {
	fmt.Fprintln(s.out, s.render.Dim("Indexing "+s.backend.Root()+"..."))
	stats, err := s.backend.Index(ctx)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	fmt.Fprintln(s.out, s.render.Success(fmt.Sprintf("Indexed %d chunks from %d files in %s.",
		stats.ChunksTotal, stats.FilesTotal, stats.Elapsed.Round(time.Millisecond))))
	return nil
}

func (s *Shell) find(ctx context.Context, query, ext string) error {
	if query == "" {
		return errors.New("usage: :find <query> [--ext .py]")
	}
	results, err := s.backend.Search(ctx, query, ext)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(s.out, s.render.Dim("No matches."))
		return nil
	}
	for _, r := range results {
		label := r.Source
		if r.Distance != nil {
			label += fmt.Sprintf(" (distance %.3f)", *r.Distance)
		} else {
			label += " (exact)"
		}
		fmt.Fprintf(s.out, "\n%s\n%s\n%s\n", s.render.Source("File: "+label), r.Snippet, s.render.Dim(strings.Repeat("-", 40)))
	}
	return nil
}

func (s *Shell) ask(ctx context.Context, question string) error {
	results, err := s.backend.Search(ctx, question, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, s.render.Dim(fmt.Sprintf("Thinking with %d context snippets...", len(results))))

	msgs := llm.BuildMessages(question, search.FormatContext(results), s.history)
	answer, err := s.gen.Generate(ctx, msgs)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	s.history = append(s.history,
		llm.Message{Role: "user", Content: question},
		llm.Message{Role: "assistant", Content: answer},
	)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.lastAnswer = answer
	s.lastSources = s.lastSources[:0]
	for _, r := range results {
		s.lastSources = appendUnique(s.lastSources, r.Source)
	}

	fmt.Fprintln(s.out, s.render.Markdown(answer))
	if len(s.lastSources) > 0 {
		fmt.Fprintln(s.out, s.render.Dim("Sources: "+strings.Join(s.lastSources, ", ")+"  (:apply to write the answer)"))
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// resolve makes path absolute against the project root.
func (s *Shell) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.backend.Root(), path)
}

func (s *Shell) edit(ctx context.Context, file string) error {
	if file == "" {
		return errors.New("usage: :edit <file>")
	}
	path := s.resolve(file)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return fmt.Errorf("file not found: %s", file)
	}
	return workspace.Edit(ctx, workspace.ResolveEditor(s.editor), path)
}

func (s *Shell) run(ctx context.Context, file string) error {
	if file == "" {
		return errors.New("usage: :run <file>")
	}
	if s.runner == nil {
		return errors.New("no runner configured")
	}
	return s.runner.Run(ctx, s.resolve(file))
}

func (s *Shell) cd(dir string) error {
	if dir == "" {
		return errors.New("usage: :cd <dir>")
	}
	path := s.resolve(dir)
	if err := s.backend.Retarget(path); err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	if err := os.Chdir(path); err != nil {
		return fmt.Errorf("cd: %w", err)
	}
	s.history, s.lastAnswer, s.lastSources = nil, "", nil
	fmt.Fprintln(s.out, s.render.Success("Now in "+s.backend.Root()+". Run :index to index it."))
	return nil
}

var fence = regexp.MustCompile("(?s)```[^\\n]*\\n(.*?)```")

// answerCode returns the first fenced code block of answer, or all of it.
func answerCode(answer string) string {
	if m := fence.FindStringSubmatch(answer); m != nil {
		return m[1]
	}
	return answer
}

func (s *Shell) apply(ctx context.Context, file string) error {
	if s.lastAnswer == "" {
		return errors.New("nothing to apply; ask a question first")
	}
	targets := s.lastSources
	if file != "" {
		targets = []string{file}
	}
	if len(targets) == 0 {
		return errors.New("usage: :apply <file>")
	}

	text := answerCode(s.lastAnswer)
	fmt.Fprintf(s.out, "%s\n%s\n%s\n", s.render.Dim("--- suggestion ---"), text, s.render.Dim("--- end ---"))
	fmt.Fprint(s.out, s.render.Prompt(fmt.Sprintf("Write to %s? [y/N/e(dit)] ", strings.Join(targets, ", "))))

	reply, _ := s.readLine()
	switch strings.ToLower(strings.TrimSpace(reply)) {
	case "y", "yes":
	case "e", "edit":
		edited, err := workspace.EditText(ctx, workspace.ResolveEditor(s.editor), text, filepath.Ext(targets[0]))
		if err != nil {
			return err
		}
		text = edited
	default:
		fmt.Fprintln(s.out, s.render.Dim("Not applied."))
		return nil
	}

	for _, t := range targets {
		if err := workspace.WriteText(s.resolve(t), text); err != nil {
			return err
		}
		fmt.Fprintln(s.out, s.render.Success("Updated "+t))
	}
	return nil
}

func (s *Shell) shell(ctx context.Context, line string) error {
	if line == "" {
		return errors.New("usage: !<command>")
	}
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", line)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", line)
	}
	cmd.Dir = s.backend.Root()
	cmd.Stdin = os.Stdin
	cmd.Stdout = s.out
	cmd.Stderr = s.out
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("exit status %d", exitErr.ExitCode())
		}
		return err
	}
	return nil
}
