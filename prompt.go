package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the user for input. Ask and AskSecret return ctx.Err() as
// soon as ctx is done, even while a read is still blocked.
type Prompter interface {
	Ask(ctx context.Context, prompt string) (string, error)
	AskSecret(ctx context.Context, prompt string) (string, error)
	Say(msg string)
}

type promptAnswer struct {
	line string
	err  error
}

// TerminalPrompter reads answers line by line. Secrets are read without echo
// when the input is a terminal.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int

	// a read abandoned by a cancelled Ask; the next Ask collects it first
	pending chan promptAnswer
}

func NewTerminalPrompter(in *os.File, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out, fd: int(in.Fd())}
}

// NewLinePrompter never hides input.
func NewLinePrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out, fd: -1}
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// await runs read on its own goroutine so a blocked read cannot hold up a
// cancelled ctx.
func (p *TerminalPrompter) await(ctx context.Context, read func() (string, error)) (string, error) {
	answers := p.pending
	if answers == nil {
		answers = make(chan promptAnswer, 1)
		go func() {
			line, err := read()
			answers <- promptAnswer{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		p.pending = answers
		return "", ctx.Err()
	case answer := <-answers:
		p.pending = nil
		return answer.line, answer.err
	}
}

func (p *TerminalPrompter) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, prompt)
	return p.await(ctx, p.readLine)
}

func (p *TerminalPrompter) AskSecret(ctx context.Context, prompt string) (string, error) {
	if p.fd < 0 || !term.IsTerminal(p.fd) {
		return p.Ask(ctx, prompt)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// ReadPassword restores echo only when it returns
	state, stateErr := term.GetState(p.fd)
	fmt.Fprint(p.out, prompt)
	secret, err := p.await(ctx, func() (string, error) {
		raw, readErr := term.ReadPassword(p.fd)
		return strings.TrimSpace(string(raw)), readErr
	})
	if ctx.Err() != nil && stateErr == nil {
		_ = term.Restore(p.fd, state)
	}
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return secret, nil
}

func (p *TerminalPrompter) Say(msg string) {
	fmt.Fprintln(p.out, msg)
}

// ScriptedPrompter answers from a fixed list and returns io.EOF once the list
// runs out. Messages are kept for inspection and echoed to out if set.
type ScriptedPrompter struct {
	Answers  []string
	Prompts  []string
	Messages []string
	out      io.Writer
}

func NewScriptedPrompter(out io.Writer, answers ...string) *ScriptedPrompter {
	return &ScriptedPrompter{Answers: answers, out: out}
}

func (p *ScriptedPrompter) Ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.Prompts = append(p.Prompts, prompt)
	if len(p.Answers) == 0 {
		return "", io.EOF
	}
	answer := p.Answers[0]
	p.Answers = p.Answers[1:]
	return answer, nil
}

func (p *ScriptedPrompter) AskSecret(ctx context.Context, prompt string) (string, error) {
	return p.Ask(ctx, prompt)
}

func (p *ScriptedPrompter) Say(msg string) {
	p.Messages = append(p.Messages, msg)
	if p.out != nil {
		fmt.Fprintln(p.out, msg)
	}
}
