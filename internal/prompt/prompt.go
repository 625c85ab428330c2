// Package prompt asks for the document fields a command line left out.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
)

// ErrAborted is returned when the user cancels a prompt with Ctrl-C.
var ErrAborted = errors.New("prompt: aborted")

// LineReader reads one line of input after showing a prompt.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// Prompter collects document fields interactively.
type Prompter struct {
	in  LineReader
	out io.Writer
}

// New returns a prompter reading from in and printing labels to out.
func New(in LineReader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out}
}

// NewTerminal returns a prompter backed by a line editor on the controlling
// terminal. The returned function restores the terminal.
func NewTerminal(out io.Writer) (*Prompter, func() error) {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	return New(&terminal{state: state}, out), state.Close
}

// NewReader returns a prompter reading lines from r, for piped input.
func NewReader(r io.Reader, out io.Writer) *Prompter {
	return New(&reader{r: bufio.NewReader(r), out: out}, out)
}

// Type asks for one of types until a valid choice is made. An empty answer
// selects the first type.
func (p *Prompter) Type(types []string) (string, error) {
	if len(types) == 0 {
		return "", errors.New("prompt: no types to choose from")
	}
	valid := make(map[string]bool, len(types))
	for _, t := range types {
		valid[t] = true
	}
	for {
		fmt.Fprintln(p.out, "Select type:")
		for _, t := range types {
			fmt.Fprintf(p.out, "  - %s\n", t)
		}
		line, err := p.line(fmt.Sprintf("Type [%s]: ", types[0]))
		if err != nil {
			return "", err
		}
		value := strings.TrimSpace(line)
		if value == "" {
			value = types[0]
		}
		if valid[value] {
			return value, nil
		}
		fmt.Fprintf(p.out, "Invalid type `%s`; please choose one of the listed options.\n", value)
	}
}

// Tags asks for a comma separated tag list.
func (p *Prompter) Tags() ([]string, error) {
	return p.list("Tags (comma separated, optional): ")
}

// Relations asks for a comma separated list of related links.
func (p *Prompter) Relations() ([]string, error) {
	return p.list("Relates to (comma separated slugs, optional): ")
}

// Body reads lines until the first empty line or end of input.
func (p *Prompter) Body() (string, error) {
	fmt.Fprintln(p.out, "Body (finish with an empty line):")
	var lines []string
	for {
		line, err := p.in.Prompt("")
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", p.wrap(err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func (p *Prompter) list(label string) ([]string, error) {
	line, err := p.line(label)
	if err != nil {
		return nil, err
	}
	return SplitList(line), nil
}

// line reads one answer. End of input counts as an empty answer.
func (p *Prompter) line(label string) (string, error) {
	line, err := p.in.Prompt(label)
	if errors.Is(err, io.EOF) {
		return line, nil
	}
	if err != nil {
		return "", p.wrap(err)
	}
	return line, nil
}

func (p *Prompter) wrap(err error) error {
	if errors.Is(err, liner.ErrPromptAborted) {
		return ErrAborted
	}
	return fmt.Errorf("prompt: read input: %w", err)
}

// SplitList splits a comma separated answer and drops empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type terminal struct {
	state *liner.State
}

func (t *terminal) Prompt(prompt string) (string, error) {
	line, err := t.state.Prompt(prompt)
	if err == nil && strings.TrimSpace(line) != "" {
		t.state.AppendHistory(line)
	}
	return line, err
}

type reader struct {
	r   *bufio.Reader
	out io.Writer
}

func (r *reader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	line, err := r.r.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
