// internal/prompt/prompt.go
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// ErrNotNumber is returned by Int when the operator typed something that
// does not parse as an integer.
var ErrNotNumber = errors.New("prompt: not a number")

// Prompter writes labels to out and reads one line of input per answer.
// Lines may be of any length.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Line prints label and returns the next input line without its trailing
// newline. A last line without a newline is still returned; io.EOF comes
// once input is exhausted.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Int reads a line and parses it as a base-10 integer.
func (p *Prompter) Int(label string) (int64, error) {
	line, err := p.Line(label)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumber, line)
	}
	return n, nil
}

// Choose repeats the label until the trimmed answer is one of valid,
// printing invalid after every rejected answer.
func (p *Prompter) Choose(label string, valid []string, invalid string) (string, error) {
	for {
		line, err := p.Line(label)
		if err != nil {
			return "", err
		}
		answer := strings.TrimSpace(line)
		if slices.Contains(valid, answer) {
			return answer, nil
		}
		fmt.Fprintln(p.out, invalid)
	}
}
