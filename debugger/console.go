package debugger

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Console reads debugger commands. When attached to a terminal it provides
// line editing and history. Otherwise it falls back to plain line reads.
type Console struct {
	out  io.Writer
	fd   int
	term *term.Terminal
	scan *bufio.Scanner
}

// NewConsole returns a Console reading from in and echoing prompts to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.fd = int(f.Fd())
		c.term = term.NewTerminal(struct {
			io.Reader
			io.Writer
		}{in, out}, "")
		return c
	}
	c.scan = bufio.NewScanner(in)
	return c
}

// ReadLine implements LineReader. The terminal is only in raw mode while a
// line is being read so other output isn't mangled.
func (c *Console) ReadLine(prompt string) (string, error) {
	if c.term != nil {
		old, err := term.MakeRaw(c.fd)
		if err != nil {
			return "", fmt.Errorf("can't set raw mode: %w", err)
		}
		defer term.Restore(c.fd, old)
		c.term.SetPrompt(prompt)
		return c.term.ReadLine()
	}
	fmt.Fprint(c.out, prompt)
	if !c.scan.Scan() {
		if err := c.scan.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.scan.Text(), nil
}
