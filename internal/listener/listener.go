package listener

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

// Console is the interactive terminal. Lines printed asynchronously land above
// the prompt. Without a readline instance it reads and writes plain streams.
type Console struct {
	rl  *readline.Instance
	in  *bufio.Reader
	out io.Writer

	mu        sync.Mutex
	holdAsync bool
	heldLines []string
}

func New(prompt string) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

func NewPlain(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

func (c *Console) Close() {
	if c.rl != nil {
		_ = c.rl.Close()
	}
}

func (c *Console) SetPrompt(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rl != nil {
		c.rl.SetPrompt(p)
		c.rl.Refresh()
	}
}

func (c *Console) BeginInteractive() {
	c.mu.Lock()
	c.holdAsync = true
	c.mu.Unlock()
}

func (c *Console) EndInteractive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdAsync = false
	for _, s := range c.heldLines {
		c.printAboveUnlocked(s)
	}
	c.heldLines = nil
}

func (c *Console) printAboveUnlocked(s string) {
	if c.rl == nil {
		fmt.Fprintln(c.out, s)
		return
	}
	_, _ = c.rl.Write([]byte("\r\n" + s + "\r\n"))
	c.rl.Refresh()
}

// Println writes a line in response to a command.
func (c *Console) Println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printAboveUnlocked(s)
}

// AsyncPrintln writes a line from a background event. While a question is
// pending the line is held back until it has been answered.
func (c *Console) AsyncPrintln(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holdAsync {
		c.heldLines = append(c.heldLines, s)
		return
	}
	c.printAboveUnlocked(s)
}

// ReadLine returns the next trimmed line. io.EOF and readline.ErrInterrupt end
// the session.
func (c *Console) ReadLine() (string, error) {
	var (
		line string
		err  error
	)
	if c.rl != nil {
		line, err = c.rl.Readline()
	} else {
		line, err = c.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) confirmation(prompt string) (string, error) {
	if c.rl == nil {
		line, err := c.ReadLine()
		return strings.ToLower(line), err
	}

	c.mu.Lock()
	old := c.rl.Config.Prompt
	c.rl.SetPrompt(prompt)
	c.mu.Unlock()

	line, err := c.ReadLine()

	c.mu.Lock()
	c.rl.SetPrompt(old)
	c.mu.Unlock()
	return strings.ToLower(line), err
}

// AskYesNo asks until it gets y/yes or n/no. A closed input counts as no.
func (c *Console) AskYesNo(question string) bool {
	c.BeginInteractive()
	defer c.EndInteractive()

	c.Println(question + " [y/n]")
	for {
		ans, err := c.confirmation("? ")
		if err != nil {
			return false
		}
		switch ans {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		c.Println("Please answer y/n.")
	}
}
