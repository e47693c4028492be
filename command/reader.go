package command

import "io"

type Reader interface {
	Read() (Command, error)
}

type CommandsReader struct {
	Commands []Command
	n        int
}

func (c *CommandsReader) Read() (Command, error) {
	if c.n == len(c.Commands) {
		return Command{}, io.EOF
	}

	c.n++
	return c.Commands[c.n-1], nil
}
