package command

import (
	"bytes"
	"io"
)

func Parse(data string) ([]Command, error) {
	r := NewParser(bytes.NewBufferString(data))
	var c []Command
	for {
		cmd, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		c = append(c, cmd)
	}
	return c, nil
}

func MustParse(data string) []Command {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}
