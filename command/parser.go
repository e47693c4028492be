package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

type Parser struct{ br *bufio.Reader }

func NewParser(r io.Reader) *Parser {
	if br, ok := r.(*bufio.Reader); ok {
		return &Parser{br: br}
	}

	return &Parser{br: bufio.NewReader(r)}
}

var (
	rxOp   = regexp.MustCompile(`^[A-Z]{2,}$`)
	rxWord = regexp.MustCompile(`^[A-Z]-?[0-9]*\.?[0-9]+$`)
)

// Read returns the next command, skipping blank lines.
func (p *Parser) Read() (Command, error) {
	for {
		s, err := p.br.ReadString('\n')
		if err == io.EOF && s != "" {
			err = nil
		}
		if err != nil {
			return Command{}, err
		}

		var msg string
		if i := strings.IndexByte(s, ';'); i >= 0 {
			msg = strings.TrimSpace(s[i+1:])
			s = s[:i]
		}
		fields := strings.Fields(strings.ToUpper(s))
		if len(fields) == 0 {
			if msg != "" {
				return Command{Op: Comment, Msg: msg}, nil
			}
			continue
		}

		if !rxOp.MatchString(fields[0]) {
			return Command{}, errors.New("invalid or unhandled line: " + strings.TrimSpace(s))
		}
		c := Command{Op: Op(fields[0]), Msg: msg}
		if len(fields) > 1 {
			c.Words = make([]Word, len(fields)-1)
		}
		for i, f := range fields[1:] {
			if !rxWord.MatchString(f) {
				return Command{}, errors.New("invalid word: " + f)
			}
			_, err = fmt.Sscanf(f, "%c%f", &c.Words[i].W, &c.Words[i].Arg)
			if err != nil {
				return Command{}, err
			}
		}

		return c, nil
	}
}
