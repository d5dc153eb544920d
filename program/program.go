package program

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	everyExprMatcher = regexp.MustCompile(`^every\s+(?:(\d+)\s+(minutes|hours)|(hour|minute))$`)
	atExprMatcher    = regexp.MustCompile(`^at\s+(\d+)\s*:\s*(\d+)$`)
)

type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bad program line %d (%s): %s", e.Line, e.Reason, e.Text)
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

// cutKeyword consumes kw from the start of s. The keyword must be a whole
// token.
func cutKeyword(s string, kw string) (string, bool) {
	s = strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(s, kw) {
		return s, false
	}
	rest := s[len(kw):]
	if rest != "" && !isBlank(rest[0]) {
		return s, false
	}
	return rest, true
}

// readPath consumes one path token. Paths are either bare (up to the next
// whitespace) or Go-quoted. When trailingSeparator is set, a bare token ending
// in ':' that is followed by more text gives its colon back to the caller so
// that "to dst: every hour" parses.
func readPath(s string, trailingSeparator bool) (string, string, error) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", "", errors.New("missing path")
	}

	if s[0] == '"' {
		end := 1
		for ; end < len(s); end++ {
			if s[end] == '\\' {
				end++
				continue
			}
			if s[end] == '"' {
				break
			}
		}
		if end >= len(s) {
			return "", "", errors.New("unterminated quoted path")
		}
		path, err := strconv.Unquote(s[:end+1])
		if err != nil {
			return "", "", fmt.Errorf("invalid quoted path: %v", err)
		}
		if path == "" {
			return "", "", errors.New("empty path")
		}
		return path, s[end+1:], nil
	}

	end := strings.IndexAny(s, " \t")
	if end < 0 {
		end = len(s)
	}
	path, rest := s[:end], s[end:]

	if trailingSeparator && len(path) > 1 && strings.HasSuffix(path, ":") && strings.TrimSpace(rest) != "" {
		return path[:len(path)-1], ":" + rest, nil
	}

	return path, rest, nil
}

func parseTimeExpr(expr string) (*TimeCondition, error) {
	if m := everyExprMatcher.FindStringSubmatch(expr); m != nil {
		switch m[3] {
		case "minute":
			return EveryMinutes(1), nil
		case "hour":
			return EveryHours(1), nil
		}

		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid count %q", m[1])
		}
		if n <= 0 {
			return nil, fmt.Errorf("count must be positive, got %d", n)
		}
		if m[2] == "hours" {
			if n > math.MaxInt/60 {
				return nil, fmt.Errorf("count too large, got %d hours", n)
			}
			return EveryHours(n), nil
		}
		return EveryMinutes(n), nil
	}

	if m := atExprMatcher.FindStringSubmatch(expr); m != nil {
		hour, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid hour %q", m[1])
		}
		minute, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("invalid minute %q", m[2])
		}
		return At(hour, minute), nil
	}

	return nil, fmt.Errorf("unknown time expression %q", expr)
}

func parseStatement(line string) (*Instruction, error) {
	rest, ok := cutKeyword(line, "backup")
	if !ok {
		return nil, errors.New(`expected "backup"`)
	}

	source, rest, err := readPath(rest, false)
	if err != nil {
		return nil, fmt.Errorf("source: %v", err)
	}

	rest, ok = cutKeyword(rest, "to")
	if !ok {
		return nil, errors.New(`expected "to" after source path`)
	}

	destination, rest, err := readPath(rest, true)
	if err != nil {
		return nil, fmt.Errorf("destination: %v", err)
	}

	inst := &Instruction{Source: source, Destination: destination}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return inst, nil
	}

	if rest[0] != ':' {
		return nil, fmt.Errorf("unexpected %q after destination path", rest)
	}

	cond, err := parseTimeExpr(strings.TrimSpace(rest[1:]))
	if err != nil {
		return nil, err
	}
	inst.Condition = cond

	return inst, nil
}

// ParseProgram reads one backup statement per line. Blank lines and lines
// starting with '#' are ignored. The first malformed line aborts parsing.
func ParseProgram(reader io.Reader) (*Program, error) {
	scanner := bufio.NewScanner(reader)

	instructions := make([]*Instruction, 0)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		if line[0] == '#' {
			continue
		}

		inst, err := parseStatement(line)
		if err != nil {
			return nil, &ParseError{Line: lineNumber, Text: line, Reason: err.Error()}
		}

		inst.Position = len(instructions)
		inst.Line = lineNumber
		instructions = append(instructions, inst)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &ParseError{Line: lineNumber + 1, Reason: err.Error()}
		}
		return nil, err
	}

	return &Program{Instructions: instructions}, nil
}

func ParseProgramString(text string) (*Program, error) {
	return ParseProgram(strings.NewReader(text))
}

func formatPath(path string) string {
	if path == "" || strings.ContainsAny(path, " \t\r\n\"\\") || strings.HasSuffix(path, ":") {
		return strconv.Quote(path)
	}
	return path
}

// String renders the instruction in canonical form, which ParseProgram reads
// back to an equivalent instruction.
func (i *Instruction) String() string {
	s := fmt.Sprintf("backup %s to %s", formatPath(i.Source), formatPath(i.Destination))
	if i.Condition != nil {
		s += " : " + i.Condition.String()
	}
	return s
}

func (p *Program) String() string {
	var b strings.Builder
	for _, inst := range p.Instructions {
		b.WriteString(inst.String())
		b.WriteString("\n")
	}
	return b.String()
}

// Conditional returns the instructions carrying a time condition, in program
// order.
func (p *Program) Conditional() []*Instruction {
	out := make([]*Instruction, 0)
	for _, inst := range p.Instructions {
		if inst.Condition != nil {
			out = append(out, inst)
		}
	}
	return out
}
