package lexer

import "fmt"

// MalformedLineError reports a quoted field that never closes before the
// end of the line. Offset is the byte position of the opening quote.
type MalformedLineError struct {
	Offset int
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("unterminated quote starting at byte %d", e.Offset)
}

// scanner states
const (
	stateNormal = iota
	stateWord
	stateQuoted
	stateQuotedSlash
)

func isSeparator(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Split tokenizes one access-log line. Tokens are separated by runs of
// whitespace, except that a double quote at the start of a token opens a
// quoted run which continues (separators included) until an unescaped
// closing quote. Quoted tokens keep their surrounding quote characters;
// the log producer quotes fields that can contain spaces (request line,
// user agent) and downstream consumers expect them verbatim.
//
// A quote in the middle of a word is ordinary data. A backslash inside a
// quoted run escapes the following character, so \" does not close the
// run.
func Split(line string) ([]string, error) {
	var tokens []string

	state := stateNormal
	start := 0

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch state {
		case stateNormal:
			if isSeparator(c) {
				continue
			}
			start = i
			if c == '"' {
				state = stateQuoted
			} else {
				state = stateWord
			}

		case stateWord:
			if isSeparator(c) {
				tokens = append(tokens, line[start:i])
				state = stateNormal
			}

		case stateQuoted:
			switch c {
			case '"':
				tokens = append(tokens, line[start:i+1])
				state = stateNormal
			case '\\':
				state = stateQuotedSlash
			}

		case stateQuotedSlash:
			state = stateQuoted
		}
	}

	switch state {
	case stateWord:
		tokens = append(tokens, line[start:])
	case stateQuoted, stateQuotedSlash:
		return nil, &MalformedLineError{Offset: start}
	}

	return tokens, nil
}
