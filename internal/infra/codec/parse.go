package codec

import (
	"strings"
)

type row struct {
	line  int
	cells []string
}

// parse splits text into rows of cells. Blank lines are skipped.
func parse(text string) ([]row, error) {
	var rows []row
	line := 1
	i := 0
	n := len(text)

	for i <= n {
		start := line
		var cells []string
		blank := true

		for {
			for i < n && (text[i] == ' ' || text[i] == '\t') {
				i++
			}

			var cell string
			if i < n && text[i] == Quote {
				blank = false
				var b strings.Builder
				i++
				closed := false
				for i < n {
					c := text[i]
					if c == Quote {
						if i+1 < n && text[i+1] == Quote {
							b.WriteByte(Quote)
							i += 2
							continue
						}
						i++
						closed = true
						break
					}
					if c == '\n' {
						line++
					}
					b.WriteByte(c)
					i++
				}
				if !closed {
					return nil, &SyntaxError{Line: start, Msg: "unterminated quoted field"}
				}
				for i < n && (text[i] == ' ' || text[i] == '\t') {
					i++
				}
				if i < n && text[i] != Delimiter && text[i] != '\r' && text[i] != '\n' {
					return nil, &SyntaxError{Line: line, Msg: "unexpected character after quoted field"}
				}
				cell = b.String()
			} else {
				j := i
				for j < n && text[j] != Delimiter && text[j] != '\r' && text[j] != '\n' {
					if text[j] == Quote {
						return nil, &SyntaxError{Line: line, Msg: "bare quote in unquoted field"}
					}
					j++
				}
				cell = strings.TrimRight(text[i:j], " \t")
				if cell != "" {
					blank = false
				}
				i = j
			}
			cells = append(cells, cell)

			if i < n && text[i] == Delimiter {
				blank = false
				i++
				continue
			}
			break
		}

		// row terminator: CR LF, LF or a lone CR
		if i < n && text[i] == '\r' {
			i++
		}
		if i < n && text[i] == '\n' {
			i++
		}
		line++

		if !blank {
			rows = append(rows, row{line: start, cells: cells})
		}
		if i >= n {
			break
		}
	}

	if len(rows) == 0 {
		return nil, &SyntaxError{Line: 1, Msg: "missing header"}
	}
	return rows, nil
}
