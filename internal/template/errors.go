package template

import (
	"fmt"
	"go/token"
)

// SyntaxError is a malformed reference or an untokenizable template.
type SyntaxError struct {
	Template string
	Pos      token.Position
	Text     string
	Reason   string
}

func (e *SyntaxError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("%s: syntax error: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("%s: syntax error in reference %q: %s", e.Pos, e.Text, e.Reason)
}
