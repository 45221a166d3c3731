package template

import (
	"bytes"
	"errors"
	"fmt"
	"go/scanner"
	"go/token"
	"strings"
)

// Namespace is the only reference namespace plugins export today.
const Namespace = "command"

// maxErrorText caps how much source a SyntaxError quotes.
const maxErrorText = 80

// Template is one parsed template file.
type Template struct {
	Name    string
	Package string
	Src     []byte
	Refs    []*Ref
	File    *token.File
}

// Ref is one symbolic reference and its call arguments.
type Ref struct {
	Plugin    string
	Namespace string
	Helper    string
	// Start and End bound the whole reference, End just past the closing
	// parenthesis.
	Start, End int
	Pos        token.Position
	Args       []Arg
}

// Arg is one argument of a reference call.
type Arg struct {
	Label string
	// Start and End bound the argument value, excluding any label.
	Start, End int
	Refs       []*Ref
}

// Text returns the source text of the reference.
func (t *Template) Text(r *Ref) string { return string(t.Src[r.Start:r.End]) }

// ArgText returns the source text of an argument value.
func (t *Template) ArgText(a Arg) string { return string(t.Src[a.Start:a.End]) }

// Walk visits every reference depth first, outer before inner.
func (t *Template) Walk(fn func(*Ref)) {
	var walk func([]*Ref)
	walk = func(refs []*Ref) {
		for _, r := range refs {
			fn(r)
			for _, a := range r.Args {
				walk(a.Refs)
			}
		}
	}
	walk(t.Refs)
}

// Count returns the number of references, nested ones included.
func (t *Template) Count() int {
	n := 0
	t.Walk(func(*Ref) { n++ })
	return n
}

type tok struct {
	off int
	end int
	tok token.Token
	lit string
}

// Parse tokenizes src and extracts its reference tree. All syntax problems
// are reported, joined.
func Parse(name string, src []byte) (*Template, error) {
	fset := token.NewFileSet()
	file := fset.AddFile(name, -1, len(src))

	var errs []error
	var s scanner.Scanner
	s.Init(file, src, func(pos token.Position, msg string) {
		errs = append(errs, &SyntaxError{Template: name, Pos: pos, Reason: msg})
	}, 0)

	var toks []tok
	for {
		pos, t, lit := s.Scan()
		if t == token.EOF {
			break
		}
		// Automatic semicolons at line ends carry no source text.
		if t == token.SEMICOLON && lit == "\n" {
			continue
		}
		off := file.Offset(pos)
		toks = append(toks, tok{off: off, end: tokenEnd(src, off, t, lit), tok: t, lit: lit})
	}

	p := &parser{name: name, src: src, file: file, toks: toks}
	tmpl := &Template{Name: name, Src: src, File: file}
	if len(toks) >= 2 && toks[0].tok == token.PACKAGE && toks[1].tok == token.IDENT {
		tmpl.Package = toks[1].lit
	} else {
		errs = append(errs, &SyntaxError{Template: name, Pos: file.Position(file.Pos(0)), Reason: "template must start with a package clause"})
	}

	for i := 0; i < len(toks); {
		if !p.refAt(i) {
			i++
			continue
		}
		ref, next, err := p.parseRef(i)
		if err != nil {
			errs = append(errs, err)
			i = next
			continue
		}
		tmpl.Refs = append(tmpl.Refs, ref)
		i = next
	}
	errs = append(errs, p.errs...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return tmpl, nil
}

// tokenEnd returns the source offset just past the token at off. The
// scanner drops carriage returns from raw string literals, so their end is
// taken from the closing backtick in src rather than from lit.
func tokenEnd(src []byte, off int, t token.Token, lit string) int {
	if t == token.STRING && strings.HasPrefix(lit, "`") {
		if i := bytes.IndexByte(src[off+1:], '`'); i >= 0 {
			return off + 1 + i + 1
		}
		return len(src)
	}
	if lit == "" {
		return off + len(t.String())
	}
	return off + len(lit)
}

type parser struct {
	name string
	src  []byte
	file *token.File
	toks []tok
	errs []error
}

// refAt reports whether a reference starts at toks[i]: an identifier
// immediately followed by "::".
func (p *parser) refAt(i int) bool {
	if i+2 >= len(p.toks) {
		return false
	}
	a, b, c := p.toks[i], p.toks[i+1], p.toks[i+2]
	return a.tok == token.IDENT && b.tok == token.COLON && c.tok == token.COLON &&
		b.off == a.end && c.off == b.end
}

func (p *parser) position(off int) token.Position {
	return p.file.Position(p.file.Pos(off))
}

func (p *parser) fail(start, end int, format string, args ...any) *SyntaxError {
	if end > len(p.src) {
		end = len(p.src)
	}
	if end-start > maxErrorText {
		end = start + maxErrorText
	}
	return &SyntaxError{
		Template: p.name,
		Pos:      p.position(start),
		Text:     string(bytes.TrimSpace(p.src[start:end])),
		Reason:   fmt.Sprintf(format, args...),
	}
}

// parseRef parses plugin::ns::helper(args) starting at toks[i] and returns
// the index of the first token after the closing parenthesis.
func (p *parser) parseRef(i int) (*Ref, int, error) {
	start := p.toks[i].off
	want := []token.Token{token.IDENT, token.COLON, token.COLON, token.IDENT, token.COLON, token.COLON, token.IDENT}
	for k, w := range want {
		j := i + k
		if j >= len(p.toks) || p.toks[j].tok != w {
			end := len(p.src)
			if j < len(p.toks) {
				end = p.toks[j].end
			}
			return nil, j + 1, p.fail(start, end, "expected plugin::namespace::helper")
		}
		if k > 0 && p.toks[j].off != p.toks[j-1].end {
			return nil, j + 1, p.fail(start, p.toks[j].end, "reference must not contain spaces")
		}
	}
	ref := &Ref{
		Plugin:    p.toks[i].lit,
		Namespace: p.toks[i+3].lit,
		Helper:    p.toks[i+6].lit,
		Start:     start,
		Pos:       p.position(start),
	}

	j := i + 7
	if j >= len(p.toks) || p.toks[j].tok != token.LPAREN {
		return nil, j, p.fail(start, p.toks[i+6].end, "reference must be called")
	}
	j++

	var (
		depth     int
		args      []Arg
		cur       = Arg{Start: -1}
		argFirst  = j
		openStack []token.Token
	)
	closeArg := func(endIdx int) {
		// endIdx is exclusive.
		if argFirst >= endIdx {
			return
		}
		k := argFirst
		if k+1 < endIdx && p.toks[k].tok == token.IDENT && p.toks[k+1].tok == token.COLON &&
			!(k+2 < endIdx && p.toks[k+2].tok == token.COLON && p.toks[k+2].off == p.toks[k+1].end) {
			cur.Label = p.toks[k].lit
			k += 2
		}
		if k >= endIdx {
			p.errs = append(p.errs, p.fail(start, p.toks[endIdx-1].end, "argument %q has no value", cur.Label))
			return
		}
		cur.Start = p.toks[k].off
		cur.End = p.toks[endIdx-1].end
		args = append(args, cur)
	}

	for j < len(p.toks) {
		t := p.toks[j]
		switch t.tok {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			openStack = append(openStack, t.tok)
			depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			if depth == 0 {
				if t.tok != token.RPAREN {
					return nil, j + 1, p.fail(start, t.end, "unbalanced %s in reference call", t.tok)
				}
				closeArg(j)
				ref.End = t.end
				ref.Args = args
				return ref, j + 1, nil
			}
			if opener := openStack[len(openStack)-1]; !matches(opener, t.tok) {
				return nil, j + 1, p.fail(start, t.end, "unbalanced %s in reference call", t.tok)
			}
			openStack = openStack[:len(openStack)-1]
			depth--
		case token.COMMA:
			if depth == 0 {
				closeArg(j)
				cur = Arg{Start: -1}
				argFirst = j + 1
				j++
				continue
			}
		case token.IDENT:
			if p.refAt(j) {
				nested, next, err := p.parseRef(j)
				if err != nil {
					return nil, next, err
				}
				cur.Refs = append(cur.Refs, nested)
				j = next
				continue
			}
		}
		j++
	}
	return nil, len(p.toks), p.fail(start, len(p.src), "unterminated reference call")
}

func matches(open, close token.Token) bool {
	switch open {
	case token.LPAREN:
		return close == token.RPAREN
	case token.LBRACK:
		return close == token.RBRACK
	case token.LBRACE:
		return close == token.RBRACE
	}
	return false
}
