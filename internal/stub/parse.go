package stub

import (
	"fmt"
	"strings"
)

// ParseShape parses the textual shape notation:
//
//	nil                          no payload
//	pkg.Name, Name               named type; the package is everything before the last dot
//	A | B                        union
//	(A, B)                       tuple
//
// Parentheses around a single shape only group.
func ParseShape(s string) (Shape, error) {
	p := &shapeParser{src: s}
	shape, err := p.union()
	if err != nil {
		return Shape{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return Shape{}, p.errorf("unexpected %q", p.src[p.pos])
	}
	return shape, nil
}

type shapeParser struct {
	src string
	pos int
}

func (p *shapeParser) union() (Shape, error) {
	first, err := p.term()
	if err != nil {
		return Shape{}, err
	}
	alts := []Shape{first}
	for p.consume('|') {
		next, err := p.term()
		if err != nil {
			return Shape{}, err
		}
		alts = append(alts, next)
	}
	if len(alts) == 1 {
		return first, nil
	}
	return UnionOf(alts...), nil
}

func (p *shapeParser) term() (Shape, error) {
	if p.consume('(') {
		first, err := p.union()
		if err != nil {
			return Shape{}, err
		}
		elems := []Shape{first}
		for p.consume(',') {
			next, err := p.union()
			if err != nil {
				return Shape{}, err
			}
			elems = append(elems, next)
		}
		if !p.consume(')') {
			return Shape{}, p.errorf("expected ')'")
		}
		if len(elems) == 1 {
			return first, nil
		}
		return TupleOf(elems...), nil
	}
	return p.named()
}

func (p *shapeParser) named() (Shape, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("|,() \t\n", rune(p.src[p.pos])) {
		p.pos++
	}
	word := p.src[start:p.pos]
	if word == "" {
		return Shape{}, p.errorf("expected a type name")
	}
	if word == "nil" {
		return NoPayload(), nil
	}
	i := strings.LastIndexByte(word, '.')
	if i < 0 {
		return NamedShape("", word), nil
	}
	if i == 0 || i == len(word)-1 {
		return Shape{}, p.errorf("invalid type name %q", word)
	}
	return NamedShape(word[:i], word[i+1:]), nil
}

func (p *shapeParser) consume(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *shapeParser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *shapeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("parse shape %q at offset %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}
