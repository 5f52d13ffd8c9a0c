package ir

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var scalarNames = map[string]ScalarType{
	"bit": BIT,
	"u8":  UINT8,
	"u16": UINT16,
	"u32": UINT32,
	"u64": UINT64,
	"i8":  INT8,
	"i16": INT16,
	"i32": INT32,
	"i64": INT64,
}

// ParseType parses the textual type syntax produced by Type.String:
//
//	bit u8 u16 u32 u64 i8 i16 i32 i64
//	i32[2,3]            array
//	(u32, bit)          tuple
//	{a: u32, b: bit}    named tuple
//	vec(3, u32)         vector
func ParseType(s string) (Type, error) {
	p := &typeParser{src: s}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	if err := ValidateType(t); err != nil {
		return nil, fmt.Errorf("type %q: %w", s, err)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
// Use only in tests or for literals known to be valid.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("parse type %q at offset %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeParser) integer() (int64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("expected integer")
	}
	return strconv.ParseInt(p.src[start:p.pos], 10, 64)
}

func (p *typeParser) parseType() (Type, error) {
	switch p.peek() {
	case '(':
		p.pos++
		var elems []Type
		if p.peek() == ')' {
			p.pos++
			return TupleType{}, nil
		}
		for {
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			elems = append(elems, t)
			if p.peek() == ',' {
				p.pos++
				continue
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			return TupleType{Elems: elems}, nil
		}
	case '{':
		p.pos++
		var fields []Field
		if p.peek() == '}' {
			p.pos++
			return NamedTupleType{}, nil
		}
		for {
			name := p.ident()
			if name == "" {
				return nil, p.errorf("expected field name")
			}
			if err := p.expect(':'); err != nil {
				return nil, err
			}
			t, err := p.parseType()
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: name, Type: t})
			if p.peek() == ',' {
				p.pos++
				continue
			}
			if err := p.expect('}'); err != nil {
				return nil, err
			}
			return NamedTupleType{Fields: fields}, nil
		}
	}

	name := p.ident()
	if name == "vec" {
		if err := p.expect('('); err != nil {
			return nil, err
		}
		n, err := p.integer()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return VectorType{Len: n, Elem: elem}, nil
	}

	st, ok := scalarNames[strings.ToLower(name)]
	if !ok {
		return nil, p.errorf("unknown scalar type %q", name)
	}
	if p.peek() != '[' {
		return st, nil
	}
	p.pos++
	var shape []int64
	for {
		d, err := p.integer()
		if err != nil {
			return nil, err
		}
		shape = append(shape, d)
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if err := p.expect(']'); err != nil {
			return nil, err
		}
		return ArrayType{Shape: shape, Elem: st}, nil
	}
}
