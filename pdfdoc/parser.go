package pdfdoc

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Parse errors.
var (
	ErrCorruptDocument = errors.New("corrupt PDF document")
	errUnexpectedEOF   = errors.New("unexpected end of PDF data")
)

// parser reads PDF objects from an in-memory byte slice.
type parser struct {
	data []byte
	pos  int
}

func newParser(data []byte, pos int) *parser {
	return &parser{data: data, pos: pos}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\x00' || b == '\x0c'
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (p *parser) peek() (byte, bool) {
	if p.pos >= len(p.data) {
		return 0, false
	}
	return p.data[p.pos], true
}

// skipSpace advances past whitespace and comments.
func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		if isSpace(b) {
			p.pos++
			continue
		}
		if b == '%' {
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		return
	}
}

// token reads a bare token (keyword or number text).
func (p *parser) token() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.data) && !isSpace(p.data[p.pos]) && !isDelim(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// parseObject parses the next object, resolving "N G R" reference syntax.
func (p *parser) parseObject() (Object, error) {
	p.skipSpace()
	b, ok := p.peek()
	if !ok {
		return nil, errUnexpectedEOF
	}

	switch {
	case b == '/':
		return p.parseName()
	case b == '(':
		return p.parseLiteralString()
	case b == '<':
		if p.pos+1 < len(p.data) && p.data[p.pos+1] == '<' {
			return p.parseDict()
		}
		return p.parseHexString()
	case b == '[':
		return p.parseArray()
	case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
		return p.parseNumberOrRef()
	}

	switch tok := p.token(); tok {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	case "null":
		return Null{}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected token %q", ErrCorruptDocument, tok)
	}
}

func (p *parser) parseName() (Name, error) {
	p.pos++ // leading slash
	var out []byte
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		if isSpace(b) || isDelim(b) {
			break
		}
		if b == '#' && p.pos+2 < len(p.data) {
			if v, err := strconv.ParseUint(string(p.data[p.pos+1:p.pos+3]), 16, 8); err == nil {
				out = append(out, byte(v))
				p.pos += 3
				continue
			}
		}
		out = append(out, b)
		p.pos++
	}
	return Name(out), nil
}

func (p *parser) parseLiteralString() (String, error) {
	p.pos++ // opening paren
	var out []byte
	depth := 1
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		p.pos++
		switch b {
		case '\\':
			if p.pos >= len(p.data) {
				return nil, errUnexpectedEOF
			}
			e := p.data[p.pos]
			p.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\n':
				// line continuation
			case '\r':
				if p.pos < len(p.data) && p.data[p.pos] == '\n' {
					p.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '7'; i++ {
						v = v*8 + int(p.data[p.pos]-'0')
						p.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, b)
		case ')':
			depth--
			if depth == 0 {
				return String(out), nil
			}
			out = append(out, b)
		default:
			out = append(out, b)
		}
	}
	return nil, errUnexpectedEOF
}

func (p *parser) parseHexString() (HexString, error) {
	p.pos++ // opening angle
	var digits []byte
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		p.pos++
		if b == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := 0; i < len(out); i++ {
				v, err := strconv.ParseUint(string(digits[i*2:i*2+2]), 16, 8)
				if err != nil {
					return nil, fmt.Errorf("%w: bad hex string", ErrCorruptDocument)
				}
				out[i] = byte(v)
			}
			return HexString(out), nil
		}
		if isSpace(b) {
			continue
		}
		digits = append(digits, b)
	}
	return nil, errUnexpectedEOF
}

func (p *parser) parseArray() (Array, error) {
	p.pos++ // opening bracket
	var out Array
	for {
		p.skipSpace()
		b, ok := p.peek()
		if !ok {
			return nil, errUnexpectedEOF
		}
		if b == ']' {
			p.pos++
			return out, nil
		}
		item, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
}

func (p *parser) parseDict() (Object, error) {
	p.pos += 2 // "<<"
	dict := NewDict()
	for {
		p.skipSpace()
		if p.pos+1 < len(p.data) && p.data[p.pos] == '>' && p.data[p.pos+1] == '>' {
			p.pos += 2
			break
		}
		b, ok := p.peek()
		if !ok {
			return nil, errUnexpectedEOF
		}
		if b != '/' {
			return nil, fmt.Errorf("%w: dictionary key must be a name", ErrCorruptDocument)
		}
		key, err := p.parseName()
		if err != nil {
			return nil, err
		}
		val, err := p.parseObject()
		if err != nil {
			return nil, err
		}
		dict.Set(string(key), val)
	}

	// A stream keyword directly after a dictionary makes this a stream.
	save := p.pos
	p.skipSpace()
	if bytes.HasPrefix(p.data[p.pos:], []byte("stream")) {
		p.pos += len("stream")
		if p.pos < len(p.data) && p.data[p.pos] == '\r' {
			p.pos++
		}
		if p.pos < len(p.data) && p.data[p.pos] == '\n' {
			p.pos++
		}
		length, ok := dict.Int("Length")
		if !ok || p.pos+int(length) > len(p.data) {
			// Length may be an indirect reference, which a one-pass
			// parser cannot resolve. Scan for the endstream keyword
			// and trim the end-of-line marker that precedes it.
			end := bytes.Index(p.data[p.pos:], []byte("endstream"))
			if end < 0 {
				return nil, fmt.Errorf("%w: bad stream length", ErrCorruptDocument)
			}
			length = int64(end)
			if length > 0 && p.data[p.pos+int(length)-1] == '\n' {
				length--
			}
			if length > 0 && p.data[p.pos+int(length)-1] == '\r' {
				length--
			}
		}
		data := p.data[p.pos : p.pos+int(length)]
		p.pos += int(length)
		p.skipSpace()
		if bytes.HasPrefix(p.data[p.pos:], []byte("endstream")) {
			p.pos += len("endstream")
		}
		return NewStream(dict, data), nil
	}
	p.pos = save
	return dict, nil
}

// parseNumberOrRef parses a number, upgrading "N G R" to a reference.
func (p *parser) parseNumberOrRef() (Object, error) {
	save := p.pos
	tok := p.token()
	if tok == "" {
		return nil, errUnexpectedEOF
	}

	if i, err := strconv.ParseInt(tok, 10, 64); err == nil && i >= 0 {
		// Look ahead for "G R".
		after := p.pos
		genTok := p.token()
		if gen, err := strconv.ParseInt(genTok, 10, 64); err == nil && gen >= 0 {
			if p.token() == "R" {
				return Ref{Num: int(i), Gen: int(gen)}, nil
			}
		}
		p.pos = after
		return Integer(i), nil
	}

	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return Real(f), nil
	}
	p.pos = save
	return nil, fmt.Errorf("%w: bad number %q", ErrCorruptDocument, tok)
}

// parseIndirectObject parses "N G obj ... endobj" at the current position.
func (p *parser) parseIndirectObject() (num, gen int, obj Object, err error) {
	numTok := p.token()
	genTok := p.token()
	kw := p.token()
	if kw != "obj" {
		return 0, 0, nil, fmt.Errorf("%w: expected obj keyword, got %q", ErrCorruptDocument, kw)
	}
	num, err = strconv.Atoi(numTok)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: bad object number %q", ErrCorruptDocument, numTok)
	}
	gen, err = strconv.Atoi(genTok)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: bad generation %q", ErrCorruptDocument, genTok)
	}
	obj, err = p.parseObject()
	if err != nil {
		return 0, 0, nil, err
	}
	return num, gen, obj, nil
}

// flateDecode inflates zlib-compressed stream data.
func flateDecode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return out, nil
}

// applyPNGPredictor reverses PNG row prediction on decoded stream data, as
// used by cross-reference streams.
func applyPNGPredictor(data []byte, columns int) ([]byte, error) {
	rowLen := columns + 1
	if columns <= 0 || len(data)%rowLen != 0 {
		return nil, fmt.Errorf("%w: bad predictor row length", ErrCorruptDocument)
	}
	rows := len(data) / rowLen
	out := make([]byte, 0, rows*columns)
	prev := make([]byte, columns)
	for r := 0; r < rows; r++ {
		row := data[r*rowLen : (r+1)*rowLen]
		filter := row[0]
		cur := make([]byte, columns)
		copy(cur, row[1:])
		switch filter {
		case 0:
			// none
		case 1:
			for i := 1; i < columns; i++ {
				cur[i] += cur[i-1]
			}
		case 2:
			for i := 0; i < columns; i++ {
				cur[i] += prev[i]
			}
		default:
			return nil, fmt.Errorf("%w: unsupported predictor filter %d", ErrCorruptDocument, filter)
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

// decodedStreamData returns the stream payload with its Filter undone.
// Only FlateDecode (with optional PNG predictor) and unfiltered streams are
// handled; that covers cross-reference and object streams in practice.
func decodedStreamData(s *Stream) ([]byte, error) {
	switch s.Dict.Name("Filter") {
	case "":
		return s.Data, nil
	case "FlateDecode":
		data, err := flateDecode(s.Data)
		if err != nil {
			return nil, err
		}
		parms := s.Dict.Dict("DecodeParms")
		if parms == nil {
			return data, nil
		}
		predictor, _ := parms.Int("Predictor")
		if predictor < 2 {
			return data, nil
		}
		columns, ok := parms.Int("Columns")
		if !ok {
			columns = 1
		}
		return applyPNGPredictor(data, int(columns))
	default:
		return nil, fmt.Errorf("%w: unsupported stream filter %s", ErrCorruptDocument, s.Dict.Name("Filter"))
	}
}
