// Package pdfdoc loads a PDF document, embeds images into its pages, and
// serializes the result as an incremental update appended to the original
// bytes. It implements only what the signing pipeline needs: page lookup,
// image XObjects, content-stream drawing, and deterministic output.
package pdfdoc

import (
	"fmt"
	"io"
	"strconv"
)

// Object is a PDF object that can serialize itself in PDF syntax.
type Object interface {
	write(w io.Writer) error
}

// Null is the PDF null value.
type Null struct{}

func (Null) write(w io.Writer) error {
	_, err := io.WriteString(w, "null")
	return err
}

// Boolean is a PDF boolean.
type Boolean bool

func (b Boolean) write(w io.Writer) error {
	if b {
		_, err := io.WriteString(w, "true")
		return err
	}
	_, err := io.WriteString(w, "false")
	return err
}

// Integer is a PDF integer.
type Integer int64

func (i Integer) write(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatInt(int64(i), 10))
	return err
}

// Real is a PDF real number. Serialization uses the shortest exact decimal
// form so identical inputs always produce identical bytes.
type Real float64

func (r Real) write(w io.Writer) error {
	_, err := io.WriteString(w, strconv.FormatFloat(float64(r), 'f', -1, 64))
	return err
}

// Name is a PDF name object such as /Type.
type Name string

func (n Name) write(w io.Writer) error {
	if _, err := io.WriteString(w, "/"); err != nil {
		return err
	}
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c <= ' ' || c > '~' || c == '#' || c == '/' || c == '%' ||
			c == '(' || c == ')' || c == '<' || c == '>' || c == '[' || c == ']' || c == '{' || c == '}' {
			if _, err := fmt.Fprintf(w, "#%02X", c); err != nil {
				return err
			}
			continue
		}
		if _, err := w.Write([]byte{c}); err != nil {
			return err
		}
	}
	return nil
}

// String is a PDF string object, written in literal form.
type String []byte

func (s String) write(w io.Writer) error {
	buf := make([]byte, 0, len(s)+2)
	buf = append(buf, '(')
	for _, b := range s {
		switch b {
		case '\\', '(', ')':
			buf = append(buf, '\\', b)
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		default:
			if b < 32 || b > 126 {
				buf = append(buf, fmt.Sprintf("\\%03o", b)...)
			} else {
				buf = append(buf, b)
			}
		}
	}
	buf = append(buf, ')')
	_, err := w.Write(buf)
	return err
}

// HexString is a PDF string written in hexadecimal form.
type HexString []byte

func (s HexString) write(w io.Writer) error {
	if _, err := io.WriteString(w, "<"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%X", []byte(s)); err != nil {
		return err
	}
	_, err := io.WriteString(w, ">")
	return err
}

// Ref is an indirect reference to a numbered object.
type Ref struct {
	Num int
	Gen int
}

func (r Ref) write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d %d R", r.Num, r.Gen)
	return err
}

// Array is a PDF array.
type Array []Object

func (a Array) write(w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i, item := range a {
		if i > 0 {
			if _, err := io.WriteString(w, " "); err != nil {
				return err
			}
		}
		if err := item.write(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

// Dict is a PDF dictionary. Insertion order is preserved so serialization
// is stable across runs.
type Dict struct {
	entries map[string]Object
	order   []string
}

// NewDict creates an empty dictionary.
func NewDict() *Dict {
	return &Dict{entries: make(map[string]Object)}
}

// Set stores a key-value pair, keeping first-insertion order.
func (d *Dict) Set(key string, value Object) {
	if _, ok := d.entries[key]; !ok {
		d.order = append(d.order, key)
	}
	d.entries[key] = value
}

// Get returns the value for key, or nil.
func (d *Dict) Get(key string) Object {
	if d == nil {
		return nil
	}
	return d.entries[key]
}

// Has reports whether key is present.
func (d *Dict) Has(key string) bool {
	if d == nil {
		return false
	}
	_, ok := d.entries[key]
	return ok
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	return d.order
}

// Name returns the value for key as a name, or "".
func (d *Dict) Name(key string) string {
	if n, ok := d.Get(key).(Name); ok {
		return string(n)
	}
	return ""
}

// Int returns the value for key as an integer.
func (d *Dict) Int(key string) (int64, bool) {
	switch v := d.Get(key).(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}

// Array returns the value for key as an array, or nil.
func (d *Dict) Array(key string) Array {
	if a, ok := d.Get(key).(Array); ok {
		return a
	}
	return nil
}

// Dict returns the value for key as a dictionary, or nil.
func (d *Dict) Dict(key string) *Dict {
	if sub, ok := d.Get(key).(*Dict); ok {
		return sub
	}
	return nil
}

// Clone makes a shallow-value deep-structure copy of the dictionary.
func (d *Dict) Clone() *Dict {
	out := NewDict()
	for _, key := range d.order {
		val := d.entries[key]
		if sub, ok := val.(*Dict); ok {
			val = sub.Clone()
		}
		out.Set(key, val)
	}
	return out
}

func (d *Dict) write(w io.Writer) error {
	if _, err := io.WriteString(w, "<<"); err != nil {
		return err
	}
	for _, key := range d.order {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		if err := Name(key).write(w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, " "); err != nil {
			return err
		}
		if err := d.entries[key].write(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n>>")
	return err
}

// Stream is a PDF stream object: a dictionary plus raw (already encoded)
// stream data.
type Stream struct {
	Dict *Dict
	Data []byte
}

// NewStream creates a stream around the given data.
func NewStream(dict *Dict, data []byte) *Stream {
	if dict == nil {
		dict = NewDict()
	}
	return &Stream{Dict: dict, Data: data}
}

func (s *Stream) write(w io.Writer) error {
	s.Dict.Set("Length", Integer(len(s.Data)))
	if err := s.Dict.write(w); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\nstream\n"); err != nil {
		return err
	}
	if _, err := w.Write(s.Data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\nendstream")
	return err
}

// numeric converts an Integer or Real to float64.
func numeric(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}
