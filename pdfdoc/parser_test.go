package pdfdoc

import (
	"bytes"
	"errors"
	"testing"
)

func parseOne(t *testing.T, src string) Object {
	t.Helper()
	obj, err := newParser([]byte(src), 0).parseObject()
	if err != nil {
		t.Fatalf("parseObject(%q) failed: %v", src, err)
	}
	return obj
}

func TestParser_Scalars(t *testing.T) {
	tests := []struct {
		src  string
		want Object
	}{
		{"true", Boolean(true)},
		{"false", Boolean(false)},
		{"null", Null{}},
		{"42", Integer(42)},
		{"-7", Integer(-7)},
		{"3.14", Real(3.14)},
		{"-.5", Real(-0.5)},
		{"/Type", Name("Type")},
		{"/Name#20With#20Spaces", Name("Name With Spaces")},
		{"5 0 R", Ref{Num: 5}},
		{"12 3 R", Ref{Num: 12, Gen: 3}},
	}

	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			got := parseOne(t, tc.src)
			switch want := tc.want.(type) {
			case Real:
				if r, ok := got.(Real); !ok || float64(r) != float64(want) {
					t.Errorf("got %#v, want %#v", got, tc.want)
				}
			default:
				if got != tc.want {
					t.Errorf("got %#v, want %#v", got, tc.want)
				}
			}
		})
	}
}

func TestParser_TwoIntegersAreNotARef(t *testing.T) {
	p := newParser([]byte("[1 2 3]"), 0)
	obj, err := p.parseObject()
	if err != nil {
		t.Fatalf("parseObject failed: %v", err)
	}
	arr, ok := obj.(Array)
	if !ok || len(arr) != 3 {
		t.Fatalf("got %#v, want 3-element array", obj)
	}
	for i, want := range []Integer{1, 2, 3} {
		if arr[i] != want {
			t.Errorf("arr[%d] = %#v, want %#v", i, arr[i], want)
		}
	}
}

func TestParser_Strings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"plain", "(hello)", "hello"},
		{"nested parens", "(a(b)c)", "a(b)c"},
		{"escapes", `(line\nnext\(x\))`, "line\nnext(x)"},
		{"octal", `(\101\102)`, "AB"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseOne(t, tc.src).(String)
			if !ok || string(got) != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParser_HexString(t *testing.T) {
	got, ok := parseOne(t, "<48656C6C6F>").(HexString)
	if !ok || string(got) != "Hello" {
		t.Errorf("got %q, want Hello", got)
	}

	// Odd digit count pads with zero; whitespace is ignored.
	got, ok = parseOne(t, "<4 86 56C6C6F2>").(HexString)
	if !ok || !bytes.Equal(got, []byte{0x48, 0x65, 0x6C, 0x6C, 0x6F, 0x20}) {
		t.Errorf("got % X", []byte(got))
	}
}

func TestParser_Dict(t *testing.T) {
	obj := parseOne(t, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] % comment\n /Count 1 >>")
	dict, ok := obj.(*Dict)
	if !ok {
		t.Fatalf("got %#v, want dict", obj)
	}
	if dict.Name("Type") != "Page" {
		t.Errorf("Type = %q", dict.Name("Type"))
	}
	if ref, ok := dict.Get("Parent").(Ref); !ok || ref.Num != 2 {
		t.Errorf("Parent = %#v", dict.Get("Parent"))
	}
	if box := dict.Array("MediaBox"); len(box) != 4 {
		t.Errorf("MediaBox = %#v", box)
	}
	if n, _ := dict.Int("Count"); n != 1 {
		t.Errorf("Count = %d", n)
	}
}

func TestParser_Stream(t *testing.T) {
	src := "<< /Length 4 >>\nstream\nq\nBT\nendstream"
	obj := parseOne(t, src)
	stream, ok := obj.(*Stream)
	if !ok {
		t.Fatalf("got %#v, want stream", obj)
	}
	if string(stream.Data) != "q\nBT" {
		t.Errorf("stream data = %q, want %q", stream.Data, "q\nBT")
	}
}

func TestParser_StreamIndirectLength(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"indirect length", "<< /Length 7 0 R >>\nstream\nq\nBT\nendstream", "q\nBT"},
		{"overlong length", "<< /Length 9999 >>\nstream\nxx\nendstream", "xx"},
		{"crlf before endstream", "<< /Length 7 0 R >>\nstream\nxx\r\nendstream", "xx"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			obj := parseOne(t, tc.src)
			stream, ok := obj.(*Stream)
			if !ok {
				t.Fatalf("got %#v, want stream", obj)
			}
			if string(stream.Data) != tc.want {
				t.Errorf("stream data = %q, want %q", stream.Data, tc.want)
			}
		})
	}
}

func TestParser_StreamTruncated(t *testing.T) {
	if _, err := newParser([]byte("<< /Length 9999 >>\nstream\nxx"), 0).parseObject(); !errors.Is(err, ErrCorruptDocument) {
		t.Errorf("err = %v, want ErrCorruptDocument", err)
	}
}

func TestParser_IndirectObject(t *testing.T) {
	num, gen, obj, err := newParser([]byte("7 0 obj\n<< /A 1 >>\nendobj"), 0).parseIndirectObject()
	if err != nil {
		t.Fatalf("parseIndirectObject failed: %v", err)
	}
	if num != 7 || gen != 0 {
		t.Errorf("num gen = %d %d, want 7 0", num, gen)
	}
	if _, ok := obj.(*Dict); !ok {
		t.Errorf("obj = %#v, want dict", obj)
	}
}

func TestDictWriteRoundTrip(t *testing.T) {
	dict := NewDict()
	dict.Set("Type", Name("XObject"))
	dict.Set("Width", Integer(40))
	dict.Set("Scale", Real(1.5))
	dict.Set("Kids", Array{Ref{Num: 3}, Ref{Num: 4}})

	var buf bytes.Buffer
	if err := dict.write(&buf); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	obj, err := newParser(buf.Bytes(), 0).parseObject()
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	got, ok := obj.(*Dict)
	if !ok {
		t.Fatalf("reparse gave %#v", obj)
	}
	if got.Name("Type") != "XObject" {
		t.Errorf("Type = %q", got.Name("Type"))
	}
	if w, _ := got.Int("Width"); w != 40 {
		t.Errorf("Width = %d", w)
	}
	if kids := got.Array("Kids"); len(kids) != 2 || kids[1] != (Ref{Num: 4}) {
		t.Errorf("Kids = %#v", got.Array("Kids"))
	}
}

func TestDictWrite_StableOrder(t *testing.T) {
	build := func() []byte {
		dict := NewDict()
		dict.Set("B", Integer(2))
		dict.Set("A", Integer(1))
		dict.Set("C", Integer(3))
		var buf bytes.Buffer
		dict.write(&buf)
		return buf.Bytes()
	}
	if !bytes.Equal(build(), build()) {
		t.Error("serialization order varies between runs")
	}
	if !bytes.Contains(build(), []byte("/B 2\n/A 1\n/C 3")) {
		t.Errorf("keys not in insertion order: %q", build())
	}
}

func TestApplyPNGPredictor(t *testing.T) {
	// Two rows, three columns. Row 1 uses filter 1 (left), row 2 filter 2 (up).
	data := []byte{
		1, 10, 5, 5,
		2, 1, 1, 1,
	}
	got, err := applyPNGPredictor(data, 3)
	if err != nil {
		t.Fatalf("applyPNGPredictor failed: %v", err)
	}
	want := []byte{10, 15, 20, 11, 16, 21}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := applyPNGPredictor([]byte{9, 0, 0, 0}, 3); err == nil {
		t.Error("unsupported filter byte accepted")
	}
	if _, err := applyPNGPredictor([]byte{0, 0}, 3); err == nil {
		t.Error("ragged input accepted")
	}
}
