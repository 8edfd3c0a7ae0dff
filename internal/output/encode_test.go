package output

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWriteLine_FlushesBufferedWriters(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	if err := writeLine(bw, Event{Type: EventFileSaved, File: "a.xml", Bytes: 3}); err != nil {
		t.Fatalf("writeLine error: %v", err)
	}
	want := `{"type":"file.saved","file":"a.xml","bytes":3}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteArray_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeArray(&buf, nil); err != nil {
		t.Fatalf("writeArray error: %v", err)
	}
	if buf.String() != "[]\n" {
		t.Fatalf("got %q, want %q", buf.String(), "[]\n")
	}
}
