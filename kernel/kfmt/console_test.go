package kfmt

import (
	"bytes"
	"io"
	"testing"
)

func TestConsoleBuffersUntilSinkIsSet(t *testing.T) {
	defer func() {
		outputSink = nil
		_, _ = io.Copy(io.Discard, &earlyPrintBuffer)
	}()

	_, _ = io.Copy(io.Discard, &earlyPrintBuffer)
	outputSink = nil

	if _, err := Console.Write([]byte("early output\n")); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if exp, got := "early output\n", buf.String(); got != exp {
		t.Fatalf("expected SetOutputSink to flush %q; got %q", exp, got)
	}

	if _, err := Console.Write([]byte("late output\n")); err != nil {
		t.Fatal(err)
	}

	if exp, got := "early output\nlate output\n", buf.String(); got != exp {
		t.Fatalf("expected console output %q; got %q", exp, got)
	}
}

func TestPutcWriter(t *testing.T) {
	var got []byte
	w := PutcWriter{Putc: func(ch byte) { got = append(got, ch) }}

	n, err := w.Write([]byte("Hello, World!\n"))
	if err != nil {
		t.Fatal(err)
	}

	if n != 14 {
		t.Fatalf("expected to write 14 bytes; wrote %d", n)
	}

	if exp := "Hello, World!\n"; string(got) != exp {
		t.Fatalf("expected putc to receive %q; got %q", exp, got)
	}
}
