package jsontext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	j "github.com/goccy/go-json"
)

// Options controls Decode.
type Options struct {
	MaxDepth    int
	MaxBytes    int64
	OnDuplicate DuplicateStrictness
	// Positions records the offset of every pointer so Position can map
	// findings back to line/column.
	Positions bool
}

// Document is a decoded JSON text plus what the enforcing walk observed.
type Document struct {
	Value      any
	Depth      int
	Keys       int
	Duplicates []Issue

	offsets    map[string]int64
	lineStarts []int
}

// SyntaxError is a JSON syntax error with its position.
type SyntaxError struct {
	Msg    string
	Offset int64
	Line   int
	Column int
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid JSON at line %d, column %d: %s", e.Line, e.Column, e.Msg)
	}
	return "invalid JSON: " + e.Msg
}

// LimitError reports a depth, size or strict duplicate-key violation.
type LimitError struct {
	Issue
	Line   int
	Column int
}

func (e *LimitError) Error() string { return e.Message + " at " + e.Path }

// Decode walks data once with enforcement and then decodes it into a tree
// of map[string]any, []any, string, json.Number, bool and nil.
func Decode(data []byte, opt Options) (*Document, error) {
	doc := &Document{lineStarts: lineStarts(data)}
	eo := EnforceOptions{
		OnDuplicate: opt.OnDuplicate,
		MaxDepth:    opt.MaxDepth,
		MaxBytes:    opt.MaxBytes,
		IssueSink:   func(i Issue) { doc.Duplicates = append(doc.Duplicates, i) },
	}
	if opt.Positions {
		doc.offsets = make(map[string]int64)
		eo.Offsets = doc.offsets
	}
	src := WrapWithEnforcement(NewBytes(data), eo)
	for {
		_, err := src.NextToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var ie *IssueError
			if errors.As(err, &ie) {
				line, col := doc.position(ie.Offset)
				return nil, &LimitError{Issue: ie.Issue, Line: line, Column: col}
			}
			return nil, doc.syntaxError(err, src.Location())
		}
	}
	doc.Depth = src.MaxDepthSeen
	doc.Keys = src.Keys

	dec := j.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, doc.syntaxError(err, dec.InputOffset())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, doc.syntaxError(errors.New("unexpected data after top-level value"), dec.InputOffset())
	}
	doc.Value = v
	return doc, nil
}

// Valid reports whether data is a single well-formed JSON value.
func Valid(data []byte) bool { return j.Valid(data) }

// Position maps a JSON Pointer to the line and column where it was first
// seen. ok is false when positions were not recorded or ptr is unknown.
func (d *Document) Position(ptr string) (line, col int, ok bool) {
	if d == nil || d.offsets == nil {
		return 0, 0, false
	}
	off, found := d.offsets[ptr]
	if !found {
		return 0, 0, false
	}
	line, col = d.position(off)
	return line, col, true
}

func (d *Document) syntaxError(err error, offset int64) *SyntaxError {
	var se *j.SyntaxError
	if errors.As(err, &se) {
		offset = se.Offset
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = errors.New("unexpected end of JSON input")
	}
	line, col := d.position(offset)
	return &SyntaxError{Msg: err.Error(), Offset: offset, Line: line, Column: col}
}

func (d *Document) position(offset int64) (line, col int) {
	if offset < 0 || len(d.lineStarts) == 0 {
		return 0, 0
	}
	i := sort.SearchInts(d.lineStarts, int(offset)+1) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, int(offset) - d.lineStarts[i] + 1
}

func lineStarts(data []byte) []int {
	starts := []int{0}
	for i, b := range data {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}
