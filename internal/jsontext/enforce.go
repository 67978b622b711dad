package jsontext

import (
	"strconv"
)

// Enforcement wrapper for TokenSource applying duplicate-key handling,
// max-depth checks and max-bytes truncation while recording the offset of
// every JSON Pointer it passes.

// DuplicateStrictness controls duplicate key handling.
type DuplicateStrictness int

const (
	DupIgnore DuplicateStrictness = iota
	DupWarn
	DupError
)

// EnforceOptions controls runtime enforcement behavior.
type EnforceOptions struct {
	OnDuplicate DuplicateStrictness
	MaxDepth    int
	MaxBytes    int64
	// IssueSink receives non-fatal issues (duplicate keys in DupWarn mode).
	IssueSink func(Issue)
	// Offsets, when non-nil, receives the input offset of each pointer the
	// first time it is seen.
	Offsets map[string]int64
}

// Issue is a lightweight finding produced while walking tokens.
type Issue struct {
	Code    string
	Path    string
	Message string
	Offset  int64
}

const (
	CodeDuplicateKey  = "duplicate_key"
	CodeDepthExceeded = "depth_exceeded"
	CodeTruncated     = "truncated"
)

// IssueError is a fatal Issue returned from NextToken.
type IssueError struct{ Issue }

func (e *IssueError) Error() string { return e.Issue.Message }

type walkFrame struct {
	kind         containerKind
	keys         map[string]struct{}
	expectingKey bool
	path         string
	nextIndex    int
	pendingKey   string
}

// WrapWithEnforcement returns a TokenSource that enforces the options.
func WrapWithEnforcement(inner TokenSource, opt EnforceOptions) *EnforcingSource {
	return &EnforcingSource{inner: inner, opt: opt}
}

// EnforcingSource is the enforcing TokenSource. MaxDepthSeen and Keys are
// valid after the stream has been drained.
type EnforcingSource struct {
	inner TokenSource
	opt   EnforceOptions
	stack []walkFrame
	depth int

	MaxDepthSeen int
	Keys         int
}

func (e *EnforcingSource) NextToken() (Token, error) {
	tok, err := e.inner.NextToken()
	if err != nil {
		return Token{}, err
	}

	path := e.currentPathForToken(tok)
	if e.opt.Offsets != nil && tok.Kind != KindEndObject && tok.Kind != KindEndArray {
		if _, seen := e.opt.Offsets[path]; !seen {
			e.opt.Offsets[path] = tok.Offset
		}
	}

	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		f := walkFrame{kind: kindArray, path: path}
		if tok.Kind == KindBeginObject {
			f = walkFrame{kind: kindObject, keys: make(map[string]struct{}), expectingKey: true, path: path}
		}
		e.stack = append(e.stack, f)
		e.depth++
		e.MaxDepthSeen = max(e.MaxDepthSeen, e.depth)
		if e.opt.MaxDepth > 0 && e.depth > e.opt.MaxDepth {
			return Token{}, &IssueError{Issue{
				Code:    CodeDepthExceeded,
				Path:    normalizeIssuePath(path),
				Message: "maximum nesting depth " + strconv.Itoa(e.opt.MaxDepth) + " exceeded",
				Offset:  tok.Offset,
			}}
		}
	case KindEndObject, KindEndArray:
		if n := len(e.stack); n > 0 {
			e.stack = e.stack[:n-1]
		}
		if e.depth > 0 {
			e.depth--
		}
		e.valueDone()
	case KindKey:
		e.Keys++
		if n := len(e.stack); n > 0 {
			top := &e.stack[n-1]
			if top.kind == kindObject && top.expectingKey {
				if _, ok := top.keys[tok.String]; ok && e.opt.OnDuplicate != DupIgnore {
					iss := Issue{
						Code:    CodeDuplicateKey,
						Path:    normalizeIssuePath(path),
						Message: "key '" + tok.String + "' duplicated",
						Offset:  tok.Offset,
					}
					if e.opt.OnDuplicate == DupError {
						return Token{}, &IssueError{iss}
					}
					if e.opt.IssueSink != nil {
						e.opt.IssueSink(iss)
					}
				}
				top.keys[tok.String] = struct{}{}
				top.expectingKey = false
				top.pendingKey = tok.String
			}
		}
	default:
		e.valueDone()
	}

	if e.opt.MaxBytes > 0 && tok.Offset > e.opt.MaxBytes {
		return Token{}, &IssueError{Issue{
			Code:    CodeTruncated,
			Path:    normalizeIssuePath(path),
			Message: "maximum input size " + strconv.FormatInt(e.opt.MaxBytes, 10) + " bytes exceeded",
			Offset:  tok.Offset,
		}}
	}
	return tok, nil
}

func (e *EnforcingSource) valueDone() {
	if n := len(e.stack); n > 0 {
		top := &e.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
			top.pendingKey = ""
		}
	}
}

func (e *EnforcingSource) currentPathForToken(tok Token) string {
	if len(e.stack) == 0 {
		return ""
	}
	top := &e.stack[len(e.stack)-1]
	switch tok.Kind {
	case KindKey:
		return Join(top.path, tok.String)
	case KindBeginObject, KindBeginArray, KindString, KindNumber, KindBool, KindNull:
		if top.kind == kindArray {
			p := Join(top.path, strconv.Itoa(top.nextIndex))
			top.nextIndex++
			return p
		}
		if top.pendingKey != "" || !top.expectingKey {
			return Join(top.path, top.pendingKey)
		}
		return top.path
	default:
		return top.path
	}
}

func (e *EnforcingSource) Location() int64 { return e.inner.Location() }

func normalizeIssuePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
