package frame

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// Match is the outcome of applying one Extractor to a document.
type Match struct {
	// OK is true when the extractor recognised the document.
	OK bool
	// Text is the delta text for a direct match.
	Text string
	// Nested is a decoded inner document. The decoder walks it with the full
	// extractor list.
	Nested any
}

// An Extractor recognises one provider document shape.
type Extractor interface {
	Extract(doc any) (Match, error)
}

// PathExtractor reads a string at a jq path such as ".delta.text".
type PathExtractor struct {
	expr string
	code *gojq.Code
}

// NewPathExtractor compiles a jq path expression.
func NewPathExtractor(expr string) (*PathExtractor, error) {
	code, err := compile(expr)
	if err != nil {
		return nil, err
	}
	return &PathExtractor{expr: expr, code: code}, nil
}

// MustPathExtractor is NewPathExtractor for package-level defaults.
func MustPathExtractor(expr string) *PathExtractor {
	e, err := NewPathExtractor(expr)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *PathExtractor) String() string { return e.expr }

// Extract matches when the path resolves to a string.
func (e *PathExtractor) Extract(doc any) (Match, error) {
	s, ok := firstString(e.code, doc)
	if !ok {
		return Match{}, nil
	}
	return Match{OK: true, Text: s}, nil
}

// PayloadExtractor decodes a base64 JSON document carried in a string field,
// the shape Bedrock uses for {"bytes": "..."} chunk events.
type PayloadExtractor struct {
	paths []*gojq.Code
}

// NewPayloadExtractor builds a PayloadExtractor trying each jq path in order.
func NewPayloadExtractor(exprs ...string) (*PayloadExtractor, error) {
	e := &PayloadExtractor{}
	for _, expr := range exprs {
		code, err := compile(expr)
		if err != nil {
			return nil, err
		}
		e.paths = append(e.paths, code)
	}
	return e, nil
}

// Extract returns the decoded inner document. Undecodable base64 or JSON is
// an error.
func (e *PayloadExtractor) Extract(doc any) (Match, error) {
	for _, code := range e.paths {
		s, ok := firstString(code, doc)
		if !ok {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Match{}, fmt.Errorf("decode payload base64: %w", err)
		}
		var inner any
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Match{}, fmt.Errorf("decode payload json: %w", err)
		}
		return Match{OK: true, Nested: inner}, nil
	}
	return Match{}, nil
}

// Default extractor paths, highest priority first.
const (
	PathContentBlockDelta = ".contentBlockDelta.delta.text"
	PathDeltaText         = ".delta.text"
	PathCompletion        = ".completion"
	PathOutputText        = ".outputText"
)

// DefaultExtractors returns the provider shapes understood out of the box:
// Nova/Converse content block deltas, Anthropic deltas, legacy completions,
// Titan output text, then nested base64 payloads.
func DefaultExtractors() []Extractor {
	payload, err := NewPayloadExtractor(".bytes", ".chunk.bytes")
	if err != nil {
		panic(err)
	}
	return []Extractor{
		MustPathExtractor(PathContentBlockDelta),
		MustPathExtractor(PathDeltaText),
		MustPathExtractor(PathCompletion),
		MustPathExtractor(PathOutputText),
		payload,
	}
}

// stopQuery matches any object carrying an end-of-generation marker.
const stopQuery = `any(.. | objects;
	has("messageStop")
	or .type == "message_stop"
	or ((.completionReason | type) == "string" and .completionReason != "")
	or (has("stop_reason") and .stop_reason != null))`

var stopCode = mustCompile(stopQuery)

func hasStopMarker(doc any) bool {
	v, ok := stopCode.Run(doc).Next()
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func compile(expr string) (*gojq.Code, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse jq %q: %w", expr, err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile jq %q: %w", expr, err)
	}
	return code, nil
}

func mustCompile(expr string) *gojq.Code {
	code, err := compile(expr)
	if err != nil {
		panic(err)
	}
	return code
}

// firstString runs code and returns its first output if it is a string.
// jq errors (indexing a non-object) count as no match.
func firstString(code *gojq.Code, doc any) (string, bool) {
	v, ok := code.Run(doc).Next()
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
