package webvfs

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"unicode/utf8"
)

// ContentEncoding controls how a content type's value is persisted
type ContentEncoding int

const (
	TextEncoding   ContentEncoding = iota // JSON string
	JSONEncoding                          // raw JSON value
	BinaryEncoding                        // base64 JSON string
)

func (e ContentEncoding) String() string {
	switch e {
	case TextEncoding:
		return "text"
	case JSONEncoding:
		return "json"
	case BinaryEncoding:
		return "binary"
	default:
		return fmt.Sprintf("ContentEncoding(%d)", int(e))
	}
}

// Built-in content types
var builtinContentTypes = map[string]ContentEncoding{
	"txt":   TextEncoding,
	"md":    TextEncoding,
	"html":  TextEncoding,
	"css":   TextEncoding,
	"js":    TextEncoding,
	"ts":    TextEncoding,
	"svg":   TextEncoding,
	"csv":   TextEncoding,
	"xml":   TextEncoding,
	"sh":    TextEncoding,
	"lnk":   TextEncoding,
	"json":  JSONEncoding,
	"app":   JSONEncoding,
	"theme": JSONEncoding,
	"png":   BinaryEncoding,
	"jpg":   BinaryEncoding,
	"jpeg":  BinaryEncoding,
	"gif":   BinaryEncoding,
	"webp":  BinaryEncoding,
	"ico":   BinaryEncoding,
	"mp3":   BinaryEncoding,
	"wav":   BinaryEncoding,
	"mp4":   BinaryEncoding,
	"pdf":   BinaryEncoding,
	"zip":   BinaryEncoding,
	"bin":   BinaryEncoding,
}

var (
	contentTypes   = cloneTypes(builtinContentTypes)
	contentTypesMu sync.RWMutex
)

func cloneTypes(m map[string]ContentEncoding) map[string]ContentEncoding {
	out := make(map[string]ContentEncoding, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RegisterContentType adds or replaces a content type tag. Should be called
// during app init before any snapshot is loaded.
func RegisterContentType(contentType string, enc ContentEncoding) {
	contentTypesMu.Lock()
	contentTypes[contentType] = enc
	contentTypesMu.Unlock()
}

// LookupContentType returns the registered encoding for a tag.
// Unknown tags report TextEncoding and ok=false.
func LookupContentType(contentType string) (enc ContentEncoding, ok bool) {
	contentTypesMu.RLock()
	enc, ok = contentTypes[contentType]
	contentTypesMu.RUnlock()
	return
}

// Content is the opaque value of a File. Exactly one of the three variants is
// populated; use the accessors to decode it safely instead of type assertions.
type Content struct {
	enc  ContentEncoding
	text string
	raw  json.RawMessage
	bin  []byte
}

// Text returns string content
func Text(s string) Content {
	return Content{enc: TextEncoding, text: s}
}

// JSON returns structured content from an already encoded JSON value.
// Invalid JSON is rejected.
func JSON(raw []byte) (Content, error) {
	if !json.Valid(raw) {
		return Content{}, fmt.Errorf("invalid JSON content")
	}
	return Content{enc: JSONEncoding, raw: bytes.Clone(raw)}, nil
}

// JSONValue marshals v into structured content
func JSONValue(v any) (Content, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Content{}, err
	}
	return Content{enc: JSONEncoding, raw: raw}, nil
}

// Binary returns byte content
func Binary(b []byte) Content {
	return Content{enc: BinaryEncoding, bin: bytes.Clone(b)}
}

// ContentFromBytes builds the variant registered for contentType from raw
// bytes, the inverse of [Content.Bytes]. JSON types must hold valid JSON and
// text types valid UTF-8.
func ContentFromBytes(contentType string, b []byte) (Content, error) {
	return NormalizeContent(contentType, Binary(b))
}

// NormalizeContent converts c to the variant the snapshot codec decodes for
// contentType, so a file reloads with exactly the content it was written with.
//
//   - binary types hold Binary; any other variant is converted by its bytes
//   - json types hold JSON; Text and Binary must be valid JSON
//   - text and unregistered types hold Text (valid UTF-8) or a non-string JSON
//     value; a JSON string becomes its Text value and Binary must be UTF-8
//
// Content that cannot be represented is [ErrInvalidContent]. The result never
// shares memory with c.
func NormalizeContent(contentType string, c Content) (Content, error) {
	enc, _ := LookupContentType(contentType)
	switch enc {
	case BinaryEncoding:
		return Binary(c.Bytes()), nil
	case JSONEncoding:
		if c.enc != JSONEncoding && len(c.Bytes()) == 0 {
			return Content{}, fmt.Errorf("%w: %s content must be valid JSON", ErrInvalidContent, contentType)
		}
		raw, err := wireJSON(c.Bytes())
		if err != nil {
			return Content{}, fmt.Errorf("%w: %s content must be valid JSON", ErrInvalidContent, contentType)
		}
		return Content{enc: JSONEncoding, raw: raw}, nil
	default:
		if c.enc == JSONEncoding {
			raw, err := wireJSON(c.raw)
			if err != nil {
				return Content{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
			}
			if raw[0] != '"' {
				return Content{enc: JSONEncoding, raw: raw}, nil
			}
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return Content{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
			}
			return Text(s), nil
		}
		b := c.Bytes()
		if !utf8.Valid(b) {
			return Content{}, fmt.Errorf("%w: %s content must be valid UTF-8", ErrInvalidContent, contentType)
		}
		return Text(string(b)), nil
	}
}

// wireJSON returns raw in the compact, HTML escaped form the encoder writes.
// An empty value is null.
func wireJSON(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(json.RawMessage(raw))
}

// Encoding reports which variant is populated
func (c Content) Encoding() ContentEncoding {
	return c.enc
}

// AsText returns the string variant
func (c Content) AsText() (string, bool) {
	return c.text, c.enc == TextEncoding
}

// AsJSON returns the raw JSON variant. The returned slice must not be modified.
func (c Content) AsJSON() (json.RawMessage, bool) {
	return c.raw, c.enc == JSONEncoding
}

// DecodeJSON unmarshals the JSON variant into v
func (c Content) DecodeJSON(v any) error {
	if c.enc != JSONEncoding {
		return fmt.Errorf("content is %s, not json", c.enc)
	}
	return json.Unmarshal(c.raw, v)
}

// AsBinary returns the byte variant. The returned slice must not be modified.
func (c Content) AsBinary() ([]byte, bool) {
	return c.bin, c.enc == BinaryEncoding
}

// Bytes returns the content as raw bytes regardless of variant
func (c Content) Bytes() []byte {
	switch c.enc {
	case JSONEncoding:
		return []byte(c.raw)
	case BinaryEncoding:
		return c.bin
	default:
		return []byte(c.text)
	}
}

// Equal reports whether both contents hold the same variant and value
func (c Content) Equal(o Content) bool {
	if c.enc != o.enc {
		return false
	}
	switch c.enc {
	case JSONEncoding:
		return bytes.Equal(c.raw, o.raw)
	case BinaryEncoding:
		return bytes.Equal(c.bin, o.bin)
	default:
		return c.text == o.text
	}
}

// Clone returns a copy that shares no backing memory with c
func (c Content) Clone() Content {
	return Content{
		enc:  c.enc,
		text: c.text,
		raw:  bytes.Clone(c.raw),
		bin:  bytes.Clone(c.bin),
	}
}

func (c Content) encode() (json.RawMessage, error) {
	switch c.enc {
	case JSONEncoding:
		if len(c.raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return c.raw, nil
	case BinaryEncoding:
		return json.Marshal(base64.StdEncoding.EncodeToString(c.bin))
	default:
		return json.Marshal(c.text)
	}
}

// decodeContent picks the variant from the registered encoding of contentType.
// Unregistered types keep strings as text and anything else as JSON. A binary
// type whose string is not base64 decodes as text.
func decodeContent(contentType string, raw json.RawMessage) (Content, error) {
	if len(raw) == 0 {
		return Text(""), nil
	}
	enc, _ := LookupContentType(contentType)
	isString := raw[0] == '"'

	switch {
	case enc == BinaryEncoding && isString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Content{}, err
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			// not written by this codec; keep the string rather than fail the tree
			return Text(s), nil
		}
		return Content{enc: BinaryEncoding, bin: b}, nil
	case enc == JSONEncoding || !isString:
		return Content{enc: JSONEncoding, raw: bytes.Clone(raw)}, nil
	default:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Content{}, err
		}
		return Text(s), nil
	}
}
