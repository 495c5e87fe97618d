// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedEnvelope is returned when a payload is not a valid envelope.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Tag routes a command to one of the engine facades.
type Tag uint8

const (
	// Graph routes to the graph query and mutation facade.
	Graph Tag = iota + 1
	// Repository routes to the versioning facade.
	Repository
	// Utility routes to the utility facade.
	Utility
	// PluginRuntime routes to the plugin runtime facade.
	PluginRuntime
)

var tagNames = map[Tag]string{
	Graph:         "core",
	Repository:    "project",
	Utility:       "util",
	PluginRuntime: "plugin",
}

// String returns the wire name of the tag.
func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return "tag(" + strconv.Itoa(int(t)) + ")"
}

// ParseTag accepts both the wire names and the logical facade names.
func ParseTag(s string) (Tag, error) {
	switch strings.ToLower(s) {
	case "core", "graph":
		return Graph, nil
	case "project", "repository":
		return Repository, nil
	case "util", "utility":
		return Utility, nil
	case "plugin", "plugin-runtime", "plugin_runtime":
		return PluginRuntime, nil
	}
	return 0, fmt.Errorf("unknown routing tag %q", s)
}

// Command is one request to the engine. It is built per call and never
// reused.
type Command struct {
	Tag  Tag
	Name string
	Args []Value
}

func (c Command) String() string {
	return c.Tag.String() + "." + c.Name
}

// ErrorDescriptor is the structured failure reported by the engine.
type ErrorDescriptor struct {
	Kind    string
	Message string
	Stack   string
	// Request is the originating request as echoed by the engine. It is
	// not always a command; the engine echoes a plain string when the
	// request could not be parsed.
	Request Value
}

// Response is a decoded reply envelope. Exactly one of Result and Err is
// meaningful; a nil Err with a Null Result means no return value.
type Response struct {
	Result Value
	Err    *ErrorDescriptor
}

// Codec converts commands and responses to and from wire payloads.
type Codec interface {
	EncodeCommand(cmd Command) ([]byte, error)
	DecodeCommand(data []byte) (Command, error)
	EncodeResponse(resp Response) ([]byte, error)
	DecodeResponse(data []byte) (Response, error)
}

// JSONCodec is the JSON envelope codec the engine speaks.
type JSONCodec struct{}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

type wireRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
	Args []any  `json:"args"`
}

type wireError struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Stack   string          `json:"stack"`
	Req     json.RawMessage `json:"req,omitempty"`
}

type wireResponse struct {
	Res json.RawMessage `json:"res,omitempty"`
	Err *wireError      `json:"err"`
}

func (JSONCodec) EncodeCommand(cmd Command) ([]byte, error) {
	if _, ok := tagNames[cmd.Tag]; !ok {
		return nil, fmt.Errorf("encode %s: unknown routing tag", cmd)
	}
	args, err := encodeList(cmd.Args)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd, err)
	}
	return json.Marshal(wireRequest{Type: cmd.Tag.String(), Name: cmd.Name, Args: args})
}

func (JSONCodec) DecodeCommand(data []byte) (Command, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return Command{}, err
	}
	cmd, ok := commandFromValue(v)
	if !ok {
		return Command{}, fmt.Errorf("%w: not a request", ErrMalformedEnvelope)
	}
	return cmd, nil
}

func (JSONCodec) EncodeResponse(resp Response) ([]byte, error) {
	var w wireResponse
	if resp.Err != nil {
		w.Err = &wireError{
			Type:    resp.Err.Kind,
			Message: resp.Err.Message,
			Stack:   resp.Err.Stack,
		}
		if resp.Err.Request != nil {
			req, err := encodeValue(resp.Err.Request)
			if err != nil {
				return nil, err
			}
			if w.Err.Req, err = json.Marshal(req); err != nil {
				return nil, err
			}
		}
		w.Res = json.RawMessage("null")
	} else if !IsNull(resp.Result) {
		res, err := encodeValue(resp.Result)
		if err != nil {
			return nil, err
		}
		if w.Res, err = json.Marshal(res); err != nil {
			return nil, err
		}
	}
	return json.Marshal(w)
}

func (JSONCodec) DecodeResponse(data []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if w.Err != nil {
		desc := &ErrorDescriptor{
			Kind:    w.Err.Type,
			Message: w.Err.Message,
			Stack:   w.Err.Stack,
			Request: Null{},
		}
		if len(w.Err.Req) > 0 {
			req, err := decodeJSON(w.Err.Req)
			if err != nil {
				return Response{}, err
			}
			desc.Request = req
		}
		return Response{Result: Null{}, Err: desc}, nil
	}
	if len(w.Res) == 0 {
		return Response{Result: Null{}}, nil
	}
	res, err := decodeJSON(w.Res)
	if err != nil {
		return Response{}, err
	}
	return Response{Result: res}, nil
}

// commandFromValue interprets an echoed request as a command.
func commandFromValue(v Value) (Command, bool) {
	m, ok := v.(Map)
	if !ok {
		return Command{}, false
	}
	typ, ok := m["type"].(String)
	if !ok {
		return Command{}, false
	}
	tag, err := ParseTag(string(typ))
	if err != nil {
		return Command{}, false
	}
	name, ok := m["name"].(String)
	if !ok {
		return Command{}, false
	}
	cmd := Command{Tag: tag, Name: string(name)}
	switch args := m["args"].(type) {
	case List:
		cmd.Args = args
	case nil, Null:
	default:
		return Command{}, false
	}
	return cmd, true
}

func commandValue(cmd Command) Value {
	args := make(List, len(cmd.Args))
	copy(args, cmd.Args)
	return Map{
		"type": String(cmd.Tag.String()),
		"name": String(cmd.Name),
		"args": args,
	}
}

func encodeList(l []Value) ([]any, error) {
	out := make([]any, len(l))
	for i, e := range l {
		v, err := encodeValue(e)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// encodeValue builds a tree json.Marshal renders exactly.
func encodeValue(v Value) (any, error) {
	switch t := v.(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return bool(t), nil
	case Int:
		return json.Number(strconv.FormatInt(int64(t), 10)), nil
	case Float:
		if _, err := checkFloat(float64(t)); err != nil {
			return nil, err
		}
		return json.Number(formatFloat(float64(t))), nil
	case String:
		return string(t), nil
	case Handle:
		return t, nil
	case *Handle:
		if t == nil {
			return nil, nil
		}
		return *t, nil
	case List:
		return encodeList(t)
	case Map:
		out := make(map[string]any, len(t))
		for k, e := range t {
			ev, err := encodeValue(e)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = ev
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// formatFloat always yields a fraction or an exponent so the number decodes
// as Float again.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func decodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return fromJSON(raw)
}

func fromJSON(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return Int(i), nil
			}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: number %s", ErrMalformedEnvelope, s)
		}
		return Float(f), nil
	case []any:
		l := make(List, len(t))
		for i, e := range t {
			v, err := fromJSON(e)
			if err != nil {
				return nil, err
			}
			l[i] = v
		}
		return l, nil
	case map[string]any:
		if h, ok := handleFromMap(t); ok {
			return h, nil
		}
		m := make(Map, len(t))
		for k, e := range t {
			v, err := fromJSON(e)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
}

// ParseValue decodes a JSON document into a Value, following the same
// rules as envelope payloads.
func ParseValue(data []byte) (Value, error) {
	return decodeJSON(data)
}

// MarshalValue encodes v as JSON the way envelopes carry it.
func MarshalValue(v Value) ([]byte, error) {
	x, err := encodeValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(x)
}
