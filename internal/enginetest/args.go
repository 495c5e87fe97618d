// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package enginetest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/luxfi/gmebridge"
)

// engineError is a failure reported back in the envelope under typ.
type engineError struct {
	typ string
	msg string
}

func (e *engineError) Error() string { return e.typ + ": " + e.msg }

func illegalArgument(format string, a ...any) *engineError {
	return &engineError{typ: gmebridge.TypeIllegalArgument, msg: fmt.Sprintf(format, a...)}
}

func illegalOperation(format string, a ...any) *engineError {
	return &engineError{typ: gmebridge.TypeIllegalOperation, msg: fmt.Sprintf(format, a...)}
}

func internal(format string, a ...any) *engineError {
	return &engineError{typ: gmebridge.TypeInternal, msg: fmt.Sprintf(format, a...)}
}

func generic(format string, a ...any) *engineError {
	return &engineError{typ: gmebridge.TypeGeneric, msg: fmt.Sprintf(format, a...)}
}

// args reads positional arguments, failing the way the engine's parameter
// checks do.
type args []gmebridge.Value

func (a args) value(i int) gmebridge.Value {
	if i >= len(a) || a[i] == nil {
		return gmebridge.Null{}
	}
	return a[i]
}

func (a args) str(i int, name string) (string, *engineError) {
	s, ok := a.value(i).(gmebridge.String)
	if !ok {
		return "", illegalArgument("Parameter '%s' is not of type string.", name)
	}
	return string(s), nil
}

// optStr accepts a string or null.
func (a args) optStr(i int, name string) (string, bool, *engineError) {
	v := a.value(i)
	if gmebridge.IsNull(v) {
		return "", false, nil
	}
	s, ok := v.(gmebridge.String)
	if !ok {
		return "", false, illegalArgument("Parameter '%s' is not of type string or null.", name)
	}
	return string(s), true, nil
}

func (a args) handle(i int, name string) (gmebridge.Handle, *engineError) {
	h, ok := a.value(i).(gmebridge.Handle)
	if !ok {
		return gmebridge.Handle{}, illegalArgument("Parameter '%s' is not a node.", name)
	}
	return h, nil
}

func (a args) integer(i int, name string) (int, *engineError) {
	switch v := a.value(i).(type) {
	case gmebridge.Int:
		return int(v), nil
	case gmebridge.Float:
		return int(v), nil
	}
	return 0, illegalArgument("Parameter '%s' is not of type number.", name)
}

func (a args) strs(i int, name string) ([]string, *engineError) {
	ss, ok := gmebridge.AsStrings(a.value(i))
	if !ok {
		return nil, illegalArgument("Parameter '%s' is not an array of strings.", name)
	}
	return ss, nil
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
