// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"errors"
	"fmt"
)

// ErrUnexpectedResult is returned when the engine answers with a value of
// the wrong shape for the operation.
var ErrUnexpectedResult = errors.New("unexpected result")

func unexpected(want string, got Value) error {
	return fmt.Errorf("%w: want %s, got %T", ErrUnexpectedResult, want, got)
}

func handleResult(v Value, err error) (Handle, error) {
	if err != nil {
		return Handle{}, err
	}
	h, ok := v.(Handle)
	if !ok {
		return Handle{}, unexpected("node", v)
	}
	return h, nil
}

// optionalHandleResult treats a null result as "no such node".
func optionalHandleResult(v Value, err error) (Handle, bool, error) {
	if err != nil {
		return Handle{}, false, err
	}
	if IsNull(v) {
		return Handle{}, false, nil
	}
	h, ok := v.(Handle)
	if !ok {
		return Handle{}, false, unexpected("node", v)
	}
	return h, true, nil
}

func handlesResult(v Value, err error) ([]Handle, error) {
	if err != nil {
		return nil, err
	}
	hs, ok := AsHandles(v)
	if !ok {
		return nil, unexpected("list of nodes", v)
	}
	return hs, nil
}

func handleMapResult(v Value, err error) (map[string]Handle, error) {
	if err != nil {
		return nil, err
	}
	m, ok := AsHandleMap(v)
	if !ok {
		return nil, unexpected("map of nodes", v)
	}
	return m, nil
}

func stringResult(v Value, err error) (string, error) {
	if err != nil {
		return "", err
	}
	s, ok := v.(String)
	if !ok {
		return "", unexpected("string", v)
	}
	return string(s), nil
}

// optionalStringResult treats a null result as absent.
func optionalStringResult(v Value, err error) (string, bool, error) {
	if err != nil {
		return "", false, err
	}
	if IsNull(v) {
		return "", false, nil
	}
	s, ok := v.(String)
	if !ok {
		return "", false, unexpected("string", v)
	}
	return string(s), true, nil
}

func stringsResult(v Value, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	ss, ok := AsStrings(v)
	if !ok {
		return nil, unexpected("list of strings", v)
	}
	return ss, nil
}

func boolResult(v Value, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	b, ok := v.(Bool)
	if !ok {
		return false, unexpected("boolean", v)
	}
	return bool(b), nil
}

func mapResult(v Value, err error) (Map, error) {
	if err != nil {
		return nil, err
	}
	m, ok := v.(Map)
	if !ok {
		return nil, unexpected("map", v)
	}
	return m, nil
}

func noResult(_ Value, err error) error {
	return err
}
