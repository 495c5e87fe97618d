// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"uint8", uint8(7), Int(7)},
		{"float", 1.5, Float(1.5)},
		{"string", "x", String("x")},
		{"strings", []string{"a", "b"}, List{String("a"), String("b")}},
		{"handle", Handle{NodePath: "/1", RootID: "#r"}, Handle{NodePath: "/1", RootID: "#r"}},
		{"handle pointer", &Handle{NodePath: "/1", RootID: "#r"}, Handle{NodePath: "/1", RootID: "#r"}},
		{"nil handle pointer", (*Handle)(nil), Null{}},
		{"nested", map[string]any{"k": []any{1, "two", nil}}, Map{"k": List{Int(1), String("two"), Null{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueOf(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandlePointerStaysInUnion(t *testing.T) {
	h := &Handle{NodePath: "/5", RootID: "#r"}

	assert.True(t, IsNull((*Handle)(nil)))
	assert.False(t, IsNull(h))
	assert.Equal(t, *h, Native(h))
	assert.Nil(t, Native((*Handle)(nil)))

	out, err := MarshalValue(h)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodePath":"/5","rootId":"#r"}`, string(out))

	out, err = MarshalValue(List{(*Handle)(nil)})
	require.NoError(t, err)
	assert.Equal(t, `[null]`, string(out))
}

func TestValueOf_Rejects(t *testing.T) {
	for _, in := range []any{
		struct{}{},
		make(chan int),
		math.NaN(),
		math.Inf(1),
		uint64(math.MaxUint64),
		[]any{1, struct{}{}},
	} {
		_, err := ValueOf(in)
		assert.ErrorIs(t, err, ErrUnsupportedValue, "%T", in)
	}
}

func TestMustValueOf_Panics(t *testing.T) {
	assert.Panics(t, func() { MustValueOf(struct{}{}) })
	assert.Equal(t, String("ok"), MustValueOf("ok"))
}

func TestNative(t *testing.T) {
	h := Handle{NodePath: "/2", RootID: "#r"}
	v := Map{"a": List{Int(1), Float(2.5), Null{}}, "h": h, "b": Bool(false)}
	assert.Equal(t, map[string]any{
		"a": []any{int64(1), 2.5, nil},
		"h": h,
		"b": false,
	}, Native(v))
}

func TestDecode(t *testing.T) {
	type target struct {
		Name   string   `json:"name"`
		Count  int      `json:"count"`
		Tags   []string `json:"tags"`
		Node   Handle   `json:"node"`
		Weight float64  `json:"weight"`
	}
	v := Map{
		"name":   String("motor"),
		"count":  Int(3),
		"tags":   List{String("a")},
		"node":   Handle{NodePath: "/5", RootID: "#r"},
		"weight": Int(2),
		"extra":  Null{},
	}
	var got target
	require.NoError(t, Decode(v, &got))
	assert.Equal(t, target{
		Name:   "motor",
		Count:  3,
		Tags:   []string{"a"},
		Node:   Handle{NodePath: "/5", RootID: "#r"},
		Weight: 2,
	}, got)
}

func TestAccessors(t *testing.T) {
	ss, ok := AsStrings(List{String("a"), String("b")})
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ss)

	_, ok = AsStrings(List{String("a"), Int(1)})
	assert.False(t, ok)

	h := Handle{NodePath: "/1", RootID: "#r"}
	hs, ok := AsHandles(List{h})
	assert.True(t, ok)
	assert.Equal(t, []Handle{h}, hs)

	hm, ok := AsHandleMap(Map{"FCO": h})
	assert.True(t, ok)
	assert.Equal(t, map[string]Handle{"FCO": h}, hm)

	_, ok = AsHandleMap(Map{"FCO": String("/1")})
	assert.False(t, ok)

	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(Null{}))
	assert.False(t, IsNull(String("")))
}

func TestMapKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Map{"c": Null{}, "a": Null{}, "b": Null{}}.Keys())
}
