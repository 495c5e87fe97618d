// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gmebridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_Result(t *testing.T) {
	ch := newScripted(`{"res":"#H","err":null}`)
	d := NewDispatcher(ch)

	res, err := d.Dispatch(context.Background(), Repository, "getBranchHash", String("master"))
	require.NoError(t, err)
	assert.Equal(t, String("#H"), res)
	assert.Equal(t, []string{`{"type":"project","name":"getBranchHash","args":["master"]}`}, ch.requests())
	assert.EqualValues(t, 1, d.RoundTrips())
}

func TestDispatch_NoResult(t *testing.T) {
	d := NewDispatcher(newScripted(`{"err":null}`, `{"res":null,"err":null}`))
	ctx := context.Background()

	res, err := d.Dispatch(ctx, Graph, "getAttribute", Handle{RootID: "#r"}, String("does_not_exist"))
	require.NoError(t, err)
	assert.Equal(t, Null{}, res)

	res, err = d.Dispatch(ctx, Utility, "unloadRoot", Handle{RootID: "#r"})
	require.NoError(t, err)
	assert.Equal(t, Null{}, res)
}

func TestDispatch_InOrder(t *testing.T) {
	ch := newScripted(`{"res":1,"err":null}`, `{"res":2,"err":null}`, `{"res":3,"err":null}`)
	d := NewDispatcher(ch)
	for i := 1; i <= 3; i++ {
		res, err := d.Dispatch(context.Background(), Graph, fmt.Sprintf("op%d", i))
		require.NoError(t, err)
		assert.Equal(t, Int(i), res)
	}
	reqs := ch.requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[0], `"op1"`)
	assert.Contains(t, reqs[2], `"op3"`)
}

func TestDispatch_RemoteError(t *testing.T) {
	ch := newScripted(`{"res":null,"err":{"type":"CoreIllegalArgumentError","message":"bad","stack":"s",
		"req":{"type":"project","name":"setBranchHash","args":[1,1,1]}}}`,
		`{"res":"next","err":null}`)
	d := NewDispatcher(ch)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, Repository, "setBranchHash", Int(1), Int(1), Int(1))
	require.ErrorIs(t, err, ErrIllegalArgument)

	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "setBranchHash", rerr.Command.Name)
	assert.Equal(t, Repository, rerr.Command.Tag)
	assert.Equal(t, "bad", rerr.Message)

	// A remote failure leaves the session usable.
	res, err := d.Dispatch(ctx, Repository, "getBranchHash", String("master"))
	require.NoError(t, err)
	assert.Equal(t, String("next"), res)
}

func TestDispatch_EncodeFailureSendsNothing(t *testing.T) {
	ch := newScripted()
	d := NewDispatcher(ch)

	_, err := d.Dispatch(context.Background(), Graph, "setAttribute", Float(math.Inf(1)))
	require.ErrorIs(t, err, ErrUnsupportedValue)
	assert.Empty(t, ch.requests())
	assert.EqualValues(t, 0, d.RoundTrips())
}

func TestDispatch_TransportFailureLatches(t *testing.T) {
	ch := newScripted()
	ch.recvErr = io.ErrUnexpectedEOF
	d := NewDispatcher(ch)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, Graph, "getPath", Handle{RootID: "#r"})
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	var first *TransportError
	require.ErrorAs(t, err, &first)

	ch.recvErr = nil
	ch.replies = [][]byte{[]byte(`{"res":"x","err":null}`)}
	_, err = d.Dispatch(ctx, Graph, "getPath", Handle{RootID: "#r"})
	var second *TransportError
	require.ErrorAs(t, err, &second)
	assert.Same(t, first, second)
	assert.Len(t, ch.requests(), 1, "nothing is sent on a broken channel")
}

func TestDispatch_Malformed(t *testing.T) {
	d := NewDispatcher(newScripted(`garbage`, `{"res":true,"err":null}`))
	ctx := context.Background()

	_, err := d.Dispatch(ctx, Graph, "isMetaNode")
	require.ErrorIs(t, err, ErrMalformedEnvelope)
	assert.NotErrorIs(t, err, ErrRemote)

	res, err := d.Dispatch(ctx, Graph, "isMetaNode")
	require.NoError(t, err)
	assert.Equal(t, Bool(true), res)
}

func TestDispatch_CancelledBeforeSend(t *testing.T) {
	ch := newScripted(`{"res":1,"err":null}`)
	d := NewDispatcher(ch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, Graph, "x")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ch.requests())
}

// overlapDetector fails if a request arrives while another is pending.
type overlapDetector struct {
	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (o *overlapDetector) HandleEnvelope(_ context.Context, req []byte) []byte {
	if o.inFlight.Add(1) > 1 {
		o.overlaps.Add(1)
	}
	defer o.inFlight.Add(-1)
	cmd, err := JSONCodec{}.DecodeCommand(req)
	if err != nil {
		return []byte(`{"res":null,"err":{"type":"Error","message":"parse"}}`)
	}
	out, _ := JSONCodec{}.EncodeResponse(Response{Result: String(cmd.Name)})
	return out
}

func TestDispatch_ConcurrentCallersSerialize(t *testing.T) {
	det := &overlapDetector{}
	d := NewDispatcher(&handlerChannel{h: det})

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("op%d", i)
			res, err := d.Dispatch(context.Background(), Graph, name)
			if err != nil {
				errs <- err
				return
			}
			if res != String(name) {
				errs <- fmt.Errorf("%s got reply %v", name, res)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Zero(t, det.overlaps.Load())
	assert.EqualValues(t, 32, d.RoundTrips())
}

func TestDispatch_Close(t *testing.T) {
	ch := newScripted()
	d := NewDispatcher(ch)
	require.NoError(t, d.Close())
	assert.True(t, ch.closed)

	_, err := d.Dispatch(context.Background(), Graph, "x")
	assert.True(t, errors.Is(err, ErrClosed))
}
