// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daqsrv

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/go-daq/afe440x"
	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/log"
)

type fakeDevice struct {
	started int
	stopped int
	closed  int
}

func (dev *fakeDevice) Start() error { dev.started++; return nil }
func (dev *fakeDevice) Stop() error  { dev.stopped++; return nil }
func (dev *fakeDevice) Close() error { dev.closed++; return nil }

func (dev *fakeDevice) Run(ctx context.Context, events <-chan struct{}, sink afe440x.Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			// one event, two cycles of 4 samples.
			for i := int32(0); i < 2; i++ {
				cycle := []int32{i, i + 1, i + 2, -i}
				if err := sink.Push(cycle); err != nil {
					return err
				}
			}
		}
	}
}

func testCtx(ctx context.Context) tdaq.Context {
	return tdaq.Context{
		Ctx: ctx,
		Msg: log.NewMsgStream("daqsrv-test", log.LvlError, io.Discard),
	}
}

func TestLifecycle(t *testing.T) {
	dev := new(fakeDevice)
	srv := New(dev, nil)

	ctx := testCtx(context.Background())
	var (
		resp tdaq.Frame
		req  tdaq.Frame
	)

	if err := srv.OnInit(ctx, &resp, req); err != nil {
		t.Fatalf("init: %+v", err)
	}
	if err := srv.OnStart(ctx, &resp, req); err != nil {
		t.Fatalf("start: %+v", err)
	}
	if err := srv.OnStop(ctx, &resp, req); err != nil {
		t.Fatalf("stop: %+v", err)
	}
	if err := srv.OnQuit(ctx, &resp, req); err != nil {
		t.Fatalf("quit: %+v", err)
	}

	if dev.started != 1 || dev.stopped != 1 || dev.closed != 1 {
		t.Fatalf("invalid lifecycle: start=%d stop=%d close=%d",
			dev.started, dev.stopped, dev.closed)
	}
}

func TestSamplesStream(t *testing.T) {
	dev := new(fakeDevice)
	events := make(chan struct{}, 1)
	srv := New(dev, events)

	bkg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx := testCtx(bkg)

	var (
		resp tdaq.Frame
		req  tdaq.Frame
	)
	if err := srv.OnInit(ctx, &resp, req); err != nil {
		t.Fatalf("init: %+v", err)
	}

	events <- struct{}{}
	close(events)

	if err := srv.Run(ctx); err != nil {
		t.Fatalf("run: %+v", err)
	}

	for i := 0; i < 2; i++ {
		var dst tdaq.Frame
		if err := srv.Samples(ctx, &dst); err != nil {
			t.Fatalf("samples %d: %+v", i, err)
		}
		frame, err := DecodeFrame(dst.Body)
		if err != nil {
			t.Fatalf("decode %d: %+v", i, err)
		}
		if got, want := frame.Cycle, uint32(i); got != want {
			t.Fatalf("frame %d: invalid cycle: got=%d, want=%d", i, got, want)
		}
		v := int32(i)
		want := []int32{v, v + 1, v + 2, -v}
		if !reflect.DeepEqual(frame.Samples, want) {
			t.Fatalf("frame %d: got=%v, want=%v", i, frame.Samples, want)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	dev := new(fakeDevice)
	srv := New(dev, make(chan struct{}))

	bkg, cancel := context.WithCancel(context.Background())
	cancel()

	if err := srv.Run(testCtx(bkg)); err != nil {
		t.Fatalf("cancelled run must return nil, got %+v", err)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	if _, err := DecodeFrame([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error for a short frame")
	}
	if _, err := DecodeFrame(make([]byte, 12)); err == nil {
		t.Fatalf("expected an error for a length mismatch")
	}
}

func TestDecodeFrameEmpty(t *testing.T) {
	frame, err := DecodeFrame(make([]byte, 8))
	if err != nil {
		t.Fatalf("decode: %+v", err)
	}
	if len(frame.Samples) != 0 {
		t.Fatalf("got %d samples, want 0", len(frame.Samples))
	}
}
