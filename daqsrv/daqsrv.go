// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daqsrv exposes an AFE440x acquisition as a TDAQ process.
//
// The server binds the device lifecycle to the TDAQ state machine
// (/init, /start, /stop, /quit) and publishes acquired cycles on the
// /samples output stream, one frame per cycle.
package daqsrv // import "github.com/go-daq/afe440x/daqsrv"

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-daq/afe440x"
	"github.com/go-daq/tdaq"
)

// Acquirer is the part of an AFE440x device the server drives. Both
// afe4410.Device and afe4420.Device implement it.
type Acquirer interface {
	Start() error
	Stop() error
	Run(ctx context.Context, events <-chan struct{}, sink afe440x.Sink) error
	Close() error
}

// Server adapts an AFE440x device to the TDAQ command protocol.
type Server struct {
	dev    Acquirer
	events <-chan struct{}

	n    uint32
	drop uint32
	data chan []byte
}

// New wraps dev, serviced with the data-ready events stream.
func New(dev Acquirer, events <-chan struct{}) *Server {
	return &Server{
		dev:    dev,
		events: events,
	}
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.data = make(chan []byte, 1024)
	srv.n = 0
	srv.drop = 0
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.data = make(chan []byte, 1024)
	srv.n = 0
	srv.drop = 0
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	err := srv.dev.Start()
	if err != nil {
		ctx.Msg.Errorf("could not start acquisition: %+v", err)
		return fmt.Errorf("daqsrv: could not start acquisition: %w", err)
	}
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... -> cycles=%d dropped=%d", srv.n, srv.drop)
	err := srv.dev.Stop()
	if err != nil {
		ctx.Msg.Errorf("could not stop acquisition: %+v", err)
		return fmt.Errorf("daqsrv: could not stop acquisition: %w", err)
	}
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	err := srv.dev.Close()
	if err != nil {
		ctx.Msg.Errorf("could not close device: %+v", err)
		return fmt.Errorf("daqsrv: could not close device: %w", err)
	}
	return nil
}

// Samples is the /samples output handler.
func (srv *Server) Samples(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// Run is the TDAQ run handler: it services data-ready events for the
// whole life of the process.
func (srv *Server) Run(ctx tdaq.Context) error {
	err := srv.dev.Run(ctx.Ctx, srv.events, afe440x.SinkFunc(srv.push))
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daqsrv: acquisition stopped: %w", err)
	}
	return nil
}

// push frames one cycle and queues it for the /samples stream. Frames
// are dropped, not blocked on, when the consumer falls behind.
func (srv *Server) push(cycle []int32) error {
	buf := make([]byte, 8+4*len(cycle))
	binary.LittleEndian.PutUint32(buf, srv.n)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(cycle)))
	for i, v := range cycle {
		binary.LittleEndian.PutUint32(buf[8+4*i:], uint32(v))
	}
	srv.n++

	select {
	case srv.data <- buf:
	default:
		srv.drop++
	}
	return nil
}

// Frame is one decoded /samples frame.
type Frame struct {
	Cycle   uint32
	Samples []int32
}

// DecodeFrame decodes one /samples frame body.
func DecodeFrame(p []byte) (Frame, error) {
	if len(p) < 8 {
		return Frame{}, fmt.Errorf("daqsrv: frame too short (%d bytes)", len(p))
	}
	frame := Frame{
		Cycle: binary.LittleEndian.Uint32(p),
	}
	n := int(binary.LittleEndian.Uint32(p[4:]))
	if len(p) != 8+4*n {
		return Frame{}, fmt.Errorf("daqsrv: invalid frame length %d for %d samples", len(p), n)
	}
	frame.Samples = make([]int32, n)
	for i := range frame.Samples {
		frame.Samples[i] = int32(binary.LittleEndian.Uint32(p[8+4*i:]))
	}
	return frame, nil
}
