// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command afe-sh provides an interactive register shell for AFE440x
// devices, useful to poke at a board during bring-up.
//
// Example:
//
//	$> afe-sh -dev=i2c -i2c-bus=1
//	afe-sh> rd 0x1d
//	reg[0x1d] = 0x00013ff
//	afe-sh> wr 0x22 0x100041
//	afe-sh> dump 0x00 0x05
//	...
package main // import "github.com/go-daq/afe440x/cmd/afe-sh"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-daq/afe440x/bus"
	"github.com/go-daq/afe440x/internal/sim"
	"github.com/go-daq/afe440x/regmap"
	"github.com/go-daq/smbus"
	"github.com/peterh/liner"
)

func main() {
	var (
		devName = flag.String("dev", "sim", "connection to open (i2c, spi or sim)")
		i2cBus  = flag.Int("i2c-bus", 1, "I2C bus number")
		i2cAddr = flag.Uint("i2c-addr", uint(bus.DefaultI2CAddr), "I2C device address")
		spiDev  = flag.String("spi", "/dev/spidev0.0", "SPI device")
		spiHz   = flag.Uint("spi-hz", 1000000, "SPI clock speed")
	)

	log.SetPrefix("afe-sh: ")
	log.SetFlags(0)

	flag.Parse()

	conn, err := newConn(*devName, *i2cBus, uint8(*i2cAddr), *spiDev, uint32(*spiHz))
	if err != nil {
		log.Fatalf("could not open connection: %+v", err)
	}

	sh := newShell(conn, os.Stdout)
	defer sh.close()

	sh.loop()
}

func newConn(name string, i2cBus int, i2cAddr uint8, spiDev string, spiHz uint32) (regmap.Conn, error) {
	switch name {
	case "i2c":
		conn, err := smbus.Open(i2cBus, i2cAddr)
		if err != nil {
			return nil, fmt.Errorf("could not open I2C bus %d: %w", i2cBus, err)
		}
		return bus.NewI2C(conn, i2cAddr)
	case "spi":
		return bus.OpenSPI(spiDev, spiHz)
	case "sim":
		return sim.New(sim.LittleEndianWord), nil
	}
	return nil, fmt.Errorf("unknown connection %q", name)
}

type shell struct {
	conn regmap.Conn
	term *liner.State
	w    io.Writer
	hist string
}

var cmdNames = []string{"rd", "wr", "dump", "help", "quit"}

func newShell(conn regmap.Conn, w io.Writer) *shell {
	sh := &shell{
		conn: conn,
		term: liner.NewLiner(),
		w:    w,
	}
	sh.term.SetCtrlCAborts(true)
	sh.term.SetCompleter(func(line string) []string {
		var o []string
		for _, cmd := range cmdNames {
			if strings.HasPrefix(cmd, strings.ToLower(line)) {
				o = append(o, cmd)
			}
		}
		return o
	})

	if home, err := os.UserHomeDir(); err == nil {
		sh.hist = filepath.Join(home, ".afe-sh.history")
		if f, err := os.Open(sh.hist); err == nil {
			_, _ = sh.term.ReadHistory(f)
			f.Close()
		}
	}
	return sh
}

func (sh *shell) close() {
	if sh.hist != "" {
		f, err := os.Create(sh.hist)
		if err == nil {
			_, _ = sh.term.WriteHistory(f)
			f.Close()
		}
	}
	sh.term.Close()
}

func (sh *shell) loop() {
	for {
		line, err := sh.term.Prompt("afe-sh> ")
		switch {
		case err == io.EOF:
			fmt.Fprintf(sh.w, "\n")
			return
		case err == liner.ErrPromptAborted:
			continue
		case err != nil:
			log.Printf("could not read line: %+v", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sh.term.AppendHistory(line)

		toks := strings.Fields(line)
		switch toks[0] {
		case "quit", "exit":
			return
		case "help":
			sh.help()
		case "rd":
			sh.rd(toks[1:])
		case "wr":
			sh.wr(toks[1:])
		case "dump":
			sh.dump(toks[1:])
		default:
			fmt.Fprintf(sh.w, "unknown command %q (try \"help\")\n", toks[0])
		}
	}
}

func (sh *shell) help() {
	fmt.Fprintf(sh.w, `commands:
  rd   <addr>        read a register
  wr   <addr> <val>  write a register
  dump <from> <to>   read a register range
  help               display this help
  quit               quit afe-sh
`)
}

func (sh *shell) rd(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(sh.w, "usage: rd <addr>\n")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(sh.w, "invalid address %q: %+v\n", args[0], err)
		return
	}
	v, err := sh.conn.ReadRegister(addr)
	if err != nil {
		fmt.Fprintf(sh.w, "could not read register 0x%02x: %+v\n", addr, err)
		return
	}
	fmt.Fprintf(sh.w, "reg[0x%02x] = 0x%06x\n", addr, v)
}

func (sh *shell) wr(args []string) {
	if len(args) != 2 {
		fmt.Fprintf(sh.w, "usage: wr <addr> <val>\n")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(sh.w, "invalid address %q: %+v\n", args[0], err)
		return
	}
	v, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		fmt.Fprintf(sh.w, "invalid value %q: %+v\n", args[1], err)
		return
	}
	if v > 0xffffff {
		fmt.Fprintf(sh.w, "value 0x%x does not fit in 24 bits\n", v)
		return
	}
	if err := sh.conn.WriteRegister(addr, uint32(v)); err != nil {
		fmt.Fprintf(sh.w, "could not write register 0x%02x: %+v\n", addr, err)
	}
}

func (sh *shell) dump(args []string) {
	if len(args) != 2 {
		fmt.Fprintf(sh.w, "usage: dump <from> <to>\n")
		return
	}
	from, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(sh.w, "invalid address %q: %+v\n", args[0], err)
		return
	}
	to, err := parseAddr(args[1])
	if err != nil {
		fmt.Fprintf(sh.w, "invalid address %q: %+v\n", args[1], err)
		return
	}
	if to < from {
		from, to = to, from
	}
	for addr := int(from); addr <= int(to); addr++ {
		v, err := sh.conn.ReadRegister(uint8(addr))
		if err != nil {
			fmt.Fprintf(sh.w, "could not read register 0x%02x: %+v\n", addr, err)
			return
		}
		fmt.Fprintf(sh.w, "reg[0x%02x] = 0x%06x\n", addr, v)
	}
}

func parseAddr(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}
