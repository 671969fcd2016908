// Copyright 2021 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command afe-daq drives an AFE440x acquisition in stand-alone mode
// and writes the acquired cycles to a CSV file.
//
// Example:
//
//	$> afe-daq -cfg=./afe4410.yaml -o=./run001.csv -t=30s
package main // import "github.com/go-daq/afe440x/cmd/afe-daq"

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"
)

func main() {
	var (
		cfgPath = flag.String("cfg", "afe.yaml", "path to the device configuration")
		output  = flag.String("o", "out.csv", "path to the output file")
		timeout = flag.Duration("t", 0, "acquisition duration (0 for unlimited)")
	)

	log.SetPrefix("afe-daq: ")
	log.SetFlags(0)

	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("could not load configuration %q: %+v", *cfgPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := run(ctx, cfg, *output)
	if err != nil {
		log.Fatalf("could not run acquisition: %+v", err)
	}
	log.Printf("acquired %d cycles in %v", n, time.Since(start).Round(time.Millisecond))
}
