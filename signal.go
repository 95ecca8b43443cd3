// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// forceExitSignals is the number of interrupt signals after which the process
// exits without waiting for the shutdown to complete.
const forceExitSignals = 3

// shutdownRequestChannel is used to initiate shutdown from one of the
// subsystems using the same code paths as when an interrupt signal is received.
var shutdownRequestChannel = make(chan struct{}, 1)

// interruptSignals defines the signals to catch in order to do a proper
// shutdown.
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// requestShutdown asks the shutdown listener to begin shutting down.  It does
// not block when a shutdown is already in progress.
func requestShutdown() {
	select {
	case shutdownRequestChannel <- struct{}{}:
	default:
	}
}

// shutdownListener listens for OS Signals such as SIGINT (Ctrl+C) and shutdown
// requests from shutdownRequestChannel.  It returns a context that is canceled
// when either signal is received.
func shutdownListener() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, interruptSignals...)
	go func() {
		select {
		case sig := <-interruptChannel:
			powcLog.Infof("Received signal (%s).  Shutting down...", sig)

		case <-shutdownRequestChannel:
			powcLog.Info("Shutdown requested.  Shutting down...")
		}
		cancel()

		// Keep reporting repeated signals so the user knows the shutdown is
		// in progress and exit outright once they insist.
		numSignals := 1
		for {
			select {
			case sig := <-interruptChannel:
				numSignals++
				if numSignals >= forceExitSignals {
					powcLog.Warnf("Received signal (%s) %d times.  "+
						"Forcing exit", sig, numSignals)
					if logRotator != nil {
						logRotator.Close()
					}
					os.Exit(1)
				}
				powcLog.Infof("Received signal (%s).  Already "+
					"shutting down...", sig)

			case <-shutdownRequestChannel:
				powcLog.Info("Shutdown requested.  Already " +
					"shutting down...")
			}
		}
	}()

	return ctx
}

// shutdownRequested returns true when the context returned by shutdownListener
// was canceled.  This simplifies early shutdown slightly since the caller can
// just use an if statement instead of a select.
func shutdownRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}

	return false
}
