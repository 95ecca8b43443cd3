// Copyright (c) 2024 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"sync"
	"time"
)

// portToLocalHostAddr prepends a default host of 127.0.0.1 when the provided
// address is solely a port number.
func portToLocalHostAddr(addr string) string {
	if _, err := strconv.Atoi(addr); err == nil {
		addr = net.JoinHostPort("127.0.0.1", addr)
	}
	return addr
}

// validateProfileAddr ensures the provided address is of the form "host:port"
// and that the port is between 1024 and 65535.
func validateProfileAddr(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port, _ := strconv.Atoi(portStr); port < 1024 || port > 65535 {
		return fmt.Errorf("address %q: port must be between 1024 and "+
			"65535", addr)
	}
	return nil
}

// profileServer serves the pprof endpoints on a single listener.
type profileServer struct {
	mtx    sync.Mutex
	server *http.Server
	done   chan struct{}
}

// Start listens on the address and serves the profiling endpoints in the
// background.  Calling it on a running server does nothing.  Stop must be
// called to release the listener.
func (s *profileServer) Start(listenAddr string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.server != nil {
		return nil
	}

	listenAddr = portToLocalHostAddr(listenAddr)
	if err := validateProfileAddr(listenAddr); err != nil {
		return err
	}
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", listenAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	mux.Handle("/", http.RedirectHandler("/debug/pprof/", http.StatusSeeOther))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 3 * time.Second}
	done := make(chan struct{})
	s.server, s.done = srv, done

	powcLog.Infof("Profiling server listening on %s", listener.Addr())
	go func() {
		defer close(done)
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			powcLog.Errorf("Profiling server on %s: %v", listener.Addr(), err)
		}
	}()
	return nil
}

// Stop shuts the profiling server down and waits for it to exit.
func (s *profileServer) Stop() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.server == nil {
		return nil
	}

	err := s.server.Close()
	<-s.done
	s.server, s.done = nil, nil
	if err != nil {
		return err
	}
	powcLog.Info("Profiling server stopped")
	return nil
}
