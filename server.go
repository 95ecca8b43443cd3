// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/elliptic"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/certgen"
	"github.com/decred/dcrd/container/apbf"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/chainwork"
	"github.com/multialgo/powcoord/internal/halving"
	"github.com/multialgo/powcoord/internal/memchain"
	"github.com/multialgo/powcoord/internal/mempool"
	"github.com/multialgo/powcoord/internal/mining"
	"github.com/multialgo/powcoord/internal/mining/cpuminer"
	"github.com/multialgo/powcoord/internal/rpcserver"
	"github.com/multialgo/powcoord/internal/versionbits"
)

const (
	// maxRecentlyConfirmedTxns specifies the maximum number of recently
	// confirmed transactions to track.  It covers several hours of full
	// blocks.
	//
	// recentlyConfirmedTxnsFPRate is the false positive rate for the APBF
	// used to track them.
	maxRecentlyConfirmedTxns    = 23000
	recentlyConfirmedTxnsFPRate = 0.000001

	// halvingDBName is the name of the halving state database inside the
	// data directory.
	halvingDBName = "halving"
)

// simpleAddr implements the net.Addr interface with two struct fields.
type simpleAddr struct {
	net, addr string
}

// String returns the address.
//
// This is part of the net.Addr interface.
func (a simpleAddr) String() string {
	return a.addr
}

// Network returns the network.
//
// This is part of the net.Addr interface.
func (a simpleAddr) Network() string {
	return a.net
}

// Ensure simpleAddr implements the net.Addr interface.
var _ net.Addr = simpleAddr{}

// server owns the chain, the mempool and the mining subsystems and serves them
// over the RPC server.
type server struct {
	params *params

	chain        *chainstate.Handle
	blockChain   *memchain.Chain
	txMemPool    *mempool.TxPool
	halving      *halving.Tracker
	halvingStore *halving.Store
	accountant   *chainwork.Accountant
	templates    *mining.Service
	cpuMiner     *cpuminer.CPUMiner
	rpcServer    *rpcserver.Server

	// recentlyConfirmedTxns tracks transactions that have been confirmed in
	// the most recent blocks.
	recentlyConfirmedTxns *apbf.Filter
}

// RecentlyConfirmedTxn returns with high degree of confidence whether a
// transaction has been recently confirmed in a block.
//
// This is part of the rpcserver.ConfirmedTxnsFilter interface.
func (s *server) RecentlyConfirmedTxn(hash *chainhash.Hash) bool {
	return s.recentlyConfirmedTxns.Contains(hash[:])
}

// handleConnectedBlock removes the transactions of a block connected to the
// main chain and any of their double spends from the mempool.
func (s *server) handleConnectedBlock(block *wire.MsgBlock) {
	// The coinbase is skipped since the pool can't contain one.
	for _, msgTx := range block.Transactions[1:] {
		tx := btcutil.NewTx(msgTx)
		s.txMemPool.RemoveTransaction(tx, false)
		s.txMemPool.RemoveDoubleSpends(tx)
		s.recentlyConfirmedTxns.Add(tx.Hash()[:])
	}
}

// handleDisconnectedBlock returns the transactions of a block disconnected
// from the main chain to the mempool so they can be mined again.
func (s *server) handleDisconnectedBlock(block *wire.MsgBlock) {
	for _, msgTx := range block.Transactions[1:] {
		tx := btcutil.NewTx(msgTx)
		_, err := s.txMemPool.ProcessTransaction(tx, true)
		if err == nil || errors.Is(err, mempool.ErrDuplicate) {
			continue
		}

		// Transactions that can no longer be accepted take everything that
		// spends them along.
		var kind mempool.ErrorKind
		if errors.As(err, &kind) && kind.IsPolicy() {
			srvrLog.Debugf("Dropping nonstandard transaction %v of "+
				"disconnected block: %v", tx.Hash(), err)
		} else {
			srvrLog.Infof("Dropping transaction %v of disconnected block: %v",
				tx.Hash(), err)
		}
		s.txMemPool.RemoveTransaction(tx, true)
	}
}

// handleChainNotification handles notifications from the chain.  It is invoked
// with the chain processing lock held, so the mempool always observes blocks in
// order.
func (s *server) handleChainNotification(n *memchain.Notification) {
	switch n.Type {
	case memchain.NTBlockAccepted:
		srvrLog.Debugf("Accepted block %v", n.Block.BlockHash())

	case memchain.NTBlockConnected:
		s.handleConnectedBlock(n.Block)

	case memchain.NTBlockDisconnected:
		s.handleDisconnectedBlock(n.Block)
	}
}

// syncHalving brings the persisted halving state in line with a new tip.
func (s *server) syncHalving(tip *chainstate.Entry) {
	if err := s.halving.Sync(); err != nil {
		halvLog.Errorf("Unable to sync halving state to block %v "+
			"(height %d): %v", tip.Hash(), tip.Height(), err)
	}
}

// Run starts the server and blocks until the provided context is cancelled.
// This entails starting the RPC server and the CPU miner.
func (s *server) Run(ctx context.Context) {
	srvrLog.Trace("Starting server")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		s.rpcServer.Run(ctx)
		wg.Done()
	}()
	go func() {
		s.cpuMiner.Run(ctx)
		wg.Done()
	}()

	// The CPU miner is started without any workers which means it is idle.
	// Start mining by setting the configured number of workers when
	// requested.
	if cfg.Generate {
		s.cpuMiner.SetNumWorkers(cfg.GenProcLimit)
	}

	// Shutdown the server when the context is cancelled.
	<-ctx.Done()

	srvrLog.Warnf("Server shutting down")
	s.chain.Shutdown()
	wg.Wait()

	if err := s.halving.Flush(); err != nil {
		srvrLog.Errorf("Unable to flush halving state: %v", err)
	}
	if err := s.halvingStore.Close(); err != nil {
		srvrLog.Errorf("Unable to close halving database: %v", err)
	}
	srvrLog.Trace("Server stopped")
}

// newServer returns a new server configured to coordinate mining on the
// network specified by params.  Use Run to begin serving.
func newServer(ctx context.Context, p *params, dataDir string) (*server, error) {
	halvingStore, err := halving.OpenStore(filepath.Join(dataDir,
		halvingDBName))
	if err != nil {
		return nil, err
	}

	s := server{
		params:       p,
		chain:        chainstate.New(),
		halvingStore: halvingStore,
		recentlyConfirmedTxns: apbf.NewFilter(maxRecentlyConfirmedTxns,
			recentlyConfirmedTxnsFPRate),
	}

	s.halving, err = halving.New(&halving.Config{
		Chain:  s.chain,
		Params: p.Params,
		Store:  halvingStore,
	})
	if err != nil {
		halvingStore.Close()
		return nil, err
	}

	payees := memchain.NewPayeeFeed(cfg.payeeScript, cfg.PayeePercent,
		s.halving.MaxSubsidyAt)
	difficulty := memchain.NewDifficulty(p.Params)
	s.blockChain, err = memchain.New(&memchain.Config{
		Params:        p.Params,
		Chain:         s.chain,
		Difficulty:    difficulty,
		Subsidy:       s.halving,
		Payees:        payees,
		MaxTipAge:     cfg.MaxTipAge,
		Notifications: s.handleChainNotification,
	})
	if err != nil {
		halvingStore.Close()
		return nil, err
	}
	s.chain.Subscribe(s.syncHalving)

	s.txMemPool = mempool.New(&mempool.Config{
		Policy: mempool.Policy{
			AcceptNonStd:     cfg.AcceptNonStd,
			MinRelayTxFee:    cfg.minRelayFee,
			MaxTxFee:         cfg.maxTxFee,
			CoinbaseMaturity: p.CoinbaseMaturity,
		},
		FetchUtxo:  s.blockChain.FetchUtxo,
		BestHeight: s.blockChain.BestHeight,
		Chain:      s.chain,
	})

	s.accountant = chainwork.New(&chainwork.Config{
		Chain:   s.chain,
		Params:  p.Params,
		Subsidy: s.halving.BlockSubsidy,
	})

	policy := mining.DefaultPolicy()
	policy.BlockMaxWeight = cfg.BlockMaxWeight
	policy.BlockMaxSigOps = cfg.BlockMaxSigOps
	policy.StrictRules = !cfg.RPCBackCompatible
	policy.CoinbaseFlags = cfg.CoinbaseFlags
	policy.LongPollMaxWait = cfg.LongPollMaxWait
	policy.PayToScript = cfg.payToScript
	if len(policy.PayToScript) == 0 {
		srvrLog.Warn("No mining address is configured.  Block templates " +
			"will not be available until one is set with --miningaddr")
	}
	s.templates = mining.New(&mining.Config{
		Policy:      policy,
		ChainParams: p.Params,
		Chain:       s.chain,
		TxSource:    s.txMemPool,
		Payees:      payees,
		Subsidy:     s.halving,
		Difficulty:  difficulty,
		Submitter:   s.blockChain,
		VersionBits: versionbits.NewCalculator(p.Params),
		IsCurrent:   s.blockChain.IsCurrent,
	})

	s.cpuMiner, err = cpuminer.New(&cpuminer.Config{
		ChainParams: p.Params,
		Work:        s.templates,
		Algos:       cfg.genAlgos,
		IsCurrent:   s.blockChain.IsCurrent,
	})
	if err != nil {
		halvingStore.Close()
		return nil, err
	}

	rpcListeners, err := setupRPCListeners()
	if err != nil {
		halvingStore.Close()
		return nil, err
	}
	if len(rpcListeners) == 0 {
		halvingStore.Close()
		return nil, errors.New("RPCS: No valid listen address")
	}

	s.rpcServer, err = rpcserver.New(&rpcserver.Config{
		Listeners:            rpcListeners,
		ChainParams:          p.Params,
		Chain:                s.chain,
		Templates:            s.templates,
		Accountant:           s.accountant,
		Halving:              s.halving,
		CPUMiner:             s.cpuMiner,
		TxMempooler:          s.txMemPool,
		ConfirmedTxns:        &s,
		LogManager:           &rpcLogManager{},
		MiningAlgo:           cfg.miningAlgo,
		RPCUser:              cfg.RPCUser,
		RPCPass:              cfg.RPCPass,
		RPCLimitUser:         cfg.RPCLimitUser,
		RPCLimitPass:         cfg.RPCLimitPass,
		RPCMaxClients:        cfg.RPCMaxClients,
		RPCMaxConcurrentReqs: cfg.RPCMaxConcurrentReqs,
		RPCMaxWebsockets:     cfg.RPCMaxWebsockets,
	})
	if err != nil {
		for _, l := range rpcListeners {
			l.Close()
		}
		halvingStore.Close()
		return nil, err
	}

	// Signal process shutdown when the RPC server requests it.
	go func() {
		select {
		case <-s.rpcServer.RequestedProcessShutdown():
			requestShutdown()
		case <-ctx.Done():
		}
	}()

	return &s, nil
}

// parseListeners determines whether each listen address is IPv4 and IPv6 and
// returns a slice of appropriate net.Addrs to listen on with TCP.  It also
// properly detects addresses which apply to "all interfaces" and adds the
// address as both IPv4 and IPv6.
func parseListeners(addrs []string) ([]net.Addr, error) {
	netAddrs := make([]net.Addr, 0, len(addrs)*2)
	for _, addr := range addrs {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			// Shouldn't happen due to already being normalized.
			return nil, err
		}

		// Empty host or host of * on plan9 is both IPv4 and IPv6.
		if host == "" || (host == "*" && runtime.GOOS == "plan9") {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp4", addr: addr})
			netAddrs = append(netAddrs, simpleAddr{net: "tcp6", addr: addr})
			continue
		}

		// Strip IPv6 zone id if present since net.ParseIP does not
		// handle it.
		zoneIndex := strings.LastIndex(host, "%")
		if zoneIndex > 0 {
			host = host[:zoneIndex]
		}

		if host == "localhost" {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp", addr: addr})
			continue
		}
		ip := net.ParseIP(host)
		if ip == nil {
			return nil, fmt.Errorf("'%s' is not a valid IP address", host)
		}

		// To4 returns nil when the IP is not an IPv4 address, so use
		// this determine the address type.
		if ip.To4() == nil {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp6", addr: addr})
		} else {
			netAddrs = append(netAddrs, simpleAddr{net: "tcp4", addr: addr})
		}
	}
	return netAddrs, nil
}

// tlsCurve returns the elliptic curve with the provided name.
func tlsCurve(name string) (elliptic.Curve, error) {
	switch name {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	}
	return nil, fmt.Errorf("unsupported TLS curve %q", name)
}

// genCertPair generates a key/cert pair to the paths provided.
func genCertPair(certFile, keyFile string, altDNSNames []string, curve elliptic.Curve) error {
	rpcsLog.Infof("Generating TLS certificates...")

	org := "powcoord autogenerated cert"
	validUntil := time.Now().Add(10 * 365 * 24 * time.Hour)
	cert, key, err := certgen.NewTLSCertPair(curve, org, validUntil,
		altDNSNames)
	if err != nil {
		return err
	}

	// Write cert and key files.
	if err = os.WriteFile(certFile, cert, 0644); err != nil {
		return err
	}
	if err = os.WriteFile(keyFile, key, 0600); err != nil {
		os.Remove(certFile)
		return err
	}

	rpcsLog.Infof("Done generating TLS certificates")
	return nil
}

// setupRPCListeners returns a slice of listeners that are configured for use
// with the RPC server depending on the configuration settings for listen
// addresses and TLS.
func setupRPCListeners() ([]net.Listener, error) {
	// Setup TLS if not disabled.
	listenFunc := net.Listen
	if !cfg.DisableTLS {
		// Generate the TLS cert and key file if both don't already exist.
		keyFileExists := fileExists(cfg.RPCKey)
		certFileExists := fileExists(cfg.RPCCert)
		if len(cfg.AltDNSNames) != 0 && (keyFileExists || certFileExists) {
			rpcsLog.Warn("Additional DNS names specified when TLS " +
				"certificates already exist will NOT be included")
		}
		if !keyFileExists && !certFileExists {
			curve, err := tlsCurve(cfg.TLSCurve)
			if err != nil {
				return nil, err
			}
			err = genCertPair(cfg.RPCCert, cfg.RPCKey, cfg.AltDNSNames, curve)
			if err != nil {
				return nil, err
			}
		}
		keypair, err := tls.LoadX509KeyPair(cfg.RPCCert, cfg.RPCKey)
		if err != nil {
			return nil, err
		}
		tlsConfig := tls.Config{
			Certificates: []tls.Certificate{keypair},
			MinVersion:   tls.VersionTLS12,
		}

		// Change the standard net.Listen function to the tls one.
		listenFunc = func(net string, laddr string) (net.Listener, error) {
			return tls.Listen(net, laddr, &tlsConfig)
		}
	}

	netAddrs, err := parseListeners(cfg.RPCListeners)
	if err != nil {
		return nil, err
	}

	listeners := make([]net.Listener, 0, len(netAddrs))
	for _, addr := range netAddrs {
		listener, err := listenFunc(addr.Network(), addr.String())
		if err != nil {
			rpcsLog.Warnf("Can't listen on %s: %v", addr, err)
			continue
		}
		listeners = append(listeners, listener)
	}

	return listeners, nil
}
