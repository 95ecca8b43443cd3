// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cpuminer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/mining"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/internal/pow"
	"golang.org/x/sync/errgroup"
)

const (
	// maxNonce is the maximum value a nonce can be in a block header.
	maxNonce = ^uint32(0) // 2^32 - 1

	// hpsUpdateSecs is the number of seconds to wait in between each
	// update to the hashes per second monitor.
	hpsUpdateSecs = 10

	// checkInterval is the number of nonces tried between checks for
	// cancellation.  It must be a power of two.
	checkInterval = 1 << 14

	// maxFailedOnParent is the maximum number of solved blocks building on
	// the same parent that may fail to submit before a worker waits for
	// new work instead of pointlessly mining more of them.
	maxFailedOnParent uint8 = 4

	// retryDelay is how long a worker waits before asking for a template
	// again when no work could be obtained.
	retryDelay = time.Second
)

var (
	// MaxNumWorkers is the maximum number of workers that will be allowed for
	// mining and is based on the number of processor cores.  This helps ensure
	// system stays reasonably responsive under heavy load.
	MaxNumWorkers = uint32(runtime.NumCPU() * 2)

	// defaultNumWorkers is the default number of workers to use for mining.
	defaultNumWorkers = uint32(1)
)

// speedStats houses tracking information used to monitor the hashing speed of
// the CPU miner.
type speedStats struct {
	totalHashes   atomic.Uint64
	elapsedMicros atomic.Uint64
}

// WorkSource provides the block templates the CPU miner solves and accepts
// the solutions.  It is implemented by the mining service.
type WorkSource interface {
	GetTemplate(ctx context.Context, req *mining.TemplateRequest) (*mining.BlockTemplate, error)
	WaitForNewWork(ctx context.Context, lastTip chainhash.Hash, lastMempool uint64) (chainhash.Hash, uint64, error)
	SubmitBlock(block *wire.MsgBlock) (string, error)
}

// Config is a descriptor containing the CPU miner configuration.
type Config struct {
	// ChainParams identifies which chain parameters the CPU miner is
	// associated with.
	ChainParams *netparams.Params

	// Work provides templates and processes solved blocks.
	Work WorkSource

	// Algos are the algorithms blocks are mined with in rotation.  Every
	// one of them must have a registered hash function.
	Algos []algo.ID

	// IsCurrent defines the function to use to obtain whether or not the
	// block chain is current.  This is used by the automatic persistent
	// mining routine to determine whether or it should attempt mining.
	// This is useful because there is no point in mining if the chain is
	// not current since any solved blocks would be on a side chain and
	// up orphaned anyways.
	IsCurrent func() bool
}

// CPUMiner provides facilities for solving blocks (mining) using the CPU in a
// concurrency-safe manner.  It consists of two main modes -- a normal mining
// mode that tries to solve blocks continuously and a discrete mining mode,
// which is accessible via GenerateNBlocks, that generates a specific number of
// blocks that extend the main chain.
//
// The normal mining mode consists of two main goroutines -- a speed monitor and
// a controller for additional worker goroutines that fetch and solve
// templates.  Each worker mines one of the configured algorithms.
//
// When the CPU miner is first started via the Run method, it will not have any
// workers which means it will be idle.  The number of worker goroutines for the
// normal mining mode can be set via the SetNumWorkers method.
type CPUMiner struct {
	numWorkers atomic.Uint32
	hashRate   atomic.Uint64 // float64 bits

	sync.Mutex
	cfg              *Config
	rules            []string
	normalMining     bool
	discreteMining   bool
	submitBlockLock  sync.Mutex
	wg               sync.WaitGroup
	workerWg         sync.WaitGroup
	updateNumWorkers chan struct{}
	speedStats       map[uint64]*speedStats
	quit             chan struct{}

	// failedOnParents keeps track of how many solved blocks failed to
	// submit on each parent.  It is protected by the embedded mutex.
	failedOnParents map[chainhash.Hash]uint8
}

// pickNoun returns the singular or plural form of a noun depending on the
// provided count.
func pickNoun(n uint64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// sampleHashRate drains the counters of every worker and returns the combined
// hash rate over the sampled period.
func (m *CPUMiner) sampleHashRate() float64 {
	m.Lock()
	defer m.Unlock()

	var rate float64
	for _, stats := range m.speedStats {
		hashes := stats.totalHashes.Swap(0)
		micros := stats.elapsedMicros.Swap(0)
		if hashes == 0 || micros < 1e6 {
			continue
		}
		rate += float64(hashes) / (float64(micros) / 1e6)
	}
	return rate
}

// speedMonitor periodically publishes the hash rate of the workers.  It must
// be run as a goroutine.
func (m *CPUMiner) speedMonitor(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(hpsUpdateSecs * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rate := m.sampleHashRate()
			if math.IsNaN(rate) || math.IsInf(rate, 0) {
				rate = 0
			}
			m.hashRate.Store(math.Float64bits(rate))
			if rate != 0 {
				log.Debugf("Hash speed: %6.0f kilohashes/s", rate/1000)
			}

		case <-ctx.Done():
			m.hashRate.Store(0)
			return
		}
	}
}

// templateRequest returns the request for a template of the algorithm.  The
// miner supports every deployment of the network.
func (m *CPUMiner) templateRequest(a algo.ID) *mining.TemplateRequest {
	return &mining.TemplateRequest{Algo: a, Rules: m.rules}
}

// submitBlock submits the solved block and returns whether it was accepted.
func (m *CPUMiner) submitBlock(block *wire.MsgBlock) bool {
	m.submitBlockLock.Lock()
	defer m.submitBlockLock.Unlock()

	hash := block.BlockHash()
	result, err := m.cfg.Work.SubmitBlock(block)
	if err != nil {
		log.Errorf("Unexpected error while processing block submitted via "+
			"CPU miner: %v", err)
		return false
	}
	if result != "" {
		log.Errorf("Block %v submitted via CPU miner rejected: %s", hash,
			result)
		return false
	}

	log.Infof("Block submitted via CPU miner accepted (hash %s, algo %s)",
		hash, pow.Select(&block.Header).Algo)
	return true
}

// solveRange attempts to find a nonce in the inclusive range which makes the
// hash of the header satisfy its target.  The nonce of the header is left at
// the solution when one is found.
//
// This function will return early with false when the provided context is
// cancelled.
func solveRange(ctx context.Context, header *wire.BlockHeader, start, stop uint32, stats *speedStats) (bool, error) {
	hashesCompleted := uint64(0)
	begin := time.Now()
	updateSpeedStats := func() {
		stats.totalHashes.Add(hashesCompleted)
		stats.elapsedMicros.Add(uint64(time.Since(begin).Microseconds()))
		hashesCompleted = 0
		begin = time.Now()
	}
	defer updateSpeedStats()

	for nonce := start; ; nonce++ {
		if nonce&(checkInterval-1) == 0 {
			updateSpeedStats()
			if ctx.Err() != nil {
				return false, nil
			}
		}

		header.Nonce = nonce
		hash, err := pow.Hash(header)
		if err != nil {
			return false, err
		}
		hashesCompleted++
		if pow.MeetsTarget(&hash, header.Bits) {
			return true, nil
		}

		// The check is at the end so the nonce does not wrap around.
		if nonce == stop {
			return false, nil
		}
	}
}

// solveBlock attempts to find a nonce and timestamp which makes the hash of
// the header satisfy its target using the given number of solvers, each of
// which searches its own part of the nonce space.  The timestamp is advanced
// every time the nonce space is exhausted.  When the function returns true,
// the header is ready for submission.
func solveBlock(ctx context.Context, header *wire.BlockHeader, numSolvers uint32, stats *speedStats) (bool, error) {
	if numSolvers == 0 {
		numSolvers = 1
	}
	noncesPerSolver := maxNonce / numSolvers
	for ctx.Err() == nil {
		var found atomic.Bool
		var solution atomic.Uint32
		g, gctx := errgroup.WithContext(ctx)
		solveCtx, cancel := context.WithCancel(gctx)
		for i := uint32(0); i < numSolvers; i++ {
			start := noncesPerSolver * i
			stop := start + noncesPerSolver - 1
			if i == numSolvers-1 {
				stop = maxNonce
			}
			hdr := *header
			g.Go(func() error {
				solved, err := solveRange(solveCtx, &hdr, start, stop, stats)
				if err != nil {
					return err
				}
				if solved && found.CompareAndSwap(false, true) {
					solution.Store(hdr.Nonce)
					cancel()
				}
				return nil
			})
		}
		err := g.Wait()
		cancel()
		if err != nil {
			return false, err
		}
		if found.Load() {
			header.Nonce = solution.Load()
			return true, nil
		}
		header.Timestamp = header.Timestamp.Add(time.Second)
	}
	return false, nil
}

// waitOrDone waits for the duration and returns false when the context is
// done first.
func waitOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// generateBlocks is a worker that is controlled by the miningWorkerController.
//
// It is self contained in that it fetches templates of its algorithm from the
// work source and attempts to solve them while watching for new work.  The
// current template is abandoned as soon as new work is available.  When a
// block is solved, it is submitted.
//
// It must be run as a goroutine.
func (m *CPUMiner) generateBlocks(ctx context.Context, workerID uint64) {
	log.Trace("Starting generate blocks worker")
	defer func() {
		m.workerWg.Done()
		log.Trace("Generate blocks worker done")
	}()

	// Create a new state for tracking speed stats and add it to the global
	// map that the speed monitor periodically polls.
	var stats speedStats
	m.Lock()
	m.speedStats[workerID] = &stats
	m.Unlock()
	defer func() {
		m.Lock()
		delete(m.speedStats, workerID)
		m.Unlock()
	}()

	a := m.cfg.Algos[workerID%uint64(len(m.cfg.Algos))]
	for ctx.Err() == nil {
		if m.cfg.IsCurrent != nil && !m.cfg.IsCurrent() {
			waitOrDone(ctx, retryDelay)
			continue
		}

		tmpl, err := m.cfg.Work.GetTemplate(ctx, m.templateRequest(a))
		if err != nil {
			log.Debugf("Unable to obtain %s template: %v", a, err)
			waitOrDone(ctx, retryDelay)
			continue
		}
		prevBlock := tmpl.Block.Header.PrevBlock

		// Don't try to mine any more blocks when the maximum number of
		// solutions building on the current parent that fail to submit has
		// been reached.
		m.Lock()
		maxFailed := m.failedOnParents[prevBlock] >= maxFailedOnParent
		m.Unlock()
		if maxFailed {
			log.Infof("Too many failed blocks mined on parent %v, waiting "+
				"for new work", prevBlock)
			m.cfg.Work.WaitForNewWork(ctx, prevBlock, tmpl.MempoolVersion)
			continue
		}

		// Abandon the template as soon as there is new work.
		solveCtx, cancel := context.WithCancel(ctx)
		go func() {
			m.cfg.Work.WaitForNewWork(solveCtx, prevBlock,
				tmpl.MempoolVersion)
			cancel()
		}()
		solved, err := solveBlock(solveCtx, &tmpl.Block.Header, 1, &stats)
		cancel()
		if err != nil {
			log.Errorf("Unable to solve %s block: %v", a, err)
			waitOrDone(ctx, retryDelay)
			continue
		}

		// Avoid submitting any solutions that might have been found in
		// between the time a worker was signalled to stop and it actually
		// stopping.
		if !solved || ctx.Err() != nil {
			continue
		}
		if m.submitBlock(tmpl.Block) {
			m.Lock()
			for k := range m.failedOnParents {
				delete(m.failedOnParents, k)
			}
			m.Unlock()
			continue
		}
		m.Lock()
		m.failedOnParents[prevBlock]++
		m.Unlock()
	}
}

// miningWorkerController launches the worker goroutines that are used to
// fetch templates and solve them.  It also provides the ability to
// dynamically adjust the number of running worker goroutines.
//
// It must be run as a goroutine.
func (m *CPUMiner) miningWorkerController(ctx context.Context) {
	// launchWorker groups common code to launch a worker for fetching and
	// solving templates.
	type workerState struct {
		cancel context.CancelFunc
	}
	var curWorkerID uint64
	var runningWorkers []workerState
	launchWorker := func() {
		wCtx, wCancel := context.WithCancel(ctx)
		runningWorkers = append(runningWorkers, workerState{
			cancel: wCancel,
		})

		m.workerWg.Add(1)
		go m.generateBlocks(wCtx, curWorkerID)
		curWorkerID++
	}

out:
	for {
		select {
		// Update the number of running workers.
		case <-m.updateNumWorkers:
			numRunning := uint32(len(runningWorkers))
			numWorkers := m.numWorkers.Load()

			// No change.
			if numWorkers == numRunning {
				continue
			}

			// Add new workers.
			if numWorkers > numRunning {
				numToLaunch := numWorkers - numRunning
				for i := uint32(0); i < numToLaunch; i++ {
					launchWorker()
				}
				log.Debugf("Launched %d %s (%d total running)", numToLaunch,
					pickNoun(uint64(numToLaunch), "worker", "workers"),
					numWorkers)
				continue
			}

			// Signal the most recently created goroutines to exit.
			numToStop := numRunning - numWorkers
			for i := uint32(0); i < numToStop; i++ {
				finalWorkerIdx := numRunning - 1 - i
				runningWorkers[finalWorkerIdx].cancel()
				runningWorkers[finalWorkerIdx].cancel = nil
				runningWorkers = runningWorkers[:finalWorkerIdx]
			}
			log.Debugf("Stopped %d %s (%d total running)", numToStop,
				pickNoun(uint64(numToStop), "worker", "workers"), numWorkers)

		case <-ctx.Done():
			// Signal all of the workers to shut down.
			for _, state := range runningWorkers {
				state.cancel()
			}
			break out
		}
	}

	// Wait until all workers shut down.
	m.workerWg.Wait()
	m.wg.Done()
}

// Run starts the CPU miner with zero workers which means it will be idle. It
// blocks until the provided context is cancelled.
//
// Use the SetNumWorkers method to start solving blocks in the normal mining
// mode.
func (m *CPUMiner) Run(ctx context.Context) {
	log.Trace("Starting CPU miner in idle state")

	m.wg.Add(3)
	go m.speedMonitor(ctx)
	go m.miningWorkerController(ctx)
	go func(ctx context.Context) {
		<-ctx.Done()
		close(m.quit)
		m.wg.Done()
	}(ctx)

	m.wg.Wait()
	log.Trace("CPU miner stopped")
}

// IsMining returns whether or not the CPU miner is currently mining in either
// the normal or discrete mining modes.
//
// This function is safe for concurrent access.
func (m *CPUMiner) IsMining() bool {
	m.Lock()
	defer m.Unlock()

	return m.normalMining || m.discreteMining
}

// HashesPerSecond returns the last sampled hash rate of the normal mining
// mode or 0 when it is not active.
//
// This function is safe for concurrent access.
func (m *CPUMiner) HashesPerSecond() float64 {
	m.Lock()
	normal := m.normalMining
	m.Unlock()
	if !normal {
		return 0
	}
	return math.Float64frombits(m.hashRate.Load())
}

// SetNumWorkers sets the number of workers to create for solving blocks in the
// normal mining mode.  Negative values cause the default number of workers to
// be used, values larger than the max allowed are limited to the max, and a
// value of 0 causes all normal mode CPU mining to be stopped.
//
// NOTE: This will have no effect if discrete mining mode is currently active
// via GenerateNBlocks.
//
// This function is safe for concurrent access.
func (m *CPUMiner) SetNumWorkers(numWorkers int32) {
	m.Lock()
	defer m.Unlock()

	// Ignore when the miner is in discrete mode
	if m.discreteMining {
		return
	}

	// Use default number of workers if the provided value is negative or limit
	// it to the maximum allowed if needed.
	targetNumWorkers := uint32(numWorkers)
	if numWorkers < 0 {
		targetNumWorkers = defaultNumWorkers
	} else if targetNumWorkers > MaxNumWorkers {
		targetNumWorkers = MaxNumWorkers
	}
	m.numWorkers.Store(targetNumWorkers)
	m.normalMining = targetNumWorkers != 0

	// Notify the controller about the change.
	select {
	case m.updateNumWorkers <- struct{}{}:
	case <-m.quit:
	}
}

// NumWorkers returns the number of workers which are running to solve blocks
// in the normal mining mode.
//
// This function is safe for concurrent access.
func (m *CPUMiner) NumWorkers() int32 {
	return int32(m.numWorkers.Load())
}

// GenerateNBlocks generates the requested number of blocks in the discrete
// mining mode and returns a list of the hashes of generated blocks that were
// added to the chain.  The blocks are mined with the configured algorithms in
// rotation and every block is solved by one solver per processor core.
//
// Note that this will only consider blocks successfully submitted in the
// overall count, so, upon returning, the list of hashes will only contain the
// hashes of those blocks.  An error is returned when too many solved blocks
// in a row fail to submit.
func (m *CPUMiner) GenerateNBlocks(ctx context.Context, n uint32) ([]*chainhash.Hash, error) {
	// Nothing to do.
	if n == 0 {
		return nil, nil
	}

	// Respond with an error if server is already mining.
	m.Lock()
	if m.normalMining {
		m.Unlock()
		return nil, errors.New("server is already CPU mining -- please call " +
			"`setgenerate 0` before calling discrete `generate` commands")
	}
	if m.discreteMining {
		m.Unlock()
		return nil, errors.New("server is already discrete mining -- please " +
			"wait until the existing call completes or cancel it")
	}
	m.discreteMining = true
	m.Unlock()
	defer func() {
		m.Lock()
		m.discreteMining = false
		m.Unlock()
	}()

	log.Tracef("Generating %d blocks", n)

	numSolvers := uint32(runtime.NumCPU())
	blockHashes := make([]*chainhash.Hash, 0, n)
	var stats speedStats
	var failed uint8
	for i := 0; uint32(len(blockHashes)) < n; i++ {
		a := m.cfg.Algos[i%len(m.cfg.Algos)]
		tmpl, err := m.cfg.Work.GetTemplate(ctx, m.templateRequest(a))
		if err != nil {
			return blockHashes, err
		}

		header := &tmpl.Block.Header
		solved, err := solveBlock(ctx, header, numSolvers, &stats)
		if err != nil {
			return blockHashes, err
		}
		if !solved {
			return blockHashes, ctx.Err()
		}

		if !m.submitBlock(tmpl.Block) {
			failed++
			if failed >= maxFailedOnParent {
				return blockHashes, fmt.Errorf("%d solved blocks in a row "+
					"failed to submit", failed)
			}
			continue
		}
		failed = 0
		hash := tmpl.Block.BlockHash()
		blockHashes = append(blockHashes, &hash)
	}

	log.Tracef("Generated %d blocks", len(blockHashes))
	return blockHashes, nil
}

// New returns a new instance of a CPU miner for the provided configuration
// options.  It returns an error when an algorithm to mine has no registered
// hash function.
//
// Use Run to initialize the CPU miner and then either use SetNumWorkers with a
// non-zero value to start the normal continuous mining mode or use
// GenerateNBlocks to mine a discrete number of blocks.
//
// See the documentation for CPUMiner type for more details.
func New(cfg *Config) (*CPUMiner, error) {
	if len(cfg.Algos) == 0 {
		return nil, errors.New("no algorithms to mine")
	}
	for _, a := range cfg.Algos {
		if !pow.HasHasher(a) {
			return nil, fmt.Errorf("no hash function registered for "+
				"algorithm %s", a)
		}
	}

	rules := make([]string, 0, len(cfg.ChainParams.Deployments))
	for _, d := range cfg.ChainParams.Deployments {
		rules = append(rules, d.Name)
	}
	miner := &CPUMiner{
		cfg:              cfg,
		rules:            rules,
		updateNumWorkers: make(chan struct{}),
		speedStats:       make(map[uint64]*speedStats),
		failedOnParents:  make(map[chainhash.Hash]uint8),
		quit:             make(chan struct{}),
	}
	miner.numWorkers.Store(defaultNumWorkers)
	return miner, nil
}
