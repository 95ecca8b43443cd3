// Copyright (c) 2018-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/container/lru"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/metrics"
	"github.com/multialgo/powcoord/internal/netparams"
	"github.com/multialgo/powcoord/internal/pow"
	"github.com/multialgo/powcoord/internal/versionbits"
	"golang.org/x/sync/singleflight"
)

const (
	// maxBuildAttempts is the number of times a template build is retried
	// when the tip changes while it is being built.
	maxBuildAttempts = 3

	// rejectedCacheSize is the number of rejected block hashes remembered
	// to report resubmissions as duplicate-invalid.
	rejectedCacheSize = 256
)

// Config is a descriptor containing the template service configuration.
type Config struct {
	// Policy defines the template and long-poll policy.
	Policy *Policy

	// ChainParams identifies which chain parameters the service is
	// associated with.
	ChainParams *netparams.Params

	// Chain is the shared chain state.
	Chain *chainstate.Handle

	// TxSource supplies the transactions of templates.
	TxSource TxSource

	// Payees determines the outputs the coinbase must pay.
	Payees PayeeResolver

	// Subsidy provides the block subsidy.
	Subsidy SubsidySource

	// Difficulty provides the target difficulty of new blocks.
	Difficulty DifficultyCalculator

	// Submitter processes blocks and headers found by miners.
	Submitter BlockSubmitter

	// VersionBits provides the deployment states.
	VersionBits *versionbits.Calculator

	// IsCurrent reports whether the chain is believed to be synced.  Work
	// is not handed out while it returns false.  Nil means always current.
	IsCurrent func() bool

	// Now returns the current time.  Nil means time.Now.
	Now func() time.Time
}

// cacheEntry is a built template along with the key it was built for.
type cacheEntry struct {
	tip            *chainstate.Entry
	algo           algo.ID
	mempoolVersion uint64
	built          time.Time
	tmpl           *BlockTemplate
	states         []versionbits.DeploymentState
}

// Service provides block templates to miners and processes the solutions
// they submit.  It is safe for concurrent access.
type Service struct {
	cfg Config

	// cacheMtx protects cache, which holds the most recently built
	// template.  It is only replaced by templates for the current tip and
	// never by one built at an older mempool version for the same key.
	cacheMtx sync.Mutex
	cache    *cacheEntry

	builds   singleflight.Group
	rejected *lru.Set[chainhash.Hash]
}

// New returns a template service for the provided configuration.
func New(cfg *Config) *Service {
	c := *cfg
	if c.Policy == nil {
		c.Policy = DefaultPolicy()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Service{
		cfg:      c,
		rejected: lru.NewSet[chainhash.Hash](rejectedCacheSize),
	}
}

// Policy returns the template policy of the service.
func (s *Service) Policy() *Policy {
	return s.cfg.Policy
}

// TemplateRequest describes the template a client asks for.
type TemplateRequest struct {
	// Algo is the algorithm the block will be mined with.
	Algo algo.ID

	// Rules are the deployment rules the client supports.
	Rules []string
}

// clientRules returns the set of rules of the request after ensuring it
// includes every required deployment.
func (s *Service) clientRules(req *TemplateRequest) (map[string]struct{}, error) {
	rules := make(map[string]struct{}, len(req.Rules))
	for _, rule := range req.Rules {
		rules[rule] = struct{}{}
	}
	for _, d := range s.cfg.ChainParams.Deployments {
		if !d.Required {
			continue
		}
		if _, ok := rules[d.Name]; ok {
			continue
		}
		if s.cfg.Policy.StrictRules {
			str := fmt.Sprintf("getblocktemplate must be called with the "+
				"%s rule set", d.Name)
			return nil, makeError(ErrInvalidParameter, str)
		}
		log.Warnf("Template requested without the required %s rule; "+
			"assuming support", d.Name)
		rules[d.Name] = struct{}{}
	}
	return rules, nil
}

// cached returns the cached template when it can serve a request for the
// algorithm at the snapshot.  It can unless the tip or algorithm differ or
// the mempool changed and the template is older than the refresh interval.
func (s *Service) cached(snap *chainstate.State, a algo.ID) *cacheEntry {
	s.cacheMtx.Lock()
	defer s.cacheMtx.Unlock()

	entry := s.cache
	if entry == nil || entry.tip != snap.Tip || entry.algo != a {
		return nil
	}
	if entry.mempoolVersion != snap.MempoolVersion &&
		s.cfg.Now().Sub(entry.built) > s.cfg.Policy.RefreshInterval {

		return nil
	}
	return entry
}

// publish makes the entry the cached template unless the tip moved on while
// it was being built or the cache already holds a newer template for the same
// key.  It returns false when the entry builds on a superseded tip.
func (s *Service) publish(entry *cacheEntry) bool {
	if s.cfg.Chain.Tip() != entry.tip {
		return false
	}

	s.cacheMtx.Lock()
	defer s.cacheMtx.Unlock()
	cur := s.cache
	if cur != nil && cur.tip == entry.tip && cur.algo == entry.algo &&
		cur.mempoolVersion > entry.mempoolVersion {

		return true
	}
	s.cache = entry
	return true
}

// build builds a template for the snapshot, coalescing concurrent builds for
// the same tip, algorithm and mempool version.  It returns whether the
// template still builds on the chain tip.
func (s *Service) build(snap *chainstate.State, a algo.ID) (*cacheEntry, bool, error) {
	key := fmt.Sprintf("%s/%d/%d", snap.Tip.Hash(), a, snap.MempoolVersion)
	type result struct {
		entry   *cacheEntry
		current bool
	}
	v, err, _ := s.builds.Do(key, func() (interface{}, error) {
		// A build for the same key may have finished since the caller
		// checked the cache.
		if entry := s.cached(snap, a); entry != nil {
			return result{entry, true}, nil
		}

		started := time.Now()
		tmpl, states, err := s.buildTemplate(snap.Tip, a, snap.MempoolVersion)
		var numTxns int
		if tmpl != nil {
			numTxns = len(tmpl.Block.Transactions)
		}
		metrics.ObserveTemplateBuild(a.String(), numTxns, err, started)
		if err != nil {
			return nil, err
		}
		entry := &cacheEntry{
			tip:            snap.Tip,
			algo:           a,
			mempoolVersion: snap.MempoolVersion,
			built:          s.cfg.Now(),
			tmpl:           tmpl,
			states:         states,
		}
		return result{entry, s.publish(entry)}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(result)
	return r.entry, r.current, nil
}

// GetTemplate returns a block template for the algorithm.  Templates are
// cached and reused for requests on the same tip and algorithm until the
// mempool changed and the refresh interval elapsed.  The returned template is
// a copy whose header is prepared for the request: the version signals the
// deployments the client supports, the timestamp is the current time but not
// before the minimum time and the nonce is zero.
func (s *Service) GetTemplate(ctx context.Context, req *TemplateRequest) (*BlockTemplate, error) {
	if !req.Algo.IsValid() {
		str := fmt.Sprintf("unknown algorithm %s", req.Algo)
		return nil, makeError(ErrInvalidParameter, str)
	}
	rules, err := s.clientRules(req)
	if err != nil {
		return nil, err
	}
	if s.cfg.Chain.ShuttingDown() {
		return nil, makeError(ErrShuttingDown, "shutting down")
	}
	if s.cfg.IsCurrent != nil && !s.cfg.IsCurrent() {
		return nil, makeError(ErrNotReady, "the chain is downloading blocks")
	}

	var entry *cacheEntry
	var current bool
	for attempt := 0; attempt < maxBuildAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap := s.cfg.Chain.Snapshot()
		if snap.Tip == nil {
			return nil, makeError(ErrNotReady, "the chain has no blocks")
		}
		if entry = s.cached(&snap, req.Algo); entry != nil {
			metrics.ObserveCacheHit(req.Algo.String())
			current = true
			break
		}

		entry, current, err = s.build(&snap, req.Algo)
		if err != nil {
			return nil, classify(err)
		}
		if current {
			break
		}
		log.Debugf("Tip changed while building a %s template at height "+
			"%d", req.Algo, entry.tmpl.Height)
	}

	// A template built on a superseded tip is never issued.
	if !current {
		str := fmt.Sprintf("the chain tip changed during %d attempts to "+
			"build a %s template", maxBuildAttempts, req.Algo)
		return nil, makeError(ErrNotReady, str)
	}

	tmpl := copyTemplate(entry.tmpl)
	if err := applyVersionBits(tmpl, entry.states, rules); err != nil {
		return nil, err
	}
	s.updateBlockTime(tmpl)
	tmpl.Block.Header.Nonce = 0
	return tmpl, nil
}

// updateBlockTime sets the header timestamp of the template to the current
// time unless that is before the minimum time of the template.
func (s *Service) updateBlockTime(tmpl *BlockTemplate) {
	now := time.Unix(s.cfg.Now().Unix(), 0)
	if now.Before(tmpl.MinTime) {
		now = tmpl.MinTime
	}
	tmpl.Block.Header.Timestamp = now
}

// LongPollID returns the long-poll identifier of the work on the tip at the
// mempool version.
func LongPollID(tip chainhash.Hash, mempoolVersion uint64) string {
	return tip.String() + strconv.FormatUint(mempoolVersion, 10)
}

// ParseLongPollID parses a long-poll identifier into the tip hash and the
// mempool version.  A missing mempool version is zero.
func ParseLongPollID(id string) (chainhash.Hash, uint64, error) {
	if len(id) < chainhash.MaxHashStringSize {
		str := fmt.Sprintf("invalid longpollid %q", id)
		return chainhash.Hash{}, 0, makeError(ErrInvalidParameter, str)
	}
	hash, err := chainhash.NewHashFromStr(id[:chainhash.MaxHashStringSize])
	if err != nil {
		str := fmt.Sprintf("invalid longpollid %q: %v", id, err)
		return chainhash.Hash{}, 0, makeError(ErrInvalidParameter, str)
	}
	var mempoolVersion uint64
	if rest := id[chainhash.MaxHashStringSize:]; rest != "" {
		mempoolVersion, err = strconv.ParseUint(rest, 10, 64)
		if err != nil {
			str := fmt.Sprintf("invalid longpollid %q: %v", id, err)
			return chainhash.Hash{}, 0, makeError(ErrInvalidParameter, str)
		}
	}
	return *hash, mempoolVersion, nil
}

// WaitForNewWork blocks until there is new work relative to the provided tip
// and mempool version and returns the current tip and mempool version.
//
// It returns immediately when the tip already differs.  Otherwise it returns
// when the tip changes, or once the coarse long-poll timeout elapsed and the
// mempool changed, in which case the mempool is rechecked at the recheck
// interval.  The wait never exceeds the maximum wait of the policy.  No lock
// is held while blocked.  An error of kind ErrShuttingDown is returned on
// shutdown and the context error when the context is done.
func (s *Service) WaitForNewWork(ctx context.Context, lastTip chainhash.Hash, lastMempool uint64) (chainhash.Hash, uint64, error) {
	policy := s.cfg.Policy
	coarse := policy.LongPollTimeout
	maxWait := policy.LongPollMaxWait
	if maxWait <= 0 {
		maxWait = coarse
	}

	reason := "error"
	done := metrics.LongPollStarted()
	defer func() { done(reason) }()

	start := time.Now()
	for {
		snap := s.cfg.Chain.Snapshot()
		if snap.Tip == nil {
			return chainhash.Hash{}, 0, makeError(ErrNotReady,
				"the chain has no blocks")
		}
		tip := snap.Tip.Hash()
		if tip != lastTip {
			reason = "tip"
			return tip, snap.MempoolVersion, nil
		}

		elapsed := time.Since(start)
		if elapsed >= coarse && snap.MempoolVersion != lastMempool {
			reason = "mempool"
			return tip, snap.MempoolVersion, nil
		}
		if elapsed >= maxWait {
			reason = "timeout"
			return tip, snap.MempoolVersion, nil
		}

		wait := coarse - elapsed
		if elapsed >= coarse {
			wait = policy.LongPollRecheck
		}
		if remaining := maxWait - elapsed; wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-snap.TipChanged:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			reason = "canceled"
			return chainhash.Hash{}, 0, ctx.Err()
		case <-s.cfg.Chain.Done():
			timer.Stop()
			reason = "shutdown"
			return chainhash.Hash{}, 0, makeError(ErrShuttingDown,
				"shutting down")
		}
		timer.Stop()
	}
}

// CheckHeader ensures the header selects a registered algorithm and that its
// proof-of-work hash satisfies its target.  A header failing the target check
// results in an ErrBlockRejected error with the rejection reason.
func (s *Service) CheckHeader(header *wire.BlockHeader) error {
	err := pow.CheckHeader(header, s.cfg.ChainParams.PowLimit)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pow.ErrHighHash):
		return RejectError("high-hash")
	case errors.Is(err, pow.ErrUnexpectedDifficulty):
		return RejectError("bad-diffbits")
	}
	return classify(err)
}

// rejectReason returns the rejection reason of an ErrBlockRejected error.
func rejectReason(err error) string {
	var e Error
	if errors.As(err, &e) && e.Description != "" {
		return e.Description
	}
	return "rejected"
}

// checkCoinbase ensures the block starts with a coinbase.
func checkCoinbase(block *wire.MsgBlock) error {
	if len(block.Transactions) == 0 ||
		!blockchain.IsCoinBaseTx(block.Transactions[0]) {

		return makeError(ErrDeserialization, "block does not start with a "+
			"coinbase")
	}
	return nil
}

// submitResult maps the outcome of processing a block to its BIP22 result.
func (s *Service) submitResult(hash *chainhash.Hash, err error) (string, error) {
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, ErrDuplicateBlock):
		return "duplicate", nil
	case errors.Is(err, ErrMissingParent):
		return "inconclusive", nil
	case errors.Is(err, ErrBlockRejected):
		s.rejected.Put(*hash)
		return rejectReason(err), nil
	}
	return "", classify(err)
}

// SubmitBlock checks the proof of work of a block found by a miner and
// passes it on to be processed.  The result is empty when the block is
// accepted and otherwise one of "duplicate", "duplicate-invalid",
// "inconclusive" or the rejection reason.
func (s *Service) SubmitBlock(block *wire.MsgBlock) (string, error) {
	if err := checkCoinbase(block); err != nil {
		return "", err
	}
	hash := block.BlockHash()
	result, err := s.submitBlock(&hash, block)
	if err != nil {
		log.Debugf("Failed to process submitted block %v: %v", hash, err)
		return "", err
	}
	metrics.ObserveSubmission("block", result)
	if result == "" {
		log.Infof("Accepted submitted block %v (algo %s)", hash,
			pow.Select(&block.Header).Algo)
	} else {
		log.Infof("Submitted block %v: %s", hash, result)
	}
	return result, nil
}

func (s *Service) submitBlock(hash *chainhash.Hash, block *wire.MsgBlock) (string, error) {
	if s.rejected.Contains(*hash) {
		return "duplicate-invalid", nil
	}
	if s.cfg.Submitter.HaveBlock(hash) {
		return "duplicate", nil
	}
	if err := s.CheckHeader(&block.Header); err != nil {
		return s.submitResult(hash, err)
	}
	return s.submitResult(hash, s.cfg.Submitter.ProcessBlock(block))
}

// SubmitHeader checks the proof of work of a header and passes it on to be
// processed.  Headers that are already known are accepted.  An error of kind
// ErrMissingParent or ErrBlockRejected is returned when the header can't be
// accepted.
func (s *Service) SubmitHeader(header *wire.BlockHeader) error {
	hash := header.BlockHash()
	err := s.submitHeader(&hash, header)
	result := ""
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingParent):
		result = "inconclusive"
	case errors.Is(err, ErrBlockRejected):
		result = rejectReason(err)
	default:
		return err
	}
	metrics.ObserveSubmission("header", result)
	return err
}

func (s *Service) submitHeader(hash *chainhash.Hash, header *wire.BlockHeader) error {
	if s.rejected.Contains(*hash) {
		return RejectError("duplicate-invalid")
	}
	if err := s.CheckHeader(header); err != nil {
		if errors.Is(err, ErrBlockRejected) {
			s.rejected.Put(*hash)
		}
		return err
	}
	err := s.cfg.Submitter.ProcessHeader(header)
	switch {
	case err == nil, errors.Is(err, ErrDuplicateBlock):
		return nil
	case errors.Is(err, ErrMissingParent):
		str := fmt.Sprintf("must submit previous header (%v) first",
			header.PrevBlock)
		return makeError(ErrMissingParent, str)
	case errors.Is(err, ErrBlockRejected):
		s.rejected.Put(*hash)
		return err
	}
	return classify(err)
}

// ProposeBlock validates a block proposal without its proof of work.  The
// result is empty when the block would be valid and otherwise one of
// "duplicate", "duplicate-invalid", "inconclusive-not-best-prevblk" or the
// rejection reason.
func (s *Service) ProposeBlock(block *wire.MsgBlock) (string, error) {
	if err := checkCoinbase(block); err != nil {
		return "", err
	}
	hash := block.BlockHash()
	if s.rejected.Contains(hash) {
		return "duplicate-invalid", nil
	}
	if s.cfg.Submitter.HaveBlock(&hash) {
		return "duplicate", nil
	}
	tip := s.cfg.Chain.Tip()
	if tip == nil || block.Header.PrevBlock != tip.Hash() {
		return "inconclusive-not-best-prevblk", nil
	}
	if _, err := pow.SelectAlgorithm(&block.Header); err != nil {
		return "", classify(err)
	}
	err := s.cfg.Submitter.CheckBlock(block)
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, ErrBlockRejected):
		return rejectReason(err), nil
	}
	return "", classify(err)
}

// PrioritiseTransaction adjusts the fee used to rank the transaction when
// building templates.  Cached templates are refreshed as for any other mempool
// change.
func (s *Service) PrioritiseTransaction(hash *chainhash.Hash, feeDelta btcutil.Amount) {
	s.cfg.TxSource.Prioritise(hash, feeDelta)
	s.cfg.Chain.BumpMempoolVersion()
	log.Debugf("Prioritised transaction %v by %v", hash, feeDelta)
}
