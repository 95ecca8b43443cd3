// Copyright (c) 2020 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"
	"fmt"
	"testing"
)

// TestTxRuleErrorKinds ensures rule errors keep their description as the
// message and expose their kind through errors.Is and errors.As, including
// when wrapped by callers.
func TestTxRuleErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		target     error
		wantMatch  bool
		wantKind   ErrorKind
		wantMsg    string
		wantPolicy bool
	}{{
		name:      "bare kind",
		err:       ErrDuplicate,
		target:    ErrDuplicate,
		wantMatch: true,
		wantKind:  ErrDuplicate,
		wantMsg:   "ErrDuplicate",
	}, {
		name:      "rule error matches its kind",
		err:       txRuleError(ErrOrphan, "spends unknown output"),
		target:    ErrOrphan,
		wantMatch: true,
		wantKind:  ErrOrphan,
		wantMsg:   "spends unknown output",
	}, {
		name:      "rule error does not match another kind",
		err:       txRuleError(ErrOrphan, "spends unknown output"),
		target:    ErrMempoolDoubleSpend,
		wantMatch: false,
		wantKind:  ErrOrphan,
		wantMsg:   "spends unknown output",
	}, {
		name:       "wrapped policy error",
		err:        fmt.Errorf("rejected: %w", txRuleError(ErrDustOutput, "dust")),
		target:     ErrDustOutput,
		wantMatch:  true,
		wantKind:   ErrDustOutput,
		wantMsg:    "rejected: dust",
		wantPolicy: true,
	}, {
		name:       "fee policy",
		err:        txRuleError(ErrInsufficientFee, "fee too low"),
		target:     ErrInsufficientFee,
		wantMatch:  true,
		wantKind:   ErrInsufficientFee,
		wantMsg:    "fee too low",
		wantPolicy: true,
	}}

	for _, test := range tests {
		if got := errors.Is(test.err, test.target); got != test.wantMatch {
			t.Errorf("%s: errors.Is got %v, want %v", test.name, got,
				test.wantMatch)
			continue
		}
		if got := test.err.Error(); got != test.wantMsg {
			t.Errorf("%s: message got %q, want %q", test.name, got,
				test.wantMsg)
			continue
		}
		var kind ErrorKind
		if !errors.As(test.err, &kind) {
			t.Errorf("%s: unable to unwrap to error kind", test.name)
			continue
		}
		if kind != test.wantKind {
			t.Errorf("%s: kind got %v, want %v", test.name, kind,
				test.wantKind)
			continue
		}
		if kind.IsPolicy() != test.wantPolicy {
			t.Errorf("%s: policy got %v, want %v", test.name,
				kind.IsPolicy(), test.wantPolicy)
		}
	}
}
