package ledger

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/algorand-smc/smc/sigtemplates"
	"github.com/algorand-smc/smc/txbuilder"
)

// FakeLedger is an in-memory Ledger double used by the sender/recipient
// test suites to drive spec.md §8's end-to-end scenarios without a live
// algod node. Grounded on lnwallet/wallet_test.go's style of a
// hand-rolled backend fake rather than a mock-generator, since no
// pack library offers a narrower substitute for a from-scratch ledger
// model.
type FakeLedger struct {
	mu sync.Mutex

	round     uint64
	balances  map[types.Address]uint64
	indexedAt map[types.Address]struct{}
	confirmed map[string]bool
	feeUnit   uint64
}

// NewFakeLedger returns a FakeLedger starting at round 1 with the given
// per-transaction fee unit (spec.md's "minimum transaction fee").
func NewFakeLedger(feeUnit uint64) *FakeLedger {
	return &FakeLedger{
		round:     1,
		balances:  make(map[types.Address]uint64),
		indexedAt: make(map[types.Address]struct{}),
		confirmed: make(map[string]bool),
		feeUnit:   feeUnit,
	}
}

// AdvanceRound moves the fake chain forward by n rounds, the test
// analogue of demos/block_loop.py's periodic dummy transaction.
func (f *FakeLedger) AdvanceRound(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.round += n
}

// Fund credits addr by amount and immediately makes it visible to both
// the "algod" and "indexer" views; FundWithIndexerLag is the variant
// that leaves the indexer view behind.
func (f *FakeLedger) Fund(addr types.Address, amount uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] += amount
	f.indexedAt[addr] = struct{}{}
}

// FundWithIndexerLag credits addr like Fund, but leaves it absent from
// IndexerHasAccount until IndexCatchUp is called, modeling the
// indexer-lag open question in spec.md §9.
func (f *FakeLedger) FundWithIndexerLag(addr types.Address, amount uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] += amount
}

// IndexCatchUp makes addr visible to IndexerHasAccount.
func (f *FakeLedger) IndexCatchUp(addr types.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexedAt[addr] = struct{}{}
}

// Status implements Ledger.
func (f *FakeLedger) Status(ctx context.Context) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{LastRound: f.round}, nil
}

// AccountBalance implements Ledger.
func (f *FakeLedger) AccountBalance(ctx context.Context, addr types.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal, ok := f.balances[addr]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return bal, nil
}

// IndexerHasAccount implements Ledger.
func (f *FakeLedger) IndexerHasAccount(ctx context.Context, addr types.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.indexedAt[addr]
	return ok, nil
}

// SuggestedParams implements Ledger.
func (f *FakeLedger) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.SuggestedParams{
		Fee:             types.MicroAlgos(f.feeUnit),
		MinFee:          f.feeUnit,
		FirstRoundValid: types.Round(f.round),
		LastRoundValid:  types.Round(f.round + 1000),
		FlatFee:         true,
	}, nil
}

// Submit implements Ledger. It decodes the same msgpack SignedTxn
// envelope algod would receive (see txbuilder.EncodeSignedLogicSigTxn),
// checks the delegated logic-sig's multisig subsignatures the way algod
// itself would, then applies the payment the way the real network
// would: close-remainder-to sweeps whatever is left after amount and
// fee, exactly the settlement/refund race in spec.md §4.5 depends on.
func (f *FakeLedger) Submit(ctx context.Context, signedTxn []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stx, err := txbuilder.DecodeSignedLogicSigTxn(signedTxn)
	if err != nil {
		return "", fmt.Errorf("fake ledger: decoding signed transaction: %w", err)
	}

	if !sigtemplates.IsFullySigned(stx.Lsig) {
		return "", fmt.Errorf("fake ledger: logic-sig is not fully signed")
	}
	for _, sub := range stx.Lsig.Msig.Subsigs {
		if sub.Sig == (types.Signature{}) {
			continue
		}
		if !sigtemplates.VerifyProgramSubsig(stx.Lsig.Logic, sub.Key, sub) {
			return "", fmt.Errorf("fake ledger: invalid subsignature from %s", sub.Key)
		}
	}

	tx := stx.Txn
	fromBal := f.balances[tx.Sender]
	fee := uint64(tx.Fee)
	amount := uint64(tx.Amount)
	if amount+fee > fromBal {
		return "", ErrOverspendRejected
	}

	f.balances[tx.Receiver] += amount
	if tx.CloseRemainderTo != (types.Address{}) {
		remainder := fromBal - amount - fee
		f.balances[tx.CloseRemainderTo] += remainder
		f.balances[tx.Sender] = 0
	} else {
		f.balances[tx.Sender] = fromBal - amount - fee
	}
	f.indexedAt[tx.Receiver] = struct{}{}

	sum := sha512.Sum512_256(signedTxn)
	txid := hex.EncodeToString(sum[:])
	f.confirmed[txid] = true
	return txid, nil
}

// AwaitConfirmation implements Ledger. Submissions against FakeLedger
// are confirmed synchronously, so this only validates the txid is
// known.
func (f *FakeLedger) AwaitConfirmation(ctx context.Context, txid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.confirmed[txid] {
		return fmt.Errorf("fake ledger: unknown txid %s", txid)
	}
	return nil
}

// programAddrDomain is the same "Program" domain separator algod
// prepends before hashing a logic-sig's bytecode into its escrow
// address (SHA512/256("Program" || bytecode)).
var programAddrDomain = []byte("Program")

// CompileProgram implements Ledger. It derives the program's escrow
// address exactly as algod does, so that distinct programs (and
// therefore distinct ChannelParameters, per P3) always derive distinct
// addresses, without invoking a real TEAL assembler -- the fake ledger
// treats source as if it were already bytecode.
func (f *FakeLedger) CompileProgram(ctx context.Context, source []byte) ([]byte, string, error) {
	sum := sha512.Sum512_256(append(append([]byte{}, programAddrDomain...), source...))
	var addr types.Address
	copy(addr[:], sum[:])
	return source, addr.String(), nil
}
