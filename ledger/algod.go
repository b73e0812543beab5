package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// confirmationPollInterval is how often AwaitConfirmation re-checks a
// pending transaction's status. Grounded on
// original_source/algorandsmc/utils.py's use of a plain sandbox client
// with no built-in wait-for-confirmation helper, extended with the
// polling loop algod clients conventionally wrap around
// PendingTransactionInformation.
const confirmationPollInterval = time.Second

// AlgodLedger implements Ledger against a live algod node, using the
// indexer only for the lagging existence check IndexerHasAccount needs.
type AlgodLedger struct {
	Algod   *algod.Client
	Indexer *indexer.Client
}

// NewAlgodLedger wires an AlgodLedger from already-constructed SDK
// clients, mirroring original_source/algorandsmc/utils.py's
// get_sandbox_algod/get_sandbox_indexer factory pair.
func NewAlgodLedger(algodClient *algod.Client, indexerClient *indexer.Client) *AlgodLedger {
	return &AlgodLedger{Algod: algodClient, Indexer: indexerClient}
}

// Status implements Ledger.
func (l *AlgodLedger) Status(ctx context.Context) (Status, error) {
	resp, err := l.Algod.Status().Do(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("algod status: %w", err)
	}
	return Status{LastRound: resp.LastRound}, nil
}

// AccountBalance implements Ledger.
func (l *AlgodLedger) AccountBalance(ctx context.Context, addr types.Address) (uint64, error) {
	info, err := l.Algod.AccountInformation(addr.String()).Do(ctx)
	if err != nil {
		if isNotFoundErr(err) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("algod account information: %w", err)
	}
	return info.Amount, nil
}

// IndexerHasAccount implements Ledger.
func (l *AlgodLedger) IndexerHasAccount(ctx context.Context, addr types.Address) (bool, error) {
	_, resp, err := l.Indexer.LookupAccountByID(addr.String()).Do(ctx)
	if err != nil {
		if isNotFoundErr(err) {
			return false, nil
		}
		return false, fmt.Errorf("indexer account lookup: %w", err)
	}
	return resp.Address == addr.String(), nil
}

// SuggestedParams implements Ledger.
func (l *AlgodLedger) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	sp, err := l.Algod.SuggestedParams().Do(ctx)
	if err != nil {
		return types.SuggestedParams{}, fmt.Errorf("algod suggested params: %w", err)
	}
	return sp, nil
}

// Submit implements Ledger.
func (l *AlgodLedger) Submit(ctx context.Context, signedTxn []byte) (string, error) {
	txid, err := l.Algod.SendRawTransaction(signedTxn).Do(ctx)
	if err != nil {
		if isOverspendErr(err) {
			return "", ErrOverspendRejected
		}
		return "", fmt.Errorf("algod submit: %w", err)
	}
	return txid, nil
}

// AwaitConfirmation implements Ledger.
func (l *AlgodLedger) AwaitConfirmation(ctx context.Context, txid string) error {
	ticker := time.NewTicker(confirmationPollInterval)
	defer ticker.Stop()

	for {
		info, _, err := l.Algod.PendingTransactionInformation(txid).Do(ctx)
		if err != nil {
			if isOverspendErr(err) {
				return ErrOverspendRejected
			}
			return fmt.Errorf("algod pending transaction info: %w", err)
		}

		if info.ConfirmedRound > 0 {
			return nil
		}
		if info.PoolError != "" {
			return fmt.Errorf("transaction %s rejected from pool: %s", txid, info.PoolError)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CompileProgram implements Ledger.
func (l *AlgodLedger) CompileProgram(ctx context.Context, source []byte) (bytecode []byte, address string, err error) {
	resp, err := l.Algod.TealCompile(source).Do(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("algod teal compile: %w", err)
	}

	bytecode, err = base64.StdEncoding.DecodeString(resp.Result)
	if err != nil {
		return nil, "", fmt.Errorf("decoding compiled program: %w", err)
	}

	return bytecode, resp.Hash, nil
}

func isNotFoundErr(err error) bool {
	return strings.Contains(err.Error(), "404") || strings.Contains(strings.ToLower(err.Error()), "no accounts found")
}

func isOverspendErr(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "overspend")
}
