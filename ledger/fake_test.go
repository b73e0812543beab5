package ledger

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/require"

	"github.com/algorand-smc/smc/sigtemplates"
	"github.com/algorand-smc/smc/txbuilder"
)

func TestFakeLedgerAccountBalanceUnknown(t *testing.T) {
	l := NewFakeLedger(1000)
	var addr types.Address
	addr[0] = 1

	_, err := l.AccountBalance(context.Background(), addr)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestFakeLedgerFundAndIndexerLag(t *testing.T) {
	l := NewFakeLedger(1000)
	var addr types.Address
	addr[0] = 1

	l.FundWithIndexerLag(addr, 5000)

	bal, err := l.AccountBalance(context.Background(), addr)
	require.NoError(t, err)
	require.EqualValues(t, 5000, bal)

	has, err := l.IndexerHasAccount(context.Background(), addr)
	require.NoError(t, err)
	require.False(t, has, "indexer must not yet see the account before IndexCatchUp")

	l.IndexCatchUp(addr)
	has, err = l.IndexerHasAccount(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, has, "indexer must see the account after IndexCatchUp")
}

// buildFullySignedSettlement constructs a complete settlement envelope
// the way sender.Channel and recipient.Channel jointly would, so Submit
// exercises the same signature-checking path the real protocol relies
// on.
func buildFullySignedSettlement(t *testing.T, l *FakeLedger, senderAddr, recipientAddr types.Address, senderSK, recipientSK ed25519.PrivateKey, amount, minRefundBlock uint64) []byte {
	t.Helper()
	ctx := context.Background()

	tmpl, err := sigtemplates.BuildMultisig(ctx, l, sigtemplates.MultisigParams{
		SenderAddr:     senderAddr,
		RecipientAddr:  recipientAddr,
		Nonce:          1,
		MinRefundBlock: minRefundBlock,
		MaxRefundBlock: minRefundBlock + 100,
	})
	require.NoError(t, err)

	artifact, err := sigtemplates.CompileSettlementLsig(ctx, l, senderAddr, recipientAddr, amount, minRefundBlock)
	require.NoError(t, err)

	senderSub, err := sigtemplates.SignProgramSubsig(tmpl, artifact.Program, senderAddr, senderSK)
	require.NoError(t, err)
	recipientSub, err := sigtemplates.SignProgramSubsig(tmpl, artifact.Program, recipientAddr, recipientSK)
	require.NoError(t, err)

	lsig := sigtemplates.AssembleLogicSig(tmpl, artifact.Program, senderSub, recipientSub)

	sp, err := l.SuggestedParams(ctx)
	require.NoError(t, err)

	tx, err := txbuilder.BuildSettlementTxn(tmpl.Address, senderAddr, recipientAddr, amount, minRefundBlock, sp)
	require.NoError(t, err)

	return txbuilder.EncodeSignedLogicSigTxn(tx, lsig)
}

func TestFakeLedgerSubmitAppliesSettlement(t *testing.T) {
	l := NewFakeLedger(1000)
	ctx := context.Background()

	senderPub, senderSK, _ := ed25519.GenerateKey(nil)
	recipientPub, recipientSK, _ := ed25519.GenerateKey(nil)
	var senderAddr, recipientAddr types.Address
	copy(senderAddr[:], senderPub)
	copy(recipientAddr[:], recipientPub)

	envelope := buildFullySignedSettlement(t, l, senderAddr, recipientAddr, senderSK, recipientSK, 3000, 500)

	tmpl, err := sigtemplates.BuildMultisig(ctx, l, sigtemplates.MultisigParams{
		SenderAddr: senderAddr, RecipientAddr: recipientAddr,
		Nonce: 1, MinRefundBlock: 500, MaxRefundBlock: 600,
	})
	require.NoError(t, err)
	l.Fund(tmpl.Address, 10000)

	txid, err := l.Submit(ctx, envelope)
	require.NoError(t, err)
	require.NotEmpty(t, txid)

	require.NoError(t, l.AwaitConfirmation(ctx, txid))

	recipientBal, err := l.AccountBalance(ctx, recipientAddr)
	require.NoError(t, err)
	require.EqualValues(t, 3000, recipientBal)

	senderBal, err := l.AccountBalance(ctx, senderAddr)
	require.NoError(t, err)
	require.EqualValues(t, 10000-3000-1000, senderBal, "sender (close-remainder-to) balance")

	multisigBal, _ := l.AccountBalance(ctx, tmpl.Address)
	require.Zero(t, multisigBal, "multisig balance after close-out")
}

func TestFakeLedgerSubmitRejectsOverspend(t *testing.T) {
	l := NewFakeLedger(1000)

	senderPub, senderSK, _ := ed25519.GenerateKey(nil)
	recipientPub, recipientSK, _ := ed25519.GenerateKey(nil)
	var senderAddr, recipientAddr types.Address
	copy(senderAddr[:], senderPub)
	copy(recipientAddr[:], recipientPub)

	envelope := buildFullySignedSettlement(t, l, senderAddr, recipientAddr, senderSK, recipientSK, 3000, 500)

	ctx := context.Background()
	tmpl, err := sigtemplates.BuildMultisig(ctx, l, sigtemplates.MultisigParams{
		SenderAddr: senderAddr, RecipientAddr: recipientAddr,
		Nonce: 1, MinRefundBlock: 500, MaxRefundBlock: 600,
	})
	require.NoError(t, err)
	l.Fund(tmpl.Address, 1000)

	_, err = l.Submit(ctx, envelope)
	require.ErrorIs(t, err, ErrOverspendRejected)
}

func TestFakeLedgerSubmitRejectsBadSubsignature(t *testing.T) {
	l := NewFakeLedger(1000)
	ctx := context.Background()

	senderPub, senderSK, _ := ed25519.GenerateKey(nil)
	recipientPub, _, _ := ed25519.GenerateKey(nil)
	_, impostorSK, _ := ed25519.GenerateKey(nil)
	var senderAddr, recipientAddr types.Address
	copy(senderAddr[:], senderPub)
	copy(recipientAddr[:], recipientPub)

	tmpl, err := sigtemplates.BuildMultisig(ctx, l, sigtemplates.MultisigParams{
		SenderAddr: senderAddr, RecipientAddr: recipientAddr,
		Nonce: 1, MinRefundBlock: 500, MaxRefundBlock: 600,
	})
	require.NoError(t, err)
	l.Fund(tmpl.Address, 10000)

	artifact, err := sigtemplates.CompileSettlementLsig(ctx, l, senderAddr, recipientAddr, 3000, 500)
	require.NoError(t, err)

	senderSub, err := sigtemplates.SignProgramSubsig(tmpl, artifact.Program, senderAddr, senderSK)
	require.NoError(t, err)
	// Sign with the wrong key but claim the recipient's address, the way
	// a forged subsignature would.
	forgedSig := ed25519.Sign(impostorSK, append([]byte("Program"), artifact.Program...))
	var forged types.Signature
	copy(forged[:], forgedSig)
	recipientSub := types.MultisigSubsig{Key: recipientAddr, Sig: forged}

	lsig := sigtemplates.AssembleLogicSig(tmpl, artifact.Program, senderSub, recipientSub)

	sp, err := l.SuggestedParams(ctx)
	require.NoError(t, err)
	tx, err := txbuilder.BuildSettlementTxn(tmpl.Address, senderAddr, recipientAddr, 3000, 500, sp)
	require.NoError(t, err)
	envelope := txbuilder.EncodeSignedLogicSigTxn(tx, lsig)

	_, err = l.Submit(ctx, envelope)
	require.Error(t, err, "expected Submit to reject a forged subsignature")
}
