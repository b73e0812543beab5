package txbuilder

import (
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/require"
)

func testAddr(seed byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = seed
	}
	return addr
}

func baseParams() types.SuggestedParams {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = 0x42
	}
	return types.SuggestedParams{
		Fee:              0,
		MinFee:           1000,
		GenesisID:        "testnet-v1.0",
		GenesisHash:      hash,
		FirstRoundValid:  100,
		LastRoundValid:   1100,
		ConsensusVersion: "future",
		FlatFee:          true,
	}
}

func TestBuildSettlementTxnClampsLastValid(t *testing.T) {
	multisig, sender, recipient := testAddr(1), testAddr(2), testAddr(3)
	sp := baseParams()

	tx, err := BuildSettlementTxn(multisig, sender, recipient, 500, 600, sp)
	require.NoError(t, err)
	require.Less(t, uint64(tx.LastValid), uint64(600), "LastValid must be clamped below min_refund_block 600")
	require.EqualValues(t, 599, tx.LastValid, "LastValid must be min_refund_block - 1")
}

func TestBuildSettlementTxnRejectsNoRoom(t *testing.T) {
	multisig, sender, recipient := testAddr(1), testAddr(2), testAddr(3)
	sp := baseParams()
	sp.FirstRoundValid = 700

	_, err := BuildSettlementTxn(multisig, sender, recipient, 500, 600, sp)
	require.Error(t, err, "expected an error when first_valid is already at or past min_refund_block")
}

func TestBuildSettlementTxnRejectsExcessiveFee(t *testing.T) {
	multisig, sender, recipient := testAddr(1), testAddr(2), testAddr(3)
	sp := baseParams()
	sp.MinFee = maxReasonableFee + 1

	_, err := BuildSettlementTxn(multisig, sender, recipient, 500, 600, sp)
	require.Error(t, err, "expected an error when the suggested fee exceeds the safety ceiling")
}

func TestBuildRefundTxnClampsToWindow(t *testing.T) {
	multisig, sender := testAddr(1), testAddr(2)
	sp := baseParams()
	sp.FirstRoundValid = 50
	sp.LastRoundValid = 2000

	tx, err := BuildRefundTxn(multisig, sender, 100, 900, sp)
	require.NoError(t, err)
	require.EqualValues(t, 100, tx.FirstValid, "FirstValid must clamp to min_refund_block 100")
	require.EqualValues(t, 900, tx.LastValid, "LastValid must clamp to max_refund_block 900")
}

func TestBuildRefundTxnRejectsEmptyWindow(t *testing.T) {
	multisig, sender := testAddr(1), testAddr(2)
	sp := baseParams()
	sp.FirstRoundValid = 50
	sp.LastRoundValid = 90

	_, err := BuildRefundTxn(multisig, sender, 100, 900, sp)
	require.Error(t, err, "expected an error when the clamped refund window is empty")
}

func TestBuildRefundTxnRejectsExcessiveFee(t *testing.T) {
	multisig, sender := testAddr(1), testAddr(2)
	sp := baseParams()
	sp.MinFee = maxReasonableFee + 1

	_, err := BuildRefundTxn(multisig, sender, 100, 900, sp)
	require.Error(t, err, "expected an error when the suggested fee exceeds the safety ceiling")
}
