package txbuilder

import (
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeSignedLogicSigTxnRoundTrip(t *testing.T) {
	multisig, sender, recipient := testAddr(1), testAddr(2), testAddr(3)
	sp := baseParams()

	tx, err := BuildSettlementTxn(multisig, sender, recipient, 500, 600, sp)
	require.NoError(t, err)

	lsig := types.LogicSig{
		Logic: []byte("fake compiled program"),
		Msig: types.MultisigSig{
			Version:   1,
			Threshold: 2,
			Subsigs: []types.MultisigSubsig{
				{Key: sender},
				{Key: recipient},
			},
		},
	}

	encoded := EncodeSignedLogicSigTxn(tx, lsig)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeSignedLogicSigTxn(encoded)
	require.NoError(t, err)

	require.Equal(t, tx.Amount, decoded.Txn.Amount)
	require.EqualValues(t, 2, decoded.Lsig.Msig.Threshold)
	require.Len(t, decoded.Lsig.Msig.Subsigs, 2)
}

func TestDecodeSignedLogicSigTxnRejectsTruncatedInput(t *testing.T) {
	multisig, sender, recipient := testAddr(1), testAddr(2), testAddr(3)
	sp := baseParams()
	tx, err := BuildSettlementTxn(multisig, sender, recipient, 500, 600, sp)
	require.NoError(t, err)

	encoded := EncodeSignedLogicSigTxn(tx, types.LogicSig{})
	truncated := encoded[:len(encoded)/2]

	_, err = DecodeSignedLogicSigTxn(truncated)
	require.Error(t, err, "expected an error decoding a truncated envelope")
}
