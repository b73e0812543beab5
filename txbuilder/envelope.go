package txbuilder

import (
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// EncodeSignedLogicSigTxn wraps tx and its authorizing (possibly
// multisig-delegated) logic-signature into the msgpack-encoded
// SignedTxn envelope algod accepts on its raw-transaction submission
// endpoint.
func EncodeSignedLogicSigTxn(tx types.Transaction, lsig types.LogicSig) []byte {
	stx := types.SignedTxn{Txn: tx, Lsig: lsig}
	return msgpack.Encode(&stx)
}

// DecodeSignedLogicSigTxn is the inverse of
// EncodeSignedLogicSigTxn, used by test ledgers that stand in for
// algod's raw-transaction endpoint.
func DecodeSignedLogicSigTxn(b []byte) (types.SignedTxn, error) {
	var stx types.SignedTxn
	if err := msgpack.Decode(b, &stx); err != nil {
		return types.SignedTxn{}, err
	}
	return stx, nil
}
