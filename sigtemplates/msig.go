package sigtemplates

import (
	"context"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// msigVersion is the multisig account version understood by the
// algod/indexer address-derivation algorithm. Algorand has only ever
// shipped version 1.
const msigVersion = 1

// msigThreshold is the number of subsignatures required to spend from
// the shared account: the sender's and the recipient's. The third
// signer (the unsatisfiable contract account) never signs anything; its
// sole purpose is to fold the channel parameters into the address.
const msigThreshold = 2

// ProgramCompiler is the minimal capability sigtemplates needs from a
// ledger node: turning TEAL source into bytecode plus its escrow
// address. ledger.Ledger satisfies this narrow interface, following
// lnwallet.BlockChainIO's pattern of depending on the smallest surface
// a package actually uses rather than the full node client.
type ProgramCompiler interface {
	CompileProgram(ctx context.Context, source []byte) (bytecode []byte, address string, err error)
}

// contractProgram returns the TEAL source for channel C, the
// unsatisfiable smart-signature account whose only role is to commit
// the full parameter tuple into a distinct address. It always fails
// evaluation (it leaves more than one value on the stack), so it can
// never actually authorize a spend; see spec.md §4.1.
//
// Grounded on original_source/algorandsmc/templates/msig.py's teal
// snippet. Only (nonce, min_refund_block, max_refund_block) go into C's
// program; the sender and recipient addresses are bound by the 2-of-3
// multisig's participant list instead.
func contractProgram(params smcParams) string {
	return strings.Join([]string{
		"#pragma version 2",
		fmt.Sprintf("int %d", params.Nonce),
		fmt.Sprintf("int %d", params.MinRefundBlock),
		fmt.Sprintf("int %d", params.MaxRefundBlock),
		"int 0",
	}, "\n")
}

// smcParams mirrors the fields of smc.ChannelParameters, duplicated
// locally so that sigtemplates does not import the root smc package.
// Callers pass the fields out of smc.ChannelParameters directly.
type smcParams struct {
	SenderAddr     types.Address
	RecipientAddr  types.Address
	Nonce          uint64
	MinRefundBlock uint64
	MaxRefundBlock uint64
}

// MultisigParams mirrors smc.ChannelParameters; it exists so callers
// holding an smc.ChannelParameters can pass its fields by value without
// sigtemplates importing smc.
type MultisigParams = smcParams

// MultisigTemplate bundles the derived multisig account with the
// ordered participant list it was built from. The order
// [sender, recipient, contract] must be preserved whenever a
// subsignature is assembled, since a multisig signature is positional.
type MultisigTemplate struct {
	Account      crypto.MultisigAccount
	Participants []types.Address
	Address      types.Address
}

// BuildMultisig derives the 2-of-3 multisig account shared between
// sender and recipient for the given channel parameters. The third
// signer is the address of the unsatisfiable contract account described
// by contractProgram, which folds (nonce, min_refund_block,
// max_refund_block) into the multisig address. Two distinct parameter
// tuples therefore always derive distinct addresses (P3, spec.md §8).
func BuildMultisig(ctx context.Context, compiler ProgramCompiler, params MultisigParams) (MultisigTemplate, error) {
	_, contractAddrStr, err := compiler.CompileProgram(ctx, []byte(contractProgram(params)))
	if err != nil {
		return MultisigTemplate{}, fmt.Errorf("compiling contract program: %w", err)
	}

	contractAddr, err := types.DecodeAddress(contractAddrStr)
	if err != nil {
		return MultisigTemplate{}, fmt.Errorf("decoding contract address: %w", err)
	}

	participants := []types.Address{
		params.SenderAddr, params.RecipientAddr, contractAddr,
	}

	msig, err := crypto.MultisigAccountWithParams(
		msigVersion, msigThreshold, participants,
	)
	if err != nil {
		return MultisigTemplate{}, fmt.Errorf("building multisig account: %w", err)
	}

	addr, err := msig.Address()
	if err != nil {
		return MultisigTemplate{}, fmt.Errorf("deriving multisig address: %w", err)
	}

	log.Debugf("derived multisig %s for nonce=%d window=[%d,%d]",
		addr, params.Nonce, params.MinRefundBlock, params.MaxRefundBlock)

	return MultisigTemplate{
		Account:      msig,
		Participants: participants,
		Address:      addr,
	}, nil
}
