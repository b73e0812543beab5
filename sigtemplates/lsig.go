package sigtemplates

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/crypto/ed25519"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// programSigDomain is the literal prefix Algorand prepends to a
// logic-sig's bytecode before ed25519-signing it for delegation to an
// account. This is protocol-level, not an SDK helper: every
// implementation (algod, goal, the SDKs) signs exactly "Program" +
// bytecode so that a delegated signature can never be replayed as a
// signature over a transaction or vice versa.
var programSigDomain = []byte("Program")

// Artifact is a compiled logic-signature template: its bytecode and the
// TEAL source it was compiled from. The escrow address the compiler
// reports is not kept, since the settlement/refund artifacts here are
// always delegated to the shared multisig, never spent from directly
// via their own escrow address.
type Artifact struct {
	Program []byte
	TEAL    string
}

// CompileSettlementLsig compiles the settlement predicate for
// (sender, recipient, cumulativeAmount, minRefundBlock) described in
// spec.md §4.1.
func CompileSettlementLsig(ctx context.Context, compiler ProgramCompiler, sender, recipient types.Address, cumulativeAmount, minRefundBlock uint64) (Artifact, error) {
	teal := settlementProgram(recipient.String(), sender.String(), cumulativeAmount, minRefundBlock)

	bytecode, _, err := compiler.CompileProgram(ctx, []byte(teal))
	if err != nil {
		return Artifact{}, fmt.Errorf("compiling settlement lsig: %w", err)
	}

	return Artifact{Program: bytecode, TEAL: teal}, nil
}

// CompileRefundLsig compiles the refund predicate for
// (sender, minRefundBlock, maxRefundBlock) described in spec.md §4.1.
func CompileRefundLsig(ctx context.Context, compiler ProgramCompiler, sender types.Address, minRefundBlock, maxRefundBlock uint64) (Artifact, error) {
	teal := refundProgram(sender.String(), minRefundBlock, maxRefundBlock)

	bytecode, _, err := compiler.CompileProgram(ctx, []byte(teal))
	if err != nil {
		return Artifact{}, fmt.Errorf("compiling refund lsig: %w", err)
	}

	return Artifact{Program: bytecode, TEAL: teal}, nil
}

// SignProgramSubsig produces signerAddr's contribution to a
// multisig-delegated logic-signature over the given compiled program.
// signerAddr must be one of tmpl.Participants; the contract
// participant, whose private key nobody holds, can never produce one --
// that slot is always left empty, which is exactly what makes the
// contract account "provably inert" per spec.md §4.1.
func SignProgramSubsig(tmpl MultisigTemplate, program []byte, signerAddr types.Address, signerSK ed25519.PrivateKey) (types.MultisigSubsig, error) {
	if !participates(tmpl, signerAddr) {
		return types.MultisigSubsig{}, fmt.Errorf("address %s is not a participant in this multisig", signerAddr)
	}

	msg := append(append([]byte{}, programSigDomain...), program...)
	sig := ed25519.Sign(signerSK, msg)

	var typesSig types.Signature
	copy(typesSig[:], sig)

	return types.MultisigSubsig{Key: signerAddr, Sig: typesSig}, nil
}

// VerifyProgramSubsig checks that subsig is a valid delegation by
// signerAddr of program, without requiring the rest of the multisig
// signature set to be present. The recipient uses this to validate the
// sender's settlement subsignature on each payment (spec.md §4.5); the
// recipient never needs to validate its own subsignature since it
// always mints a correct one.
func VerifyProgramSubsig(program []byte, signerAddr types.Address, subsig types.MultisigSubsig) bool {
	if subsig.Key != signerAddr {
		return false
	}
	msg := append(append([]byte{}, programSigDomain...), program...)
	return ed25519.Verify(signerAddr[:], msg, subsig.Sig[:])
}

// AssembleLogicSig builds the fully positioned types.LogicSig for
// program, given a (possibly partial) set of subsignatures. Any
// participant without a matching entry in subsigs is left with a
// zero-value Sig, mirroring how the real SDK's
// crypto.MergeMultisigTransactions leaves a signer's slot zeroed until
// that signer contributes.
func AssembleLogicSig(tmpl MultisigTemplate, program []byte, subsigs ...types.MultisigSubsig) types.LogicSig {
	full := make([]types.MultisigSubsig, len(tmpl.Participants))
	for i, addr := range tmpl.Participants {
		full[i] = types.MultisigSubsig{Key: addr}
		for _, s := range subsigs {
			if s.Key == addr {
				full[i].Sig = s.Sig
			}
		}
	}

	return types.LogicSig{
		Logic: program,
		Msig: types.MultisigSig{
			Version:   msigVersion,
			Threshold: msigThreshold,
			Subsigs:   full,
		},
	}
}

// IsFullySigned reports whether lsig carries at least Threshold
// non-zero subsignatures.
func IsFullySigned(lsig types.LogicSig) bool {
	var zero types.Signature
	count := 0
	for _, s := range lsig.Msig.Subsigs {
		if !bytes.Equal(s.Sig[:], zero[:]) {
			count++
		}
	}
	return count >= int(lsig.Msig.Threshold)
}

func participates(tmpl MultisigTemplate, addr types.Address) bool {
	for _, p := range tmpl.Participants {
		if p == addr {
			return true
		}
	}
	return false
}
