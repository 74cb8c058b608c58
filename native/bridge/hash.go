package bridge

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// HashEntries computes the content address of a batch: keccak256 over the
// canonical RLP encoding of the ordered entry list. Two batches with
// identical entries in identical order share a hash and therefore an
// identity.
func HashEntries(entries []EnergyEntry) ([32]byte, error) {
	var hash [32]byte
	stored, err := toStoredEntries(entries)
	if err != nil {
		return hash, err
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return hash, err
	}
	copy(hash[:], ethcrypto.Keccak256(encoded))
	return hash, nil
}

// ProofResultHash computes the expected consensus result hash for a round:
// keccak256 over the big-endian round id concatenated with the batch hash.
func ProofResultHash(roundID uint64, batchHash [32]byte) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], roundID)
	var hash [32]byte
	copy(hash[:], ethcrypto.Keccak256(buf[:], batchHash[:]))
	return hash
}
