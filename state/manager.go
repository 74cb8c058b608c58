package state

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"carbonbridge/storage"
)

// Manager provides the persistence surface shared by the native module
// engines: an RLP-encoded key-value store, the role membership table and the
// module pause registry. Engines never depend on the Manager type directly,
// only on the narrow interfaces they declare.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	rolePrefix  = []byte("role:")
	pausePrefix = []byte("pause:")
	kvPrefix    = []byte("kv:")
)

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func pauseKey(module string) []byte {
	buf := make([]byte, len(pausePrefix)+len(module))
	copy(buf, pausePrefix)
	copy(buf[len(pausePrefix):], module)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	buf := make([]byte, len(kvPrefix)+len(key))
	copy(buf, kvPrefix)
	copy(buf[len(kvPrefix):], key)
	return ethcrypto.Keccak256(buf)
}

// KVPut stores the RLP encoding of value under the hashed key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not configured")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet decodes the stored value into out and reports whether the key was
// present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, fmt.Errorf("state: manager not configured")
	}
	data, err := m.db.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes a stored value if present.
func (m *Manager) KVDelete(key []byte) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not configured")
	}
	return m.db.Delete(kvKey(key))
}

// SetRole associates an address with the specified role. Duplicate
// assignments are ignored while the stored list remains sorted for
// determinism.
func (m *Manager) SetRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	if addr == ([20]byte{}) {
		return fmt.Errorf("state: address must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr[:]) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr[:]...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.db.Put(roleKey(trimmed), encoded)
}

// UnsetRole removes an address from a role. Removing an address that was
// never assigned is a no-op.
func (m *Manager) UnsetRole(role string, addr [20]byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("state: role must not be empty")
	}
	members, err := m.roleMembers(trimmed)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr[:]) {
			filtered = append(filtered, existing)
		}
	}
	encoded, err := rlp.EncodeToBytes(filtered)
	if err != nil {
		return err
	}
	return m.db.Put(roleKey(trimmed), encoded)
}

func (m *Manager) roleMembers(role string) ([][]byte, error) {
	data, err := m.db.Get(roleKey(role))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][20]byte, error) {
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(members))
	for _, member := range members {
		if len(member) != 20 {
			continue
		}
		var addr [20]byte
		copy(addr[:], member)
		out = append(out, addr)
	}
	return out, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a
// false return, matching the best-effort semantics required by the callers.
func (m *Manager) HasRole(role string, addr [20]byte) bool {
	if m == nil || m.db == nil || addr == ([20]byte{}) {
		return false
	}
	members, err := m.roleMembers(strings.TrimSpace(role))
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr[:]) {
			return true
		}
	}
	return false
}

// Pause marks a module as halted for state-mutating operations.
func (m *Manager) Pause(module string) error {
	trimmed := strings.TrimSpace(module)
	if trimmed == "" {
		return fmt.Errorf("state: module must not be empty")
	}
	return m.db.Put(pauseKey(trimmed), []byte{1})
}

// Resume clears a module pause flag.
func (m *Manager) Resume(module string) error {
	trimmed := strings.TrimSpace(module)
	if trimmed == "" {
		return fmt.Errorf("state: module must not be empty")
	}
	return m.db.Delete(pauseKey(trimmed))
}

// IsPaused reports whether a module is currently halted.
func (m *Manager) IsPaused(module string) bool {
	if m == nil || m.db == nil {
		return false
	}
	data, err := m.db.Get(pauseKey(strings.TrimSpace(module)))
	if err != nil {
		return false
	}
	return len(data) > 0 && data[0] == 1
}
