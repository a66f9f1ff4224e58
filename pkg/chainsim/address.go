package chainsim

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Domain-separation tags, mixed into every hash input so that a salt
// computed for one artifact class or purpose can never collide with another
// (spec.md §6: "H is SHA-256 with domain separation").
const (
	tagProgramArtifact = "corechain/program-artifact/v1"
	tagBridgeProxy      = "corechain/bridge-proxy/v1"
)

// Canonical normalizes an address for use as deriveAddr's creator input,
// matching the "canonical(creator)" call in spec.md's address-derivation
// formulas.
func Canonical(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ProgramArtifactSalt computes salt = H(name ‖ id_decimal ‖ extra_tag ‖
// registry_addr) for an in-program artifact (authorization contract,
// processor, account, or library), per spec.md §6.
func ProgramArtifactSalt(name string, id uint64, extraTag string, registryAddr string) []byte {
	h := sha256.New()
	h.Write([]byte(tagProgramArtifact))
	h.Write([]byte{0})
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(id, 10)))
	h.Write([]byte{0})
	h.Write([]byte(extraTag))
	h.Write([]byte{0})
	h.Write([]byte(registryAddr))
	return h.Sum(nil)
}

// BridgeProxySalt computes salt = H512(connection_id ‖ remote_port ‖
// local_address) for a bridge proxy address, per spec.md §6.
func BridgeProxySalt(connectionId, remotePort, localAddress string) []byte {
	h := sha512.New()
	h.Write([]byte(tagBridgeProxy))
	h.Write([]byte{0})
	h.Write([]byte(connectionId))
	h.Write([]byte{0})
	h.Write([]byte(remotePort))
	h.Write([]byte{0})
	h.Write([]byte(localAddress))
	return h.Sum(nil)
}

// DeriveAddr is the target domain's deterministic-instantiation primitive:
// addr = deriveAddr(code_hash, canonical(creator), salt). chainsim's
// implementation (no real chain being in scope) is itself a domain-separated
// SHA-256 composition; any production ChainAdapter must replace this with
// the real chain's instantiate2/create2-style primitive while keeping the
// same (code_hash, creator, salt) inputs.
func DeriveAddr(codeHash []byte, creatorCanonical string, salt []byte) string {
	h := sha256.New()
	h.Write([]byte("corechain/derive-addr/v1"))
	h.Write([]byte{0})
	h.Write(codeHash)
	h.Write([]byte{0})
	h.Write([]byte(creatorCanonical))
	h.Write([]byte{0})
	h.Write(salt)
	return fmt.Sprintf("sim1%s", hex.EncodeToString(h.Sum(nil))[:38])
}

// ArtifactKind tags the class of on-chain artifact an address resolves to,
// used by the instantiator's verification step (spec.md §4.5 step 10).
type ArtifactKind uint8

const (
	ArtifactAuthorization ArtifactKind = iota
	ArtifactProcessor
	ArtifactAccount
	ArtifactLibrary
	ArtifactProxy
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactAuthorization:
		return "authorization"
	case ArtifactProcessor:
		return "processor"
	case ArtifactAccount:
		return "account"
	case ArtifactLibrary:
		return "library"
	case ArtifactProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// CodeHash returns the fixed code hash chainsim uses to stand in for a real
// chain's compiled bytecode hash for one artifact class.
func CodeHash(kind ArtifactKind) []byte {
	h := sha256.Sum256([]byte("corechain/code-hash/v1\x00" + kind.String()))
	return h[:]
}
