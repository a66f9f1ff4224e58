package chainsim

import "testing"

func TestDeriveAddr_Deterministic(t *testing.T) {
	salt := ProgramArtifactSalt("swap-auth", 42, "authorization", "sim1registry")
	a1 := DeriveAddr(CodeHash(ArtifactAuthorization), Canonical("sim1creator"), salt)
	a2 := DeriveAddr(CodeHash(ArtifactAuthorization), Canonical("SIM1Creator"), salt)
	if a1 != a2 {
		t.Fatalf("expected canonicalized creator to yield identical address, got %s != %s", a1, a2)
	}

	saltOther := ProgramArtifactSalt("swap-auth", 43, "authorization", "sim1registry")
	a3 := DeriveAddr(CodeHash(ArtifactAuthorization), Canonical("sim1creator"), saltOther)
	if a1 == a3 {
		t.Fatalf("expected different program ids to yield different addresses")
	}
}

func TestBridgeProxySalt_DomainSeparated(t *testing.T) {
	s1 := BridgeProxySalt("conn-1", "port-7", "sim1local")
	s2 := ProgramArtifactSalt("conn-1", 7, "port-7", "sim1local")
	if string(s1) == string(s2) {
		t.Fatalf("bridge proxy and program artifact salts must never collide")
	}
}
