package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies a provisionable resource variant.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindSubnet          Kind = "subnet"
	KindInternetGateway Kind = "internet-gateway"
	KindRouteTable      Kind = "route-table"
	KindSecurityRuleSet Kind = "security-rule-set"
	KindIdentityRole    Kind = "identity-role"
	KindComputeInstance Kind = "compute-instance"
)

// Kinds lists every recognized resource kind.
func Kinds() []Kind {
	return []Kind{
		KindNetwork,
		KindSubnet,
		KindInternetGateway,
		KindRouteTable,
		KindSecurityRuleSet,
		KindIdentityRole,
		KindComputeInstance,
	}
}

// Valid reports whether k is a recognized resource kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ResourceSpec is a single desired resource. It is read-only once loaded
// for a run; the engine never mutates it.
type ResourceSpec struct {
	Name      string         `pkl:"name"`
	Kind      Kind           `pkl:"kind"`
	Params    map[string]any `pkl:"params"`
	DependsOn []string       `pkl:"dependsOn"`

	// Count and ForEach expand a spec into multiple resources before the
	// graph is built. Mutually exclusive.
	Count   int               `pkl:"count"`
	ForEach map[string]string `pkl:"forEach"`
}

// Hash returns the canonical SHA-256 digest of the spec's identity-relevant
// fields. Two specs with the same hash are treated as unchanged by the diff.
func (s *ResourceSpec) Hash() string {
	canonical := struct {
		Kind      Kind           `json:"kind"`
		Params    map[string]any `json:"params"`
		DependsOn []string       `json:"dependsOn"`
	}{
		Kind:      s.Kind,
		Params:    s.Params,
		DependsOn: append([]string(nil), s.DependsOn...),
	}
	sort.Strings(canonical.DependsOn)

	// encoding/json sorts map keys, so the digest is stable across runs.
	raw, err := json.Marshal(canonical)
	if err != nil {
		// Params came from a decoded manifest, so this only fires on
		// programmer error (e.g. a channel smuggled into Params).
		panic(fmt.Sprintf("ir: unhashable spec %s: %v", s.Name, err))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
