// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/semfora/pkg/schema"
)

func TestOwningLayer_WorkingBeatsBranchBeatsBase(t *testing.T) {
	s := NewSet()
	s.MarkFile(Base, "a.go")
	s.MarkFile(Branch, "a.go")
	s.MarkFile(Working, "a.go")

	kind, ok := s.OwningLayer("a.go")
	assert.True(t, ok)
	assert.Equal(t, Working, kind)
}

func TestOwningLayer_FallsBackToLowerLayer(t *testing.T) {
	s := NewSet()
	s.MarkFile(Base, "a.go")

	kind, ok := s.OwningLayer("a.go")
	assert.True(t, ok)
	assert.Equal(t, Base, kind)
}

func TestOwningLayer_UntouchedFileReturnsFalse(t *testing.T) {
	s := NewSet()
	_, ok := s.OwningLayer("missing.go")
	assert.False(t, ok)
}

func TestMergeCallGraph_HigherPrecedenceLayerWinsWholeCallerEntry(t *testing.T) {
	base := map[string][]schema.CallGraphEdge{
		"h1": {{CalleeHash: "ext:old"}},
	}
	branch := map[string][]schema.CallGraphEdge{
		"h1": {{CalleeHash: "h2"}, {CalleeHash: "h3"}},
	}
	working := map[string][]schema.CallGraphEdge{
		"h4": {{CalleeHash: "h5"}},
	}

	merged := MergeCallGraph(base, branch, working)

	assert.Len(t, merged["h1"], 2, "branch's edges replace base's entirely, not merge with them")
	assert.Equal(t, "h2", merged["h1"][0].CalleeHash)
	assert.Len(t, merged["h4"], 1)
}
