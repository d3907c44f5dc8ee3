package message

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cespare/xxhash/v2"
)

// CanonicalEncoding produces a deterministic textual encoding of a
// snapshot's structural content (pipeline ids/stages/rule names and stream
// assignments), used to compute ContentHash. It intentionally excludes
// Version/ContentHash themselves so that re-running a reload over
// unchanged inputs is detectable as content-equal even though Version
// advances (spec.md §5's idempotence law).
func (s *ProgramSnapshot) CanonicalEncoding() string {
	var b strings.Builder
	pipelineIDs := make([]string, 0, len(s.PipelinesByID))
	for id := range s.PipelinesByID {
		pipelineIDs = append(pipelineIDs, id)
	}
	sort.Strings(pipelineIDs)

	for _, id := range pipelineIDs {
		p := s.PipelinesByID[id]
		b.WriteString("pipeline:")
		b.WriteString(p.ID)
		b.WriteByte('|')
		for _, st := range p.Stages {
			b.WriteString("stage:")
			b.WriteString(strconv.Itoa(st.Number))
			if st.MatchAll {
				b.WriteString(":all")
			} else {
				b.WriteString(":any")
			}
			for _, ref := range st.RuleReferences {
				b.WriteByte(',')
				b.WriteString(ref)
			}
			b.WriteByte(';')
		}
		b.WriteByte('\n')
	}

	for _, streamID := range s.SortedStreamIDs() {
		b.WriteString("stream:")
		b.WriteString(streamID)
		b.WriteByte('=')
		ids := make([]string, 0, len(s.StreamAssignments[streamID]))
		for _, p := range s.StreamAssignments[streamID] {
			ids = append(ids, p.ID)
		}
		sort.Strings(ids)
		b.WriteString(strings.Join(ids, ","))
		b.WriteByte('\n')
	}

	return b.String()
}

// ComputeContentHash fills in s.ContentHash from s.CanonicalEncoding().
func (s *ProgramSnapshot) ComputeContentHash() {
	s.ContentHash = xxhash.Sum64String(s.CanonicalEncoding())
}

// NextVersion bumps the patch component of prev (or starts at 0.1.0 if prev
// is empty/unparsable), per SPEC_FULL.md §3.
func NextVersion(prev string) string {
	if prev == "" {
		return "0.1.0"
	}
	v, err := semver.NewVersion(prev)
	if err != nil {
		return "0.1.0"
	}
	return v.IncPatch().String()
}

