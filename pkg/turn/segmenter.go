package turn

import (
	"strings"

	"github.com/jwebster45206/turn-engine/pkg/prompts"
	"github.com/jwebster45206/turn-engine/pkg/state"
)

// Segmenter splits a narrator stream into player-facing prose and the
// trailing effects block. Prose is released as soon as it cannot be the start
// of the effects marker, so a marker split across chunks never leaks into the
// narration.
type Segmenter struct {
	marker  string
	pending string
	block   strings.Builder
	inBlock bool
}

// NewSegmenter returns a segmenter for the standard effects marker.
func NewSegmenter() *Segmenter {
	return &Segmenter{marker: prompts.EffectsMarker}
}

// Feed consumes one chunk. It returns the prose that is safe to show and
// whether the marker was completed by this chunk.
func (s *Segmenter) Feed(chunk string) (prose string, sectionEnd bool) {
	if s.inBlock {
		s.block.WriteString(chunk)
		return "", false
	}

	s.pending += chunk
	if i := strings.Index(s.pending, s.marker); i >= 0 {
		prose = s.pending[:i]
		s.block.WriteString(s.pending[i+len(s.marker):])
		s.pending = ""
		s.inBlock = true
		return prose, true
	}

	hold := partialMarker(s.pending, s.marker)
	prose = s.pending[:len(s.pending)-hold]
	s.pending = s.pending[len(s.pending)-hold:]
	return prose, false
}

// Flush returns any prose still held back. Call it at end of stream.
func (s *Segmenter) Flush() string {
	out := s.pending
	s.pending = ""
	return out
}

// InBlock reports whether the marker has been seen.
func (s *Segmenter) InBlock() bool {
	return s.inBlock
}

// Block returns the raw effects block, without the closing marker or anything
// after it.
func (s *Segmenter) Block() string {
	raw := s.block.String()
	if i := strings.Index(raw, prompts.EffectsEndMarker); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

// Parse turns the collected block into effects. A stream without a marker or
// with an empty block is malformed.
func (s *Segmenter) Parse() (*state.Block, error) {
	if !s.inBlock {
		return nil, state.Malformed("reply has no %s section", s.marker)
	}
	raw := s.Block()
	if raw == "" {
		return nil, state.Malformed("empty %s section", s.marker)
	}
	return state.ParseBlock([]byte(raw))
}

// partialMarker returns the length of the longest suffix of s that is a proper
// prefix of marker.
func partialMarker(s, marker string) int {
	for n := min(len(s), len(marker)-1); n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return n
		}
	}
	return 0
}
