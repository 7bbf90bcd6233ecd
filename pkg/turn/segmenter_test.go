package turn

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/turn-engine/pkg/state"
)

// feedAll runs chunks through a fresh segmenter and returns the released
// prose, how many times the marker was reported, and the segmenter.
func feedAll(chunks ...string) (string, int, *Segmenter) {
	seg := NewSegmenter()
	var prose strings.Builder
	ends := 0
	for _, c := range chunks {
		p, end := seg.Feed(c)
		prose.WriteString(p)
		if end {
			ends++
		}
	}
	prose.WriteString(seg.Flush())
	return prose.String(), ends, seg
}

func TestSegmenter_MarkerSplitAtEveryPosition(t *testing.T) {
	reply := `The lantern flickers.` + "\n" + `<effects>[{"kind":"gold_delta","delta":2}]</effects>`
	i := strings.Index(reply, "<effects>")

	for cut := i; cut <= i+len("<effects>"); cut++ {
		prose, ends, seg := feedAll(reply[:cut], reply[cut:])
		assert.Equal(t, "The lantern flickers.\n", prose, "cut at %d", cut)
		assert.Equal(t, 1, ends, "cut at %d", cut)
		assert.Equal(t, `[{"kind":"gold_delta","delta":2}]`, seg.Block(), "cut at %d", cut)
	}
}

func TestSegmenter_OneByteChunks(t *testing.T) {
	reply := "Old Man J coughs. <effects>{\"effects\":[],\"ending\":\"escape\"}</effects>\ntrailing"
	chunks := make([]string, 0, len(reply))
	for i := range len(reply) {
		chunks = append(chunks, reply[i:i+1])
	}

	prose, ends, seg := feedAll(chunks...)
	assert.Equal(t, "Old Man J coughs. ", prose)
	assert.Equal(t, 1, ends)

	block, err := seg.Parse()
	require.NoError(t, err)
	assert.Empty(t, block.Effects)
	assert.Equal(t, "escape", block.Ending)
}

func TestSegmenter_HeldBackTextIsReleased(t *testing.T) {
	seg := NewSegmenter()

	p, end := seg.Feed("a < b and <eff")
	assert.False(t, end)
	assert.Equal(t, "a < b and ", p)

	// Not the marker after all.
	p, end = seg.Feed("ort")
	assert.False(t, end)
	assert.Equal(t, "<effort", p)

	p, _ = seg.Feed(" <")
	assert.Equal(t, " ", p)
	assert.Equal(t, "<", seg.Flush())
	assert.False(t, seg.InBlock())
}

func TestSegmenter_Parse(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []string
		wantErr error
		want    []state.Effect
	}{
		{
			name:    "no marker",
			chunks:  []string{"Just prose, no state block."},
			wantErr: state.ErrMalformedModelOutput,
		},
		{
			name:    "empty block",
			chunks:  []string{"Prose.<effects>", "  </effects>"},
			wantErr: state.ErrMalformedModelOutput,
		},
		{
			name:    "unknown kind",
			chunks:  []string{"x<effects>[{\"kind\":\"summon\"}]"},
			wantErr: state.ErrUnsupportedEffect,
		},
		{
			name:   "empty list without closing marker",
			chunks: []string{"Nothing happens.\n<effects>\n[]"},
			want:   []state.Effect{},
		},
		{
			name:   "code fence inside block",
			chunks: []string{"ok<effects>\n```json\n[{\"kind\":\"item_add\",\"item\":\"Rope\"}]\n```\n</effects>"},
			want:   []state.Effect{state.ItemAdd{Item: state.Item{Name: "Rope"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, seg := feedAll(tt.chunks...)
			block, err := seg.Parse()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, block.Effects)
		})
	}
}

func TestPartialMarker(t *testing.T) {
	assert.Equal(t, 0, partialMarker("hello", "<effects>"))
	assert.Equal(t, 1, partialMarker("hello <", "<effects>"))
	assert.Equal(t, 8, partialMarker("x<effects", "<effects>"))
	assert.Equal(t, 0, partialMarker("", "<effects>"))
}
