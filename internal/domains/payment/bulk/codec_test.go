package bulk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]Item{
		{{ContestantID: "C1", Votes: 5}},
		{{ContestantID: "C1", Votes: 2}, {ContestantID: "C7", Votes: 3}},
	}

	// A 20-target payload must survive the codec even though it will never
	// fit the transport cap.
	var big []Item
	for i := 1; i <= 20; i++ {
		big = append(big, Item{ContestantID: fmt.Sprintf("C%d", i), Votes: i})
	}
	cases = append(cases, big)

	for _, items := range cases {
		encoded, err := Encode(items)
		require.NoError(t, err)

		decoded := Decode(encoded)
		assert.Equal(t, items, decoded)
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)
}

func TestFitsTransport(t *testing.T) {
	small, err := Encode([]Item{{ContestantID: "C1", Votes: 2}})
	require.NoError(t, err)
	assert.True(t, FitsTransport(small))

	var big []Item
	for i := 1; i <= 20; i++ {
		big = append(big, Item{ContestantID: fmt.Sprintf("C%d", i), Votes: i})
	}
	encoded, err := Encode(big)
	require.NoError(t, err)
	assert.False(t, FitsTransport(encoded))
}

func TestDecodeLegacyShapesAreEquivalent(t *testing.T) {
	want := []Item{
		{ContestantID: "C1", Votes: 2},
		{ContestantID: "C7", Votes: 3},
	}

	shapes := map[string]string{
		"canonical":    `{"i":[{"id":"C1","v":2},{"id":"C7","v":3}],"c":2,"t":5}`,
		"legacy_long":  `{"items":[{"contestant_Id":"C1","vote":2},{"contestant_Id":"C7","vote":3}]}`,
		"legacy_short": `{"items":[{"id":"C1","v":2},{"id":"C7","v":3}]}`,
		"bare_array":   `[{"contestant_Id":"C1","vote":2},{"contestant_Id":"C7","vote":3}]`,
	}

	for name, payload := range shapes {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, Decode(payload))
		})
	}
}

func TestDecodeMalformedFallsBackToNil(t *testing.T) {
	inputs := []string{
		"",
		"N/A",
		"not json at all",
		`{"i":[]}`,
		`{"items":[]}`,
		`{"unknown":"shape"}`,
		`[]`,
		`{"i":[{"id":"","v":3}]}`,       // empty id
		`{"i":[{"id":"C1","v":0}]}`,     // non-positive votes
		`{"items":[{"id":"C1","v":-2}]}`,
	}

	for _, input := range inputs {
		assert.Nil(t, Decode(input), "input %q should decode to nil", input)
	}
}

func TestDecodeSkipsInvalidItemsKeepsValid(t *testing.T) {
	decoded := Decode(`{"i":[{"id":"C1","v":2},{"id":"","v":4},{"id":"C3","v":0},{"id":"C9","v":1}]}`)
	assert.Equal(t, []Item{
		{ContestantID: "C1", Votes: 2},
		{ContestantID: "C9", Votes: 1},
	}, decoded)
}

func TestTotalVotes(t *testing.T) {
	assert.Equal(t, 0, TotalVotes(nil))
	assert.Equal(t, 6, TotalVotes([]Item{
		{ContestantID: "C1", Votes: 2},
		{ContestantID: "C2", Votes: 4},
	}))
}
