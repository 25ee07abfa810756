// Package bulk encodes the multi-contestant vote payload carried through
// the gateway round-trip in the R1 auxiliary field. The transport field is
// length-capped, hence the single-letter keys.
package bulk

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Item is one (contestant, votes) pair of a bulk payment.
type Item struct {
	ContestantID string
	Votes        int
}

// MaxEncodedLen mirrors the documented R1 cap. Treated as a hard limit
// until the gateway confirms otherwise.
const MaxEncodedLen = 50

// =====================================================
// WIRE SHAPES
// =====================================================

// canonical shape: {"i":[{"id":"C1","v":2}],"c":1,"t":2}
type canonicalPayload struct {
	Items []canonicalItem `json:"i"`
	Count int             `json:"c"`
	Total int             `json:"t"`
}

type canonicalItem struct {
	ID    string `json:"id"`
	Votes int    `json:"v"`
}

// legacy shape: {"items":[{"contestant_Id":"C1","vote":2}]} — item keys may
// also be the short {"id","v"} pair depending on the client version.
type legacyPayload struct {
	Items []legacyItem `json:"items"`
}

type legacyItem struct {
	ContestantID string `json:"contestant_Id"`
	Vote         int    `json:"vote"`
	ShortID      string `json:"id"`
	ShortVotes   int    `json:"v"`
}

func (l legacyItem) toItem() Item {
	if l.ContestantID != "" {
		return Item{ContestantID: l.ContestantID, Votes: l.Vote}
	}
	return Item{ContestantID: l.ShortID, Votes: l.ShortVotes}
}

// =====================================================
// ENCODE / DECODE
// =====================================================

// Encode renders items in the canonical shape. The codec itself is
// unbounded; whether the result fits R1 is the transport's concern, see
// FitsTransport.
func Encode(items []Item) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("no items to encode")
	}

	payload := canonicalPayload{
		Items: make([]canonicalItem, 0, len(items)),
		Count: len(items),
	}
	for _, it := range items {
		payload.Items = append(payload.Items, canonicalItem{ID: it.ContestantID, Votes: it.Votes})
		payload.Total += it.Votes
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode bulk payload: %w", err)
	}

	return string(raw), nil
}

// FitsTransport reports whether an encoded payload fits the documented R1
// cap. Enforced at session creation as a hard constraint.
func FitsTransport(s string) bool {
	return utf8.RuneCountInString(s) <= MaxEncodedLen
}

// Decode parses a bulk payload tolerating every shape ever shipped:
//
//  1. canonical {"i":[{"id","v"}],...}
//  2. legacy {"items":[...]} with either {"contestant_Id","vote"} or
//     {"id","v"} item keys
//  3. a bare array of {"contestant_Id","vote"} (oldest clients)
//
// Malformed or unknown input decodes to nil rather than an error: an empty
// result means "credit the primary contestant on the session record". The
// function is pure and must never fail the caller's transaction.
func Decode(s string) []Item {
	if s == "" || s == "N/A" {
		return nil
	}

	// 1. canonical
	var canonical canonicalPayload
	if err := json.Unmarshal([]byte(s), &canonical); err == nil && len(canonical.Items) > 0 {
		items := make([]Item, 0, len(canonical.Items))
		for _, it := range canonical.Items {
			if it.ID == "" || it.Votes <= 0 {
				continue
			}
			items = append(items, Item{ContestantID: it.ID, Votes: it.Votes})
		}
		if len(items) > 0 {
			return items
		}
	}

	// 2. legacy object
	var legacy legacyPayload
	if err := json.Unmarshal([]byte(s), &legacy); err == nil && len(legacy.Items) > 0 {
		if items := normalizeLegacy(legacy.Items); len(items) > 0 {
			return items
		}
	}

	// 3. bare array
	var bare []legacyItem
	if err := json.Unmarshal([]byte(s), &bare); err == nil && len(bare) > 0 {
		if items := normalizeLegacy(bare); len(items) > 0 {
			return items
		}
	}

	return nil
}

func normalizeLegacy(raw []legacyItem) []Item {
	items := make([]Item, 0, len(raw))
	for _, l := range raw {
		it := l.toItem()
		if it.ContestantID == "" || it.Votes <= 0 {
			continue
		}
		items = append(items, it)
	}
	return items
}

// TotalVotes sums the vote counts of a decoded payload.
func TotalVotes(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.Votes
	}
	return total
}
