package question

import "fmt"

// Source tags where an item came from.
const (
	SourcePool   = "pool"
	SourceRemote = "remote"
)

var tierLevels = map[string]int{
	"N5": 5,
	"N4": 4,
	"N3": 3,
	"N2": 2,
	"N1": 1,
}

// LevelForTier maps a tier name ("N5") to the numeric level stored in the
// question pool (5).
func LevelForTier(tier string) (int, error) {
	level, ok := tierLevels[tier]
	if !ok {
		return 0, fmt.Errorf("unknown tier %q", tier)
	}
	return level, nil
}

// Item is one multiple-choice question. CorrectIndex never leaves the server
// before the question is resolved.
type Item struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation,omitempty"`
	Source       string   `json:"source,omitempty"`
}

// Valid reports whether the item can be played.
func (i Item) Valid() bool {
	return i.Prompt != "" && len(i.Options) >= 2 && i.CorrectIndex >= 0 && i.CorrectIndex < len(i.Options)
}
