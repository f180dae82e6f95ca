package bracket

import "fmt"

type Stage string

const (
	StageRoundOf128   Stage = "1/64"
	StageRoundOf64    Stage = "1/32"
	StageRoundOf32    Stage = "1/16"
	StageRoundOf16    Stage = "1/8"
	StageQuarterfinal Stage = "quarterfinal"
	StageSemifinal    Stage = "semifinal"
	StageFinal        Stage = "final"
	StageCompleted    Stage = "completed"
)

// MaxBracketSize is the largest bracket with a named opening stage.
const MaxBracketSize = 128

// MaxStageHours caps how long a single stage may stay open for voting.
const MaxStageHours = 24 * 365

// ValidStageHours reports whether n hours is an acceptable stage duration.
func ValidStageHours(n int) bool {
	return n >= 1 && n <= MaxStageHours
}

// Stages in the order a tournament moves through them.
var stageOrder = []Stage{
	StageRoundOf128,
	StageRoundOf64,
	StageRoundOf32,
	StageRoundOf16,
	StageQuarterfinal,
	StageSemifinal,
	StageFinal,
	StageCompleted,
}

func Stages() []Stage {
	return append([]Stage(nil), stageOrder...)
}

func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Next returns the stage that follows s. Completed has no successor.
func (s Stage) Next() (Stage, bool) {
	i := s.Index()
	if i < 0 || s == StageCompleted {
		return "", false
	}
	return stageOrder[i+1], true
}

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8
// and so on. A bracket always has at least one pair.
func BracketSize(count int) int {
	size := 2
	for size < count {
		size <<= 1
	}
	return size
}

// StartingStage maps a bracket size to the stage a new tournament opens in.
func StartingStage(size int) (Stage, error) {
	switch {
	case size <= 2:
		return StageFinal, nil
	case size <= 4:
		return StageSemifinal, nil
	case size <= 8:
		return StageQuarterfinal, nil
	case size <= 16:
		return StageRoundOf16, nil
	case size <= 32:
		return StageRoundOf32, nil
	case size <= 64:
		return StageRoundOf64, nil
	case size <= MaxBracketSize:
		return StageRoundOf128, nil
	}
	return "", fmt.Errorf("%w: bracket of %d exceeds %d slots", ErrPoolTooLarge, size, MaxBracketSize)
}
