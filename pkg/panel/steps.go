package panel

// Step tables of the stepped instruments, in Hz
var (
	DDSSteps = []int64{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000}
	PLLSteps = []int64{10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000}
)

// Both tables start at 1 kHz, matching the firmware's power-on step
const (
	DDSStartIndex = 3
	PLLStartIndex = 2
)

// StepTable cycles through a fixed ordered list of step sizes
type StepTable struct {
	steps []int64
	index int
}

// NewStepTable creates a table positioned at start
func NewStepTable(steps []int64, start int) *StepTable {
	if start < 0 || start >= len(steps) {
		start = 0
	}
	return &StepTable{steps: steps, index: start}
}

// Len returns the number of steps in the table
func (t *StepTable) Len() int {
	return len(t.steps)
}

// Index returns the position of the current step
func (t *StepTable) Index() int {
	return t.index
}

// Current returns the current step in Hz
func (t *StepTable) Current() int64 {
	return t.steps[t.index]
}

// Next advances to the following step, wrapping to the first one, and
// returns it
func (t *StepTable) Next() int64 {
	t.index = (t.index + 1) % len(t.steps)
	return t.steps[t.index]
}

// Sync moves to the step the device reported. Values outside the table
// leave the position unchanged.
func (t *StepTable) Sync(hz int64) bool {
	for i, s := range t.steps {
		if s == hz {
			t.index = i
			return true
		}
	}
	return false
}
