package panel

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestStepTable(t *testing.T) {
	t.Run("StartsAtOneKilohertz", func(t *testing.T) {
		if got := NewStepTable(DDSSteps, DDSStartIndex).Current(); got != 1_000 {
			t.Errorf("Expected DDS start 1000, got %d", got)
		}
		if got := NewStepTable(PLLSteps, PLLStartIndex).Current(); got != 1_000 {
			t.Errorf("Expected PLL start 1000, got %d", got)
		}
	})

	t.Run("NextWraps", func(t *testing.T) {
		table := NewStepTable(PLLSteps, PLLStartIndex)
		want := []int64{10_000, 100_000, 1_000_000, 10_000_000, 10, 100, 1_000}
		for i, w := range want {
			if got := table.Next(); got != w {
				t.Errorf("press %d: expected %d, got %d", i+1, w, got)
			}
		}
	})

	t.Run("Sync", func(t *testing.T) {
		table := NewStepTable(DDSSteps, DDSStartIndex)
		if !table.Sync(100_000) || table.Index() != 5 {
			t.Errorf("Expected sync to index 5, got %d", table.Index())
		}
		if table.Sync(5_000) {
			t.Error("Expected sync to a value outside the table to fail")
		}
		if table.Current() != 100_000 {
			t.Errorf("Expected position unchanged, got %d", table.Current())
		}
	})

	t.Run("BadStart", func(t *testing.T) {
		if got := NewStepTable(DDSSteps, 99).Index(); got != 0 {
			t.Errorf("Expected out-of-range start to clamp to 0, got %d", got)
		}
	})
}

func TestStepTableProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("len(table) presses return to the starting step", prop.ForAll(
		func(start int, pll bool) bool {
			steps := DDSSteps
			if pll {
				steps = PLLSteps
			}
			table := NewStepTable(steps, start%len(steps))
			before := table.Current()
			for i := 0; i < table.Len(); i++ {
				table.Next()
			}
			return table.Current() == before
		},
		gen.IntRange(0, 100),
		gen.Bool(),
	))

	properties.Property("every press yields a member of the table", prop.ForAll(
		func(presses int) bool {
			table := NewStepTable(PLLSteps, PLLStartIndex)
			for i := 0; i < presses; i++ {
				step := table.Next()
				if step != PLLSteps[table.Index()] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
