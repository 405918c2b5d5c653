package executor

import "fmt"

// BudgetExceededError reports a stage whose memory hint alone exceeds the
// total configured budget. Such a stage can never be admitted, so it is
// failed before launch rather than left waiting forever.
type BudgetExceededError struct {
	Stage    string
	MemoryGB float64
	BudgetGB float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("stage %q requires %.1f GB but the total budget is %.1f GB",
		e.Stage, e.MemoryGB, e.BudgetGB)
}
