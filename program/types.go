package program

type ConditionKind int

const (
	EveryNMinutes ConditionKind = iota
	AtFixedTime
)

// TimeCondition gates a conditional instruction. Minutes is used by
// EveryNMinutes, Hour and Minute by AtFixedTime.
type TimeCondition struct {
	Kind    ConditionKind
	Minutes int
	Hour    int
	Minute  int
}

// Instruction is a single parsed backup statement. A nil Condition means the
// backup runs once, immediately.
type Instruction struct {
	Source      string
	Destination string
	Condition   *TimeCondition
	Position    int
	Line        int
}

type Program struct {
	Instructions []*Instruction
}
