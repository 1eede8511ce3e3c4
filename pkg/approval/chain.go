// Package approval evaluates multi-step approval chains. Everything
// here is a pure function of the chain shape and the decisions made so
// far, independent of where either is stored, so the optimistic-patch
// path and the server-reconciliation path can never disagree.
package approval

// ChainType selects the completion rule for a chain.
type ChainType string

const (
	// Sequential advances one level at a time and stops at the first
	// rejection; later levels are never evaluated.
	Sequential ChainType = "sequential"
	// Parallel requires every approver to approve; one rejection
	// rejects the chain.
	Parallel ChainType = "parallel"
	// Any completes on the first approval; it rejects only when every
	// approver has rejected.
	Any ChainType = "any"
	// Quorum requires a configured number of approvals; it rejects as
	// soon as the quorum becomes unreachable.
	Quorum ChainType = "quorum"
)

// Verdict is one approver's decision.
type Verdict string

const (
	Approved Verdict = "approved"
	Rejected Verdict = "rejected"
)

// Decision is one approver's recorded verdict. Level is the 1-based
// step position, meaningful only for sequential chains.
type Decision struct {
	Approver string
	Level    int
	Verdict  Verdict
}

// Outcome is the chain's current result.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Chain describes one approval chain's shape.
type Chain struct {
	Type ChainType
	// Steps is the number of approvers (levels, for sequential).
	Steps int
	// Required is the approval count for quorum chains.
	Required int
}

// Evaluate computes the chain outcome from the full decision set. It
// is safe to call after every new decision; non-sequential chains
// re-evaluate everything each time.
func Evaluate(c Chain, decisions []Decision) Outcome {
	switch c.Type {
	case Sequential:
		return evaluateSequential(c, decisions)
	case Parallel:
		return evaluateQuorum(c.Steps, c.Steps, decisions)
	case Any:
		return evaluateQuorum(c.Steps, 1, decisions)
	case Quorum:
		return evaluateQuorum(c.Steps, c.Required, decisions)
	}
	return OutcomePending
}

// evaluateSequential walks levels in order. A level with no decision
// halts advancement regardless of any decisions recorded beyond it.
func evaluateSequential(c Chain, decisions []Decision) Outcome {
	byLevel := make(map[int]Verdict, len(decisions))
	for _, d := range decisions {
		byLevel[d.Level] = d.Verdict
	}
	for level := 1; level <= c.Steps; level++ {
		verdict, decided := byLevel[level]
		if !decided {
			return OutcomePending
		}
		if verdict == Rejected {
			return OutcomeRejected
		}
	}
	return OutcomeApproved
}

// evaluateQuorum covers parallel (required == steps), any
// (required == 1) and quorum chains: approved once enough approvals
// are in, rejected once enough rejections make the target unreachable.
func evaluateQuorum(steps, required int, decisions []Decision) Outcome {
	var approvals, rejections int
	for _, d := range decisions {
		switch d.Verdict {
		case Approved:
			approvals++
		case Rejected:
			rejections++
		}
	}
	if approvals >= required {
		return OutcomeApproved
	}
	if steps-rejections < required {
		return OutcomeRejected
	}
	return OutcomePending
}
