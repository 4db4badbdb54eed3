// Package judge implements the submission orchestrator and the two test
// Environments (batch and interactive) that turn one submission into a
// stream of verdicts.
package judge

import "invoker/internal/sandbox"

// Verdict is the closed set of per-test outcomes.
type Verdict string

const (
	VerdictOk Verdict = "OK"
	VerdictWa Verdict = "WA"
	VerdictPe Verdict = "PE"
	VerdictMl Verdict = "ML"
	VerdictTl Verdict = "TL"
	VerdictRe Verdict = "RE"
	VerdictCe Verdict = "CE"
	VerdictTe Verdict = "TE"
	VerdictSl Verdict = "SL"
)

// IsSuccess reports whether the verdict counts as a pass for scoring
// purposes.
func (v Verdict) IsSuccess() bool {
	return v == VerdictOk
}

// FromRunStatus maps the solution's own RunStatus to a Verdict, reporting
// ok=false when status is sandbox.Ok — that signals "fall through to the
// checker/interactor result" rather than a terminal verdict. A direct
// runtime error or uncaught signal on the solution both yield the generic
// Re verdict (any OOM-killing signal has already been folded into Ml by
// meta-file parsing, so Sg here means some other uncaught signal); the
// Wa/Pe-by-exit-code convention only applies to checker/interactor exit
// codes (see CheckerVerdict), since only they speak that contract.
func FromRunStatus(status sandbox.RunStatus) (Verdict, bool) {
	switch sandbox.Kind(status.Kind) {
	case sandbox.Ok:
		return "", false
	case sandbox.Tl:
		return VerdictTl, true
	case sandbox.Ml:
		return VerdictMl, true
	case sandbox.Sg, sandbox.Re:
		return VerdictRe, true
	default:
		return VerdictTe, true
	}
}

// CheckerVerdict maps a checker's RunStatus to a Verdict using its
// exit-code convention: 0/Ok -> Ok, 1 -> Wa, 2 -> Pe, anything
// else (including a jail-level crash, OOM, or timeout on the checker
// itself) -> Te, since none of those are the submitter's fault.
func CheckerVerdict(status sandbox.RunStatus) Verdict {
	switch sandbox.Kind(status.Kind) {
	case sandbox.Ok:
		return VerdictOk
	case sandbox.Re:
		switch status.Code {
		case 1:
			return VerdictWa
		case 2:
			return VerdictPe
		default:
			return VerdictTe
		}
	default:
		return VerdictTe
	}
}

// InteractorVerdict maps an interactor's RunStatus to a Verdict. It differs
// from CheckerVerdict only in how it treats a timeout: Tl on the interactor
// stays Tl (the interactor waiting on the solution is itself evidence the
// solution was too slow), where a checker timing out is always judge error.
func InteractorVerdict(status sandbox.RunStatus) Verdict {
	switch sandbox.Kind(status.Kind) {
	case sandbox.Ok:
		return VerdictOk
	case sandbox.Tl:
		return VerdictTl
	case sandbox.Re:
		switch status.Code {
		case 1:
			return VerdictWa
		case 2:
			return VerdictPe
		default:
			return VerdictTe
		}
	default:
		return VerdictTe
	}
}

// Result is the outcome of one test.
type Result struct {
	Verdict Verdict
	Time    float64
	Memory  int64
	Output  string
	Message string
}
