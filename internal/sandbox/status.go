package sandbox

import "fmt"

// Kind names the closed set of sandbox-run outcomes.
type Kind int

const (
	Ok Kind = iota
	Tl
	Ml
	Re
	Sg
)

// RunStatus is a sandbox-run outcome: Ok, Tl, Ml, or Re/Sg carrying a
// numeric exit code or signal. Signals 6 (SIGABRT) and 11 (SIGSEGV) are
// mapped to Ml by parseMetaFile as an OOM-kill convention tied to the jail
// binary, not a universal fact.
type RunStatus struct {
	Kind byte // a Kind value (Ok, Tl, Ml, Re, Sg) stored as a byte
	Code int  // exit code for Re, signal number for Sg
}

func (s RunStatus) String() string {
	switch Kind(s.Kind) {
	case Ok:
		return "Ok"
	case Tl:
		return "Tl"
	case Ml:
		return "Ml"
	case Re:
		return fmt.Sprintf("Re(%d)", s.Code)
	case Sg:
		return fmt.Sprintf("Sg(%d)", s.Code)
	default:
		return "Unknown"
	}
}

func statusOk() RunStatus         { return RunStatus{Kind: byte(Ok)} }
func statusTl() RunStatus         { return RunStatus{Kind: byte(Tl)} }
func statusMl() RunStatus         { return RunStatus{Kind: byte(Ml)} }
func statusRe(code int) RunStatus { return RunStatus{Kind: byte(Re), Code: code} }
func statusSg(sig int) RunStatus  { return RunStatus{Kind: byte(Sg), Code: sig} }

// StatusOk, StatusTl, StatusMl, StatusRe and StatusSg are the exported
// constructors for RunStatus, used by callers outside this package that
// build RunResults directly — most notably test doubles for Backend.
func StatusOk() RunStatus         { return statusOk() }
func StatusTl() RunStatus         { return statusTl() }
func StatusMl() RunStatus         { return statusMl() }
func StatusRe(code int) RunStatus { return statusRe(code) }
func StatusSg(sig int) RunStatus  { return statusSg(sig) }

// RunResult is the full structured outcome of one sandboxed run.
type RunResult struct {
	Status        RunStatus
	Time          float64 // seconds, CPU time
	RealTime      float64 // seconds, wall-clock time
	StatusMessage string  // optional diagnostic from the meta file
	Memory        int64   // peak resident KiB
	Killed        bool
}
