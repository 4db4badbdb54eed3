package sandbox

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrMetaParse marks a fatal, judge-internal failure to parse a jail meta
// file. It is total over its input (never panics) but signals a value it
// does not recognize.
type ErrMetaParse struct {
	Reason string
}

func (e *ErrMetaParse) Error() string {
	return fmt.Sprintf("sandbox: meta parse: %s", e.Reason)
}

// parseMetaFile parses the isolate-style "key:value\n" meta file contents
// produced by --meta=PATH. Unknown keys are ignored. Trailing blank lines
// and a missing trailing newline are both accepted.
func parseMetaFile(data []byte) (RunResult, error) {
	fields := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields[key] = value
	}

	status, ok := fields["status"]
	var runStatus RunStatus
	if !ok {
		runStatus = statusOk()
	} else {
		switch status {
		case "RE":
			code, err := strconv.Atoi(fields["exitcode"])
			if err != nil {
				return RunResult{}, &ErrMetaParse{Reason: "RE without a numeric exitcode"}
			}
			runStatus = statusRe(code)
		case "SG":
			sig, err := strconv.Atoi(fields["exitsig"])
			if err != nil {
				return RunResult{}, &ErrMetaParse{Reason: "SG without a numeric exitsig"}
			}
			if sig == 6 || sig == 11 {
				runStatus = statusMl()
			} else {
				runStatus = statusSg(sig)
			}
		case "TO":
			runStatus = statusTl()
		default:
			return RunResult{}, &ErrMetaParse{Reason: fmt.Sprintf("unrecognized status %q", status)}
		}
	}

	timeVal, err := strconv.ParseFloat(fields["time"], 64)
	if err != nil {
		return RunResult{}, &ErrMetaParse{Reason: "missing or non-numeric time"}
	}
	realTime, err := strconv.ParseFloat(fields["time-wall"], 64)
	if err != nil {
		return RunResult{}, &ErrMetaParse{Reason: "missing or non-numeric time-wall"}
	}
	maxRSS, err := strconv.ParseInt(fields["max-rss"], 10, 64)
	if err != nil {
		return RunResult{}, &ErrMetaParse{Reason: "missing or non-numeric max-rss"}
	}

	killed := fields["killed"] != "" && fields["killed"] != "0"

	return RunResult{
		Status:        runStatus,
		Time:          timeVal,
		RealTime:      realTime,
		StatusMessage: fields["message"],
		Memory:        maxRSS,
		Killed:        killed,
	}, nil
}
