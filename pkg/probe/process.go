package probe

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lopesmcc/plotman/pkg/archive"
	"github.com/lopesmcc/plotman/pkg/plotfile"
)

// transferTool is the executable name of the outbound copy tool whose
// invocations the process probe recognizes.
const transferTool = "rsync"

// egressTokenCount is the exact command-line shape of a conforming
// transfer invocation. Anything with a different token count is dropped
// whole rather than partially parsed.
const egressTokenCount = 9

const (
	bwlimitToken     = 1
	sourceToken      = 7
	destinationToken = 8
)

// lstartLayout parses the process start time column of `ps -o lstart`.
const lstartLayout = "Mon Jan 2 15:04:05 2006"

// ProcessProbe lists egress transfer jobs from the OS process table.
type ProcessProbe struct {
	runner Runner
}

// NewProcessProbe returns a probe backed by the given runner. Pass
// NewExecRunner() for the real process table.
func NewProcessProbe(runner Runner) *ProcessProbe {
	return &ProcessProbe{runner: runner}
}

// ListEgress enumerates conforming transfer processes.
//
// A timed-out enumeration degrades to an empty result (degraded=true):
// the cycle observes no jobs rather than failing. Error-stream output
// from the probe command is fatal and returned as a *StderrError.
func (p *ProcessProbe) ListEgress(ctx context.Context, timeout time.Duration) ([]archive.EgressJob, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := p.runner.Run(ctx, "ps", "-ww", "-e", "-o", "lstart=,args=")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, true, nil
		}
		return nil, false, err
	}
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return nil, false, &StderrError{Probe: "ps", Stderr: msg}
	}

	var jobs []archive.EgressJob
	for _, line := range strings.Split(string(stdout), "\n") {
		if job, ok := parseEgressLine(line); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs, false, nil
}

// parseEgressLine decodes one `lstart args` process line. Non-matching
// lines are the common case during a full process-table scan and are
// skipped silently.
func parseEgressLine(line string) (archive.EgressJob, bool) {
	fields := strings.Fields(line)
	// Five lstart columns plus at least the executable.
	if len(fields) < 6 {
		return archive.EgressJob{}, false
	}

	startedAt, err := time.ParseInLocation(lstartLayout, strings.Join(fields[:5], " "), time.Local)
	if err != nil {
		return archive.EgressJob{}, false
	}

	tokens := fields[5:]
	if filepath.Base(tokens[0]) != transferTool {
		return archive.EgressJob{}, false
	}
	if len(tokens) != egressTokenCount {
		return archive.EgressJob{}, false
	}

	bwlimit, ok := parseBandwidthLimit(tokens[bwlimitToken])
	if !ok {
		return archive.EgressJob{}, false
	}

	source := tokens[sourceToken]
	plot, ok := plotfile.ParsePlot(source)
	if !ok {
		return archive.EgressJob{}, false
	}

	return archive.EgressJob{
		PlotID:         plot.PlotID,
		K:              plot.K,
		CreatedAt:      plot.CreatedAt,
		SourcePath:     source,
		Destination:    CanonicalDestination(tokens[destinationToken]),
		BandwidthLimit: bwlimit,
		StartedAt:      startedAt,
		CommandLine:    strings.Join(tokens, " "),
	}, true
}

// parseBandwidthLimit extracts the integer after '=' in the rate-limit
// token, e.g. "--bwlimit=80000000".
func parseBandwidthLimit(token string) (int64, bool) {
	idx := strings.IndexByte(token, '=')
	if idx < 0 || !strings.HasPrefix(token, "--bwlimit=") {
		return 0, false
	}
	n, err := strconv.ParseInt(token[idx+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CanonicalDestination rewrites a transfer URL of the form
// scheme://user@host:port/module/<disk>/ into the locality tag
// "/<disk>@<host>" used to compare archive targets across hosts.
// Plain local paths pass through unchanged.
func CanonicalDestination(dest string) string {
	if !strings.Contains(dest, "://") {
		return dest
	}
	u, err := url.Parse(dest)
	if err != nil || u.Hostname() == "" {
		return dest
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	disk := segments[len(segments)-1]
	if disk == "" {
		return dest
	}
	return "/" + disk + "@" + u.Hostname()
}
