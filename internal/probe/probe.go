// Package probe decides whether the worker process is alive and minimally
// healthy. A process that exists but consumes no resources is treated as hung.
package probe

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mzagar/bnw/internal/domain"
	"github.com/mzagar/bnw/internal/proc"
)

// ResourceFunc reports the health signal for a set of pids, e.g. GPU memory
// in MiB or CPU percent. An error means the signal cannot be determined.
type ResourceFunc func(pids []int32) (float64, error)

// Probe checks worker liveness.
type Probe struct {
	inspector proc.Inspector
	resource  ResourceFunc
	// threshold is the minimum health signal. Zero disables the resource
	// check entirely: existence alone suffices.
	threshold float64
	log       *zap.SugaredLogger
}

// New creates a Probe. A nil resource function falls back to CPU percent
// from the inspector.
func New(inspector proc.Inspector, resource ResourceFunc, threshold float64, log *zap.SugaredLogger) *Probe {
	p := &Probe{
		inspector: inspector,
		resource:  resource,
		threshold: threshold,
		log:       log,
	}
	if p.resource == nil {
		p.resource = p.cpuResource
	}
	return p
}

// CheckAlive reports whether a process matching the worker's signature runs
// under the expected directory and meets the resource threshold. Any query
// failure degrades to the permissive branch: when the monitoring tools are
// absent we assume healthy rather than trigger a restart storm.
func (p *Probe) CheckAlive(id domain.WorkerIdentity) bool {
	procs, err := p.inspector.Find(proc.Filter{
		CmdlineContains: id.Signature,
		WorkDir:         id.WorkDir,
	})
	if err != nil {
		p.log.Warnw("process query failed, assuming healthy", "error", err)
		return true
	}
	if len(procs) == 0 {
		return false
	}
	if p.threshold <= 0 {
		return true
	}

	usage, err := p.resource(proc.PIDs(procs))
	if err != nil {
		p.log.Warnw("resource query failed, assuming healthy", "error", err)
		return true
	}
	if usage < p.threshold {
		p.log.Infow("worker below resource threshold, treating as hung",
			"usage", usage, "threshold", p.threshold)
		return false
	}
	return true
}

// cpuResource sums CPU percent across the matched pids.
func (p *Probe) cpuResource(pids []int32) (float64, error) {
	var total float64
	for _, pid := range pids {
		pct, err := p.inspector.CPUPercent(pid)
		if err != nil {
			return 0, err
		}
		total += pct
	}
	return total, nil
}

// NvidiaSMI returns a ResourceFunc reading per-process GPU memory (MiB)
// from nvidia-smi. Pids not using the GPU contribute zero.
func NvidiaSMI() ResourceFunc {
	return func(pids []int32) (float64, error) {
		out, err := exec.Command("nvidia-smi",
			"--query-compute-apps=pid,used_memory",
			"--format=csv,noheader,nounits").Output()
		if err != nil {
			return 0, fmt.Errorf("nvidia-smi: %w", err)
		}
		wanted := make(map[int32]bool, len(pids))
		for _, pid := range pids {
			wanted[pid] = true
		}
		var total float64
		for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
			fields := strings.Split(line, ",")
			if len(fields) != 2 {
				continue
			}
			pid, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 32)
			if err != nil || !wanted[int32(pid)] {
				continue
			}
			mib, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
			if err != nil {
				continue
			}
			total += mib
		}
		return total, nil
	}
}
