package probe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mzagar/bnw/internal/domain"
	"github.com/mzagar/bnw/internal/proc"
)

var worker = domain.WorkerIdentity{
	Signature: "python run_worker.py",
	WorkDir:   "/opt/node1",
}

func TestCheckAlive(t *testing.T) {
	log := zap.NewNop().Sugar()

	t.Run("no matching process is not alive", func(t *testing.T) {
		insp := proc.NewFakeInspector()
		p := New(insp, nil, 0, log)
		assert.False(t, p.CheckAlive(worker))
	})

	t.Run("same command line in another directory does not match", func(t *testing.T) {
		insp := proc.NewFakeInspector()
		insp.Add(proc.Process{PID: 10, Cmdline: "python run_worker.py", WorkDir: "/opt/node2"}, 50)
		p := New(insp, nil, 0, log)
		assert.False(t, p.CheckAlive(worker))
	})

	t.Run("zero threshold skips resource check", func(t *testing.T) {
		insp := proc.NewFakeInspector()
		insp.Add(proc.Process{PID: 10, Cmdline: "python run_worker.py", WorkDir: "/opt/node1"}, 0)
		p := New(insp, nil, 0, log)
		assert.True(t, p.CheckAlive(worker))
	})

	t.Run("process below threshold is hung", func(t *testing.T) {
		insp := proc.NewFakeInspector()
		insp.Add(proc.Process{PID: 10, Cmdline: "python run_worker.py", WorkDir: "/opt/node1"}, 0)
		p := New(insp, nil, 5, log)
		assert.False(t, p.CheckAlive(worker))
	})

	t.Run("process at threshold is alive", func(t *testing.T) {
		insp := proc.NewFakeInspector()
		insp.Add(proc.Process{PID: 10, Cmdline: "python run_worker.py", WorkDir: "/opt/node1"}, 5)
		p := New(insp, nil, 5, log)
		assert.True(t, p.CheckAlive(worker))
	})

	t.Run("resource query failure assumes healthy", func(t *testing.T) {
		insp := proc.NewFakeInspector()
		insp.Add(proc.Process{PID: 10, Cmdline: "python run_worker.py", WorkDir: "/opt/node1"}, 0)
		failing := func(pids []int32) (float64, error) {
			return 0, errors.New("nvidia-smi not found")
		}
		p := New(insp, failing, 100, log)
		assert.True(t, p.CheckAlive(worker))
	})

	t.Run("process query failure assumes healthy", func(t *testing.T) {
		insp := proc.NewFakeInspector()
		insp.FindErr = errors.New("proc unavailable")
		p := New(insp, nil, 0, log)
		assert.True(t, p.CheckAlive(worker))
	})

	t.Run("custom resource function receives matched pids", func(t *testing.T) {
		insp := proc.NewFakeInspector()
		insp.Add(proc.Process{PID: 10, Cmdline: "python run_worker.py", WorkDir: "/opt/node1"}, 0)
		var got []int32
		res := func(pids []int32) (float64, error) {
			got = pids
			return 2048, nil
		}
		p := New(insp, res, 1000, log)
		assert.True(t, p.CheckAlive(worker))
		assert.Equal(t, []int32{10}, got)
	})
}
