package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/dogmatiq/actd/internal/x/loggingx"
	"github.com/dogmatiq/dodeca/logging"
)

// ExecLauncher is a Launcher that starts processes using os/exec.
//
// The standard output and error of each process are written to Logger, one
// message per line.
type ExecLauncher struct {
	Logger logging.Logger

	// WaitDelay bounds the time spent waiting for a process's output to be
	// closed after it exits. If it is zero, one second is used.
	WaitDelay time.Duration
}

// Launch starts the process described by c.
func (l *ExecLauncher) Launch(c Command) (Process, error) {
	if len(c.Argv) == 0 {
		return nil, errors.New("command line is empty")
	}

	cmd := exec.Command(c.Argv[0], c.Argv[1:]...)
	cmd.Env = environ(c.Env)

	stdout := &loggingx.LineWriter{Target: loggingx.WithPrefix(l.Logger, "%s:out: ", c.Name)}
	stderr := &loggingx.LineWriter{Target: loggingx.WithPrefix(l.Logger, "%s:err: ", c.Name)}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	cmd.WaitDelay = l.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{
		cmd:   cmd,
		stdin: stdin,
		done:  make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()

		stdout.Flush()
		stderr.Flush()

		p.m.Lock()
		p.err = err
		p.m.Unlock()

		close(p.done)
	}()

	return p, nil
}

// environ returns the daemon's environment with env applied on top.
func environ(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := os.Environ()
	for _, k := range keys {
		vars = append(vars, fmt.Sprintf("%s=%s", k, env[k]))
	}

	return vars
}

type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}

	m   sync.Mutex
	err error
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Stdin() io.WriteCloser {
	return p.stdin
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) Err() error {
	p.m.Lock()
	defer p.m.Unlock()
	return p.err
}

func (p *execProcess) Terminate() error {
	return p.signal(syscall.SIGTERM)
}

func (p *execProcess) Kill() error {
	return p.signal(os.Kill)
}

func (p *execProcess) signal(sig os.Signal) error {
	if Exited(p) {
		return nil
	}

	err := p.cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}

	return err
}
