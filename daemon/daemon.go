package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var ErrNotRunning = errors.New("daemon is not running")

func ReadPid(pidfile string) (int, error) {
	b, err := os.ReadFile(pidfile)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s: %q", pidfile, strings.TrimSpace(string(b)))
	}

	return pid, nil
}

func WritePid(pidfile string, pid int) error {
	return os.WriteFile(pidfile, []byte(fmt.Sprintf("%d\n", pid)), 0o644)
}

func alive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

// Running returns the pid recorded in pidfile if that process is still alive.
func Running(pidfile string) (int, bool) {
	pid, err := ReadPid(pidfile)
	if err != nil {
		return 0, false
	}
	return pid, alive(pid)
}

// ChildArgs strips the named boolean flags from args, in any of the forms
// -name, --name, -name=value.
func ChildArgs(args []string, drop ...string) []string {
	out := make([]string, 0, len(args))

	for _, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if i := strings.Index(name, "="); i >= 0 {
			name = name[:i]
		}

		dropped := false
		if strings.HasPrefix(arg, "-") {
			for _, d := range drop {
				if name == d {
					dropped = true
					break
				}
			}
		}

		if !dropped {
			out = append(out, arg)
		}
	}

	return out
}

// Start launches argv in a new session with its output appended to logfile
// (or discarded when logfile is empty), and records its pid in pidfile.
func Start(pidfile string, logfile string, argv []string) (int, error) {
	if len(argv) == 0 {
		return 0, errors.New("no command to start")
	}

	if pid, ok := Running(pidfile); ok {
		return 0, fmt.Errorf("already running with pid %d (%s)", pid, pidfile)
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return 0, err
	}
	defer devNull.Close()

	out := devNull
	if logfile != "" {
		out, err = os.OpenFile(logfile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return 0, fmt.Errorf("failed to open log file: %w", err)
		}
		defer out.Close()
	}

	pwd, err := os.Getwd()
	if err != nil {
		return 0, err
	}

	proc, err := os.StartProcess(argv[0], argv, &os.ProcAttr{
		Dir:   pwd,
		Env:   os.Environ(),
		Files: []*os.File{devNull, out, out},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := WritePid(pidfile, proc.Pid); err != nil {
		proc.Kill()
		return 0, fmt.Errorf("failed to write pid file: %w", err)
	}

	// Reap the child if this process outlives it.
	go proc.Wait()

	return proc.Pid, nil
}

// Stop sends SIGTERM to the process recorded in pidfile and waits up to
// timeout for it to go away. A stale pid file is removed and reported as
// ErrNotRunning.
func Stop(pidfile string, timeout time.Duration) error {
	pid, ok := Running(pidfile)
	if !ok {
		os.Remove(pidfile)
		return ErrNotRunning
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for alive(pid) {
		if time.Now().After(deadline) {
			return fmt.Errorf("pid %d did not stop within %v", pid, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := os.Remove(pidfile); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func Restart(pidfile string, logfile string, argv []string, timeout time.Duration) (int, error) {
	if err := Stop(pidfile, timeout); err != nil && !errors.Is(err, ErrNotRunning) {
		return 0, err
	}
	return Start(pidfile, logfile, argv)
}
