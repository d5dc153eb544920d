package main

import (
	"os"
	"syscall"

	reaper "github.com/ramr/go-reaper"
	"github.com/sirupsen/logrus"
)

// reaperChildArgs builds the argv of the child started by forkExec. The
// child must not try to become a reaper itself.
func reaperChildArgs(exe string, args []string) []string {
	childArgs := make([]string, 0, len(args)+2)
	childArgs = append(childArgs, exe, "-no-reap")
	if len(args) > 1 {
		childArgs = append(childArgs, args[1:]...)
	}
	return childArgs
}

func forkExec() {
	//  Start background reaping of orphaned child processes.
	go reaper.Reap()

	pwd, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("Failed to get current working directory: %s", err)
		return
	}

	// os.Args[0] may be a bare command name that does not resolve from pwd.
	exe, err := os.Executable()
	if err != nil {
		logrus.Fatalf("Failed to get executable path: %s", err)
		return
	}

	var wstatus syscall.WaitStatus
	pattrs := &syscall.ProcAttr{
		Dir: pwd,
		Env: os.Environ(),
		Sys: &syscall.SysProcAttr{Setsid: true},
		Files: []uintptr{
			uintptr(syscall.Stdin),
			uintptr(syscall.Stdout),
			uintptr(syscall.Stderr),
		},
	}
	pid, err := syscall.ForkExec(exe, reaperChildArgs(exe, os.Args), pattrs)
	if err != nil {
		logrus.Fatalf("Failed to fork exec: %s", err)
		return
	}

	_, err = syscall.Wait4(pid, &wstatus, 0, nil)
	for syscall.EINTR == err {
		_, err = syscall.Wait4(pid, &wstatus, 0, nil)
	}
	if err != nil {
		logrus.Fatalf("Failed to wait: %s", err)
		return
	}
	os.Exit(wstatus.ExitStatus())
}
