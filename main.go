package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/evalphobia/logrus_sentry"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/aptible/superbackup/backup"
	"github.com/aptible/superbackup/daemon"
	"github.com/aptible/superbackup/log/formatter"
	"github.com/aptible/superbackup/log/hook"
	"github.com/aptible/superbackup/program"
	"github.com/aptible/superbackup/prometheus_metrics"
	"github.com/aptible/superbackup/scheduler"
)

var Usage = func() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [PROGRAM]\n\nAvailable options:\n", os.Args[0])
	flag.PrintDefaults()
}

const (
	reloadDebounce = 250 * time.Millisecond
	stopTimeout    = 30 * time.Second
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	json := flag.Bool("json", false, "enable JSON logging")
	splitLogs := flag.Bool("split-logs", false, "log debug and info to stdout, everything else to stderr")
	logFormat := flag.String("log-format", "", "custom log line format, e.g. \"%time %level %message %source\"")
	file := flag.String("file", "", "backup program file (alternative to the positional argument)")
	test := flag.Bool("test", false, "check the backup program and exit without running backups")
	inotify := flag.Bool("inotify", false, "reload the backup program when the file changes")
	prometheusListen := flag.String("prometheus-listen-address", "", fmt.Sprintf("serve Prometheus metrics on this address (default port %s)", prometheus_metrics.DefaultPort))
	sentryDsn := flag.String("sentry-dsn", "", "report errors to Sentry using this DSN")
	sentryEnvironment := flag.String("sentry-environment", "", "Sentry environment tag")
	sentryRelease := flag.String("sentry-release", "", "Sentry release tag")
	noReap := flag.Bool("no-reap", false, "do not reap zombie processes when running as pid 1")
	daemonize := flag.Bool("daemonize", false, "run in the background")
	stop := flag.Bool("stop", false, "stop the background instance")
	restart := flag.Bool("restart", false, "restart the background instance")
	pidfile := flag.String("pidfile", "run.pid", "pid file of the background instance")
	logfile := flag.String("logfile", "", "log file of the background instance (default: discard)")
	flag.Usage = Usage
	flag.Parse()

	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	switch {
	case *json:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case *logFormat != "":
		logrus.SetFormatter(&formatter.CustomFieldFormatter{LogFormat: *logFormat})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if *splitLogs {
		hook.RegisterSplitLogger(logrus.StandardLogger(), os.Stdout, os.Stderr)
	}

	if *stop {
		logrus.Info("stopping daemon")
		if err := daemon.Stop(*pidfile, stopTimeout); err != nil {
			logrus.Fatal(err)
		}
		return
	}

	programFileName := *file
	if programFileName == "" && flag.NArg() == 1 {
		programFileName = flag.Arg(0)
	}
	if programFileName == "" || flag.NArg() > 1 {
		Usage()
		os.Exit(2)
		return
	}

	if *daemonize || *restart {
		runLifecycle(programFileName, *pidfile, *logfile, *restart)
		return
	}

	if !*noReap && os.Getpid() == 1 {
		forkExec()
		return
	}

	prog, err := readProgramAtPath(programFileName)
	if err != nil {
		logrus.Fatal(err)
		return
	}

	if *test {
		logrus.Infof("program is valid: %d backups, %d scheduled", len(prog.Instructions), len(prog.Conditional()))
		os.Exit(0)
		return
	}

	promMetrics := prometheus_metrics.New(*prometheusListen)

	if *prometheusListen != "" {
		go func() {
			logrus.Infof("serving metrics on %s", *prometheusListen)
			if err := promMetrics.InitHTTPServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Fatalf("prometheus http server failed: %s", err)
			}
		}()
	}

	if *sentryDsn != "" {
		sh, err := logrus_sentry.NewSentryHook(*sentryDsn, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			logrus.Fatalf("could not init sentry logger: %s", err)
			return
		}
		sh.Timeout = 5 * time.Second
		if *sentryEnvironment != "" {
			sh.SetEnvironment(*sentryEnvironment)
		}
		if *sentryRelease != "" {
			sh.SetRelease(*sentryRelease)
		}
		logrus.AddHook(sh)
	}

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)

	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if *inotify {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logrus.Fatalf("failed to create file watcher: %s", err)
			return
		}
		defer watcher.Close()

		// Editors often replace the file, so watch its directory.
		if err := watcher.Add(filepath.Dir(programFileName)); err != nil {
			logrus.Fatalf("failed to watch %s: %s", programFileName, err)
			return
		}
		watchEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	sched := scheduler.New(
		backup.NewExecutor(backup.OSFilesystem{}),
		logrus.WithFields(logrus.Fields{"program": programFileName}),
		promMetrics,
	)

	for {
		promMetrics.Reset()

		exitCtx, notifyExit := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func(prog *program.Program) {
			defer close(done)
			sched.Run(exitCtx, prog)
		}(prog)

		sddaemon.SdNotify(false, sddaemon.SdNotifyReady)

		var debounce <-chan time.Time
		var next *program.Program

		for next == nil {
			select {
			case termSig := <-termChan:
				if termSig == syscall.SIGUSR2 {
					logrus.Infof("received %s, reloading program", termSig)
					next = tryReload(programFileName)
					continue
				}

				logrus.Infof("received %s, shutting down", termSig)
				sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)
				notifyExit()
				if done != nil {
					<-done
				}

				shutdownMetrics(promMetrics)
				logrus.Info("exiting")
				return

			case <-done:
				done = nil
				if !*inotify {
					notifyExit()
					shutdownMetrics(promMetrics)
					logrus.Info("all backups done, exiting")
					return
				}
				logrus.Info("no scheduled backups, waiting for program changes")

			case ev := <-watchEvents:
				if filepath.Base(ev.Name) != filepath.Base(programFileName) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					logrus.Debugf("program file event: %s", ev)
					debounce = time.After(reloadDebounce)
				}

			case err := <-watchErrors:
				logrus.Warnf("file watcher error: %s", err)

			case <-debounce:
				debounce = nil
				logrus.Infof("program file changed, reloading")
				next = tryReload(programFileName)
			}
		}

		sddaemon.SdNotify(false, sddaemon.SdNotifyReloading)
		notifyExit()
		if done != nil {
			<-done
		}
		prog = next
	}
}

func readProgramAtPath(path string) (*program.Program, error) {
	logrus.Infof("read program: %s", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return program.ParseProgram(file)
}

// tryReload returns nil when the new program cannot be read, in which case
// the running one stays in place.
func tryReload(path string) *program.Program {
	prog, err := readProgramAtPath(path)
	if err != nil {
		logrus.Errorf("keeping current program, reload failed: %s", err)
		return nil
	}
	return prog
}

func shutdownMetrics(promMetrics *prometheus_metrics.PrometheusMetrics) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := promMetrics.ShutdownHTTPServer(ctx); err != nil {
		logrus.Warnf("failed to shut down metrics server: %s", err)
	}
}

func runLifecycle(programFileName string, pidfile string, logfile string, restart bool) {
	// Fail in the foreground rather than in a detached child.
	if _, err := readProgramAtPath(programFileName); err != nil {
		logrus.Fatal(err)
		return
	}

	exe, err := os.Executable()
	if err != nil {
		logrus.Fatalf("failed to get executable path: %s", err)
		return
	}

	argv := append([]string{exe}, daemon.ChildArgs(os.Args[1:], "daemonize", "restart", "stop")...)

	var pid int
	if restart {
		logrus.Info("restarting daemon")
		pid, err = daemon.Restart(pidfile, logfile, argv, stopTimeout)
	} else {
		logrus.Info("starting daemon")
		pid, err = daemon.Start(pidfile, logfile, argv)
	}
	if err != nil {
		logrus.Fatal(err)
		return
	}

	logrus.Infof("daemon running with pid %d (%s)", pid, pidfile)
}
