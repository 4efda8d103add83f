package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/containerd/errdefs"
	"github.com/hostsync/hostsync/pkg/confpatch"
	"github.com/hostsync/hostsync/pkg/types"
	"github.com/hostsync/hostsync/pkg/utils"
	"github.com/moby/sys/atomicwriter"
	"github.com/moby/sys/signal"
	log "github.com/sirupsen/logrus"
)

// Supervisor starts and stops installed applications.
type Supervisor interface {
	// Start launches the installed version of entry unless it is already running.
	Start(dist string, entry types.Entry, version string) error
	// Stop stops alias. errdefs.ErrNotFound means it was not running.
	Stop(dist, alias string) error
}

const (
	DefaultStopTimeout = 10 * time.Second
	defaultStopSignal  = "SIGTERM"
)

// Exec supervises applications as child processes tracked by pid files
// kept in the dist directory.
type Exec struct {
	stopSignal  syscall.Signal
	stopTimeout time.Duration

	mu       sync.Mutex
	children map[int]*exec.Cmd
}

// NewExec returns an exec supervisor stopping processes with stopSignal
// (e.g. "SIGTERM", "15"). An empty signal means SIGTERM.
func NewExec(stopSignal string, stopTimeout time.Duration) (*Exec, error) {
	if stopSignal == "" {
		stopSignal = defaultStopSignal
	}
	sig, err := signal.ParseSignal(stopSignal)
	if err != nil {
		return nil, fmt.Errorf("invalid stop signal %q: %w", stopSignal, err)
	}
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Exec{
		stopSignal:  sig,
		stopTimeout: stopTimeout,
		children:    map[int]*exec.Cmd{},
	}, nil
}

// PIDFile returns where the pid of alias is recorded.
func PIDFile(dist, alias string) string {
	return filepath.Join(dist, alias+".pid")
}

// Command returns the executable and arguments used to start entry.
func Command(dist string, entry types.Entry, version string) (string, []string) {
	appDir := confpatch.AppDir(dist, entry.Alias, version)
	if entry.Run != nil && entry.Run.Command != "" {
		return filepath.Join(appDir, filepath.FromSlash(entry.Run.Command)), entry.Run.Args
	}
	name := entry.Alias
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(appDir, string(confpatch.FolderBin), name), nil
}

func (s *Exec) Start(dist string, entry types.Entry, version string) error {
	if version == "" {
		return fmt.Errorf("cannot start %s: %w", entry.Alias, types.ErrNotInstalled)
	}

	if pid, dir, err := readPID(PIDFile(dist, entry.Alias)); err == nil && s.owns(pid, dir) {
		log.Debugf("%s is already running (pid %d)", entry.Alias, pid)
		return nil
	}

	path, args := Command(dist, entry, version)
	if !utils.IsNonEmptyFile(filepath.Dir(path), filepath.Base(path)) {
		return fmt.Errorf("cannot start %s: %s: %w", entry.Alias, path, types.ErrNotInstalled)
	}
	cmd := exec.Command(path, args...)
	cmd.Dir = absDir(confpatch.AppDir(dist, entry.Alias, version))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	log.Infof("Starting %s %s", entry.Name(), version)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", entry.Alias, err)
	}

	fields := log.Fields{"alias": entry.Alias}
	go utils.LogPipeWithFields(stdout, log.InfoLevel, fields)
	go utils.LogPipeWithFields(stderr, log.WarnLevel, fields)

	pid := cmd.Process.Pid
	pidFile := PIDFile(dist, entry.Alias)
	if err := atomicwriter.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n%s\n", pid, cmd.Dir)), 0o644); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("failed to record pid for %s: %w", entry.Alias, err)
	}

	s.mu.Lock()
	s.children[pid] = cmd
	s.mu.Unlock()

	go s.reap(pid, cmd, pidFile, entry.Alias)
	return nil
}

func (s *Exec) reap(pid int, cmd *exec.Cmd, pidFile, alias string) {
	err := cmd.Wait()
	log.Debugf("%s (pid %d) exited: %v", alias, pid, err)

	s.mu.Lock()
	delete(s.children, pid)
	s.mu.Unlock()

	if current, _, rerr := readPID(pidFile); rerr == nil && current == pid {
		_ = os.Remove(pidFile)
	}
}

func (s *Exec) Stop(dist, alias string) error {
	pidFile := PIDFile(dist, alias)
	pid, dir, err := readPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s is not running: %w", alias, errdefs.ErrNotFound)
		}
		return err
	}
	if !s.owns(pid, dir) {
		log.Debugf("Ignoring stale pid file %s (pid %d)", pidFile, pid)
		_ = os.Remove(pidFile)
		return fmt.Errorf("%s is not running: %w", alias, errdefs.ErrNotFound)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find %s (pid %d): %w", alias, pid, err)
	}

	log.Infof("Stopping %s (pid %d)", alias, pid)
	if err := proc.Signal(s.stopSignal); err != nil {
		log.Debugf("Signal %v to %s failed, killing: %v", s.stopSignal, alias, err)
		if kerr := proc.Kill(); kerr != nil {
			return fmt.Errorf("failed to stop %s (pid %d): %w", alias, pid, kerr)
		}
	}

	if !s.waitExit(pid) {
		log.Warnf("%s (pid %d) did not exit within %v, killing", alias, pid, s.stopTimeout)
		if err := proc.Kill(); err != nil {
			return fmt.Errorf("failed to kill %s (pid %d): %w", alias, pid, err)
		}
		s.waitExit(pid)
	}

	_ = os.Remove(pidFile)
	return nil
}

// waitExit polls until pid is gone or the stop timeout elapses.
func (s *Exec) waitExit(pid int) bool {
	deadline := time.Now().Add(s.stopTimeout)
	for time.Now().Before(deadline) {
		if !s.alive(pid) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return !s.alive(pid)
}

// alive treats our own children as running until the reaper has waited on
// them, so an exited but unreaped child is never probed by pid.
func (s *Exec) alive(pid int) bool {
	s.mu.Lock()
	_, ours := s.children[pid]
	s.mu.Unlock()
	return ours || processAlive(pid)
}

// owns reports whether pid is an application we started. Pids outlive
// reboots and agent restarts in pid files, so a pid that is not our child
// must still be running inside the install directory recorded next to it.
func (s *Exec) owns(pid int, dir string) bool {
	s.mu.Lock()
	_, ours := s.children[pid]
	s.mu.Unlock()
	if ours {
		return true
	}
	return dir != "" && processAlive(pid) && processRunsIn(pid, dir)
}

// readPID returns the pid and the install directory recorded in a pid file.
func readPID(path string) (int, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, "", err
	}
	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return 0, "", fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	dir := ""
	if len(lines) > 1 {
		dir = strings.TrimSpace(lines[1])
	}
	return pid, dir, nil
}

func absDir(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		dir = real
	}
	return dir
}
