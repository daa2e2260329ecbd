// SPDX-License-Identifier: GPL-2.0-only

// Package lifecycle manages the daemon's PID file and single-instance
// guard, grounded on the original's lifecycle.py: a PID file under the
// system temp dir keyed by port, a liveness probe via signal 0, a port
// probe via a loopback TCP dial, and daemon stop by SIGTERM (SIGKILL
// when forced).
package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	coreerrors "github.com/efficientgo/core/errors"
)

const (
	DefaultPort = 5050
	DefaultHost = "127.0.0.1"
)

// PIDFilePath returns the path of the PID file for a daemon on the given
// port, placed under the OS temp directory so a reboot cleans it up.
func PIDFilePath(port int) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("vest-daemon-%d.pid", port))
}

// WritePIDFile records the current process's PID for the given port.
func WritePIDFile(port int) (string, error) {
	path := PIDFilePath(port)
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return "", coreerrors.Wrap(err, "lifecycle: write pid file")
	}
	return path, nil
}

// ReadPIDFile returns the PID recorded for the given port, or ok=false if
// the file is missing or unparsable.
func ReadPIDFile(port int) (pid int, ok bool) {
	data, err := os.ReadFile(PIDFilePath(port))
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// RemovePIDFile deletes the PID file for the given port, ignoring a
// missing file.
func RemovePIDFile(port int) {
	_ = os.Remove(PIDFilePath(port))
}

// IsProcessRunning sends signal 0 to probe for a live process without
// affecting it, matching os.kill(pid, 0) in the original.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrProcessDone) {
		return false
	}
	// EPERM means the process exists but we can't signal it.
	return errors.Is(err, syscall.EPERM)
}

// IsPortInUse reports whether something is already accepting connections
// on host:port.
func IsPortInUse(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Status is the daemon liveness tuple returned by GetDaemonStatus.
type Status struct {
	Running bool
	PID     int // 0 when unknown
	Message string
}

// GetDaemonStatus reconciles the PID file against an actual port probe,
// matching get_daemon_status: a live process AND a responsive port means
// running; a stale PID file with no listener gets cleaned up.
func GetDaemonStatus(host string, port int) Status {
	pid, havePID := ReadPIDFile(port)
	portInUse := IsPortInUse(host, port)

	if havePID && IsProcessRunning(pid) {
		if portInUse {
			return Status{Running: true, PID: pid, Message: fmt.Sprintf("daemon running (pid %d) on %s:%d", pid, host, port)}
		}
		return Status{Running: false, PID: pid, Message: fmt.Sprintf("pid file exists (%d) but daemon not responding", pid)}
	}

	if portInUse {
		return Status{Running: false, Message: fmt.Sprintf("port %d is in use by another process", port)}
	}

	if havePID {
		RemovePIDFile(port)
	}
	return Status{Running: false, Message: "daemon not running"}
}

// StopDaemon sends SIGTERM (or SIGKILL if force) to the recorded PID and
// waits up to one second for it to exit, matching stop_daemon's
// 10x100ms poll loop.
func StopDaemon(host string, port int, force bool) (bool, string) {
	status := GetDaemonStatus(host, port)
	if !status.Running {
		if status.PID != 0 {
			RemovePIDFile(port)
			return true, "cleaned up stale pid file"
		}
		return false, "daemon is not running"
	}

	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	proc, err := os.FindProcess(status.PID)
	if err != nil {
		RemovePIDFile(port)
		return true, "daemon already stopped"
	}
	if err := proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			RemovePIDFile(port)
			return true, "daemon already stopped"
		}
		return false, fmt.Sprintf("permission denied to stop pid %d", status.PID)
	}

	for i := 0; i < 10; i++ {
		time.Sleep(100 * time.Millisecond)
		if !IsProcessRunning(status.PID) {
			RemovePIDFile(port)
			return true, fmt.Sprintf("daemon stopped (pid %d)", status.PID)
		}
	}

	if force {
		RemovePIDFile(port)
		return false, fmt.Sprintf("sent sigkill to pid %d but process may still be running", status.PID)
	}
	return false, fmt.Sprintf("sent sigterm to pid %d - process still running, try --force", status.PID)
}

// PingDaemon dials host:port, sends a ping command, and waits up to three
// seconds for a matching "response":"ping" line, tolerating interleaved
// events (e.g. client_connected) the way the original's line-buffered
// scan does.
func PingDaemon(host string, port int) (bool, map[string]any) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 5*time.Second)
	if err != nil {
		return false, map[string]any{"error": err.Error()}
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"cmd": "ping"}` + "\n")); err != nil {
		return false, map[string]any{"error": err.Error()}
	}

	deadline := time.Now().Add(3 * time.Second)
	var buf []byte
	chunk := make([]byte, 4096)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for _, line := range strings.Split(strings.TrimSpace(string(buf)), "\n") {
				var data map[string]any
				if jsonErr := json.Unmarshal([]byte(line), &data); jsonErr != nil {
					continue
				}
				if data["response"] == "ping" {
					return true, data
				}
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			break
		}
	}
	return false, map[string]any{"error": "no ping response received"}
}
