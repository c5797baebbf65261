// Background process management for the kaapav server.
//
// Usage:
//
//	kaapav server start     start as background daemon
//	kaapav server stop      send SIGTERM and wait for the drain
//	kaapav server restart   stop + start
//	kaapav server reload    send SIGHUP (re-reads log settings)
//	kaapav server status    check the running process
//	kaapav server           run in the foreground
package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dayuer/kaapav-go/internal/utils"
)

const (
	pidFileName = "kaapav.pid"
	logFileName = "kaapav.log"
)

func init() {
	serverCmd.AddCommand(startCmd)
	serverCmd.AddCommand(stopCmd)
	serverCmd.AddCommand(restartCmd)
	serverCmd.AddCommand(reloadCmd)
	serverCmd.AddCommand(serverStatusCmd)
}

func pidFilePath() string {
	return filepath.Join(utils.GetDataPath(), pidFileName)
}

func writePID(pid int) error {
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

// isRunning checks if a process with the given PID is alive.
func isRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// getRunningPID returns the server PID, clearing a stale pid file.
func getRunningPID() (int, bool) {
	pid, err := readPID()
	if err != nil {
		return 0, false
	}
	if !isRunning(pid) {
		removePID()
		return 0, false
	}
	return pid, true
}

// spawnServer re-executes this binary as a detached foreground server.
func spawnServer(exe string) (*os.Process, string, error) {
	serverArgs := []string{"server"}
	if configPath != "" {
		serverArgs = append(serverArgs, "--config", configPath)
	}
	if envFile != "" {
		serverArgs = append(serverArgs, "--env-file", envFile)
	}
	if serverPort != 0 {
		serverArgs = append(serverArgs, "--port", strconv.Itoa(serverPort))
	}
	if serverAdminToken != "" {
		serverArgs = append(serverArgs, "--admin-token", serverAdminToken)
	}

	logFile := filepath.Join(utils.GetDataPath(), logFileName)
	outFile, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, "", errors.Wrap(err, "cannot open log file")
	}
	defer outFile.Close()

	proc := exec.Command(exe, serverArgs...)
	proc.Stdout = outFile
	proc.Stderr = outFile
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	proc.Env = os.Environ()

	if err := proc.Start(); err != nil {
		return nil, "", errors.Wrap(err, "failed to start server")
	}
	return proc.Process, logFile, nil
}

// stopServer sends SIGTERM, waits up to timeout for the lanes to drain, then
// kills the process.
func stopServer(pid int, timeout time.Duration) {
	if proc, err := os.FindProcess(pid); err == nil {
		proc.Signal(syscall.SIGTERM)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !isRunning(pid) {
			removePID()
			return
		}
		time.Sleep(500 * time.Millisecond)
	}

	if proc, err := os.FindProcess(pid); err == nil {
		proc.Signal(syscall.SIGKILL)
	}
	time.Sleep(500 * time.Millisecond)
	removePID()
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the kaapav server as a background daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pid, ok := getRunningPID(); ok {
			return fmt.Errorf("kaapav server is already running (PID %d)", pid)
		}

		exe, err := os.Executable()
		if err != nil {
			return errors.Wrap(err, "cannot find executable")
		}

		proc, logFile, err := spawnServer(exe)
		if err != nil {
			return err
		}
		pid := proc.Pid
		proc.Release()
		if err := writePID(pid); err != nil {
			return errors.Wrap(err, "writing pid file")
		}

		fmt.Printf("✅ kaapav server started (PID %d)\n", pid)
		fmt.Printf("   PID file: %s\n", pidFilePath())
		fmt.Printf("   Log: %s\n", logFile)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running kaapav server",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, ok := getRunningPID()
		if !ok {
			fmt.Println("ℹ️ kaapav server is not running")
			return nil
		}

		fmt.Printf("🛑 Stopping kaapav server (PID %d)...\n", pid)
		stopServer(pid, 15*time.Second)
		fmt.Println("✅ Stopped")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the kaapav server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pid, ok := getRunningPID(); ok {
			fmt.Printf("🔄 Restarting (PID %d)...\n", pid)
			stopServer(pid, 15*time.Second)
		}
		return startCmd.RunE(cmd, args)
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Send SIGHUP to the server (reload log settings)",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, ok := getRunningPID()
		if !ok {
			return errors.New("kaapav server is not running")
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			return err
		}
		if err := proc.Signal(syscall.SIGHUP); err != nil {
			return errors.Wrap(err, "sending SIGHUP")
		}
		fmt.Printf("✅ Reload signal sent (PID %d)\n", pid)
		return nil
	},
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the kaapav server is running",
	Run: func(cmd *cobra.Command, args []string) {
		pid, ok := getRunningPID()
		if !ok {
			fmt.Println("⚫ kaapav server is not running")
			return
		}

		fmt.Printf("✅ kaapav server running (PID %d)\n", pid)
		fmt.Printf("   PID file: %s\n", pidFilePath())

		logFile := filepath.Join(utils.GetDataPath(), logFileName)
		if data, err := os.ReadFile(logFile); err == nil {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			start := len(lines) - 5
			if start < 0 {
				start = 0
			}
			fmt.Println("   Last log lines:")
			for _, l := range lines[start:] {
				fmt.Printf("     %s\n", l)
			}
		}
	},
}
