//go:build !windows

package supervisor

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// Children are placed in their own process group so signals reach helper
// processes they fork (pyinstaller launchers, node).
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGTERM)
}

func killProcess(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// reclaimPort kills whatever process still listens on the port. Leftovers
// from a previous run would otherwise make the new child fail to bind.
func reclaimPort(port int) {
	out, err := exec.Command("lsof", "-ti", ":"+strconv.Itoa(port)).Output()
	if err != nil {
		return
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid <= 0 {
			continue
		}
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
}
