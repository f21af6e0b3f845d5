package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/Connor22/hydrus/errors"
)

// RunMarkerName returns the run-marker filename for role inside dbDir, e.g.
// "client_running" or "server_running".
func RunMarkerName(role string) string {
	return role + "_running"
}

// WriteRunMarker writes "<pid>\n<create_time>" to <dbDir>/<role>_running,
// so a later process can tell whether the PID recorded there is still this
// same process or a reused PID belonging to something else.
func WriteRunMarker(dbDir, role string) error {
	pid := os.Getpid()
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return errors.Wrap(err, "resolve own process for run marker")
	}
	createTime, err := proc.CreateTime()
	if err != nil {
		return errors.Wrap(err, "read own process create time")
	}

	path := filepath.Join(dbDir, RunMarkerName(role))
	contents := fmt.Sprintf("%d\n%d", pid, createTime)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		return errors.Wrapf(err, "write run marker %s", path)
	}
	return nil
}

// RemoveRunMarker deletes the run marker for role, ignoring a missing file.
func RemoveRunMarker(dbDir, role string) error {
	path := filepath.Join(dbDir, RunMarkerName(role))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove run marker %s", path)
	}
	return nil
}

// AnotherInstanceRunning reads the run marker for role and reports whether
// the recorded PID is still alive with a matching create_time, meaning
// another instance of this role genuinely holds the database.
func AnotherInstanceRunning(dbDir, role string) (bool, error) {
	path := filepath.Join(dbDir, RunMarkerName(role))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read run marker %s", path)
	}

	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	if len(lines) != 2 {
		return false, nil
	}
	pid, err := strconv.Atoi(lines[0])
	if err != nil {
		return false, nil
	}
	recordedCreateTime, err := strconv.ParseInt(lines[1], 10, 64)
	if err != nil {
		return false, nil
	}

	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return false, nil
	}
	createTime, err := proc.CreateTime()
	if err != nil {
		return false, nil
	}
	return createTime == recordedCreateTime, nil
}
