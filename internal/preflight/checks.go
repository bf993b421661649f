package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"golang.org/x/sys/unix"

	"libconv/internal/ledger"
)

const gib = 1 << 30

// Requirement defines an external binary a run relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// CheckBinaries reports whether each requirement resolves on PATH.
func CheckBinaries(requirements []Requirement) []Result {
	results := make([]Result, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		result := Result{Name: req.Name, Optional: req.Optional}
		switch path, err := exec.LookPath(cmd); {
		case cmd == "":
			result.Detail = "command not configured"
		case err != nil:
			result.Detail = fmt.Sprintf("binary %q not found (%s)", cmd, strings.TrimSpace(req.Description))
		default:
			result.Passed = true
			result.Detail = path
		}
		results = append(results, result)
	}
	return results
}

// CheckLedgerFile verifies that the ledger exists, is readable, and carries
// the required header columns.
func CheckLedgerFile(path string) Result {
	const name = "Ledger file"
	store := ledger.Open(path, "")
	records, err := store.Load()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d records)", path, len(records))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCreatableDirectory passes when path is an accessible directory, or
// when it does not exist yet and its nearest existing ancestor is writable.
func CheckCreatableDirectory(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return CheckDirectoryAccess(name, path)
	}
	ancestor, err := existingAncestor(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, ancestor, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created under %s)", path, ancestor)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minGiB free. A zero minimum reports the free space without failing.
func CheckFreeSpace(ctx context.Context, name, path string, minGiB int) Result {
	target, err := existingAncestor(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	usage, err := disk.UsageWithContext(ctx, target)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", target, err)}
	}
	freeGiB := float64(usage.Free) / gib
	detail := fmt.Sprintf("%.1f GiB free on %s", freeGiB, target)
	if minGiB > 0 && usage.Free < uint64(minGiB)*gib {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %d GiB)", detail, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckMediaServer verifies media server connectivity and authentication.
func CheckMediaServer(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Media server"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/Users", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	req.Header.Set("X-Emby-Token", strings.TrimSpace(apiKey))

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%v)", err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("auth check failed (%d)", resp.StatusCode)}
	}
}

func existingAncestor(path string) (string, error) {
	current, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(current); err == nil {
			return current, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor of %s", path)
		}
		current = parent
	}
}
