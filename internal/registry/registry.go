// Package registry tracks running icpcd instances, one per workspace, so
// icpcctl can discover the right daemon to talk to and a second `icpcd
// start` for the same workspace refuses to run rather than racing the
// first over the same SQLite file. Generalized from the teacher's
// instance-registry concept directly onto gofrs/flock rather than through
// an intermediate lockfile abstraction.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Instance describes one registered daemon.
type Instance struct {
	WorkspacePath string    `json:"workspace_path"`
	PID           int       `json:"pid"`
	SocketPath    string    `json:"socket_path"`
	DBPath        string    `json:"db_path"`
	StartedAt     time.Time `json:"started_at"`
}

// Registry manages the on-disk instance directory under dataDir/instances.
type Registry struct {
	dir string
}

// New constructs a Registry rooted at dataDir (typically <workspace>/.icpc).
func New(dataDir string) *Registry {
	return &Registry{dir: filepath.Join(dataDir, "instances")}
}

// key derives a filesystem-safe, stable identifier for a workspace path.
func key(workspacePath string) string {
	sum := sha256.Sum256([]byte(workspacePath))
	return hex.EncodeToString(sum[:])[:16]
}

func (r *Registry) paths(workspacePath string) (jsonPath, lockPath string) {
	k := key(workspacePath)
	return filepath.Join(r.dir, k+".json"), filepath.Join(r.dir, k+".lock")
}

// Acquire registers inst for its workspace, failing if another live
// instance already holds the lock for that workspace. The returned
// release func must be called on shutdown to free the lock and remove the
// registration.
func (r *Registry) Acquire(inst Instance) (release func() error, err error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	jsonPath, lockPath := r.paths(inst.WorkspacePath)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("registry: an icpcd instance is already running for %s", inst.WorkspacePath)
	}

	inst.StartedAt = time.Now()
	data, err := json.Marshal(inst)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("marshal instance record: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("write instance record: %w", err)
	}

	release = func() error {
		_ = os.Remove(jsonPath)
		return lock.Unlock()
	}
	return release, nil
}

// Lookup returns the registered instance for workspacePath, if any. A
// present file whose lock is not actually held (a crashed daemon left it
// behind) is reported as not-found, since the process is no longer alive.
func (r *Registry) Lookup(workspacePath string) (Instance, bool, error) {
	jsonPath, lockPath := r.paths(workspacePath)

	data, err := os.ReadFile(jsonPath)
	if os.IsNotExist(err) {
		return Instance{}, false, nil
	}
	if err != nil {
		return Instance{}, false, fmt.Errorf("read instance record: %w", err)
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return Instance{}, false, fmt.Errorf("probe instance lock: %w", err)
	}
	if locked {
		// We just acquired a lock nobody held — the prior instance is dead.
		_ = lock.Unlock()
		_ = os.Remove(jsonPath)
		return Instance{}, false, nil
	}

	var inst Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return Instance{}, false, fmt.Errorf("parse instance record: %w", err)
	}
	return inst, true, nil
}

// List returns every registered instance, live or stale (callers wanting
// only live ones should cross-check with Lookup).
func (r *Registry) List() ([]Instance, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list registry dir: %w", err)
	}

	var out []Instance
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			continue
		}
		var inst Instance
		if err := json.Unmarshal(data, &inst); err != nil {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}
