package sqlite

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ncruces/go-sqlite3"
	"github.com/tetratelabs/wazero"
)

// configureWazeroCache sets the driver's wazero compilation cache before
// the first connection is opened, so the SQLite WASM module is compiled
// once and reused across process restarts instead of paying the
// compilation cost on every icpcd startup. Best-effort: a cache directory
// that can't be created just leaves compilation uncached, never fatal.
var configureWazeroCache = sync.OnceFunc(func() {
	dir, err := os.UserCacheDir()
	if err != nil {
		return
	}
	cacheDir := filepath.Join(dir, "icpc", "wazero")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return
	}
	cache, err := wazero.NewCompilationCacheWithDir(cacheDir)
	if err != nil {
		return
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
})
