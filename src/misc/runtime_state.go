package misc

import "sync"

var (
	runtimePlatformMode = DefaultPlatformMode()
	runtimeVerboseLevel = int64(0)
	runtimeStateLock    sync.RWMutex
)

// SetRuntimePlatformMode updates the global runtime platform mode.
func SetRuntimePlatformMode(mode PlatformMode) {
	runtimeStateLock.Lock()
	defer runtimeStateLock.Unlock()

	runtimePlatformMode = mode
}

// RuntimePlatformMode returns the currently configured platform mode.
func RuntimePlatformMode() PlatformMode {
	runtimeStateLock.RLock()
	defer runtimeStateLock.RUnlock()

	return runtimePlatformMode
}

// SetRuntimeVerboseLevel updates the global verbosity used by cycle loggers.
func SetRuntimeVerboseLevel(level int64) {
	runtimeStateLock.Lock()
	defer runtimeStateLock.Unlock()

	runtimeVerboseLevel = level
}

// RuntimeVerboseLevel returns the currently configured verbosity.
func RuntimeVerboseLevel() int64 {
	runtimeStateLock.RLock()
	defer runtimeStateLock.RUnlock()

	return runtimeVerboseLevel
}
