//go:build !unix && !windows

package file

import "os"

// Platforms without advisory file locks rely on the in-process mutex only.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
