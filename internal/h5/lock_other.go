//go:build !unix

package h5

import "os"

func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
