//go:build unix

package rules

import "golang.org/x/sys/unix"

func osVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return majorMinor(unix.ByteSliceToString(uts.Release[:]))
}
