//go:build linux || darwin || freebsd

package source

import "golang.org/x/sys/unix"

// adviseRandom tells the kernel not to read ahead past the mapped block
func adviseRandom(region []byte) {
	_ = unix.Madvise(region, unix.MADV_RANDOM)
}
