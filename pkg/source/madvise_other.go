//go:build !linux && !darwin && !freebsd

package source

func adviseRandom(region []byte) {}
