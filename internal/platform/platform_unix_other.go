//go:build unix && !linux

package platform

import "golang.org/x/sys/unix"

// MAP_POPULATE is Linux-only; elsewhere the populate request has no effect.
func populateFlag(bool) int { return 0 }

// mapTiered has no explicit large-page tier outside Linux; large pages
// silently fall back to the default page size.
func mapTiered(fd, length, prot, flags int, _ bool) ([]byte, error) {
	return unix.Mmap(fd, 0, length, prot, flags)
}
