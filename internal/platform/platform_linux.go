//go:build linux

package platform

import "golang.org/x/sys/unix"

func populateFlag(populate bool) int {
	if populate {
		return unix.MAP_POPULATE
	}
	return 0
}

// mapTiered maps with the three-tier large-page strategy on Linux:
// explicit MAP_HUGETLB, then a standard mapping with a transparent
// huge-page hint, then a plain mapping.
func mapTiered(fd, length, prot, flags int, hugePages bool) ([]byte, error) {
	if hugePages {
		if data, err := unix.Mmap(fd, 0, length, prot, flags|unix.MAP_HUGETLB); err == nil {
			return data, nil
		}
	}
	data, err := unix.Mmap(fd, 0, length, prot, flags)
	if err != nil {
		return nil, err
	}
	if hugePages {
		// Hint only. THP eligibility is up to the kernel.
		_ = unix.Madvise(data, unix.MADV_HUGEPAGE)
	}
	return data, nil
}
