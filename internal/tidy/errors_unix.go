//go:build unix

package tidy

import (
	"errors"
	"syscall"
)

// errnoKind maps platform errnos that have no io/fs sentinel.
func errnoKind(err error) ErrorKind {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ""
	}
	switch errno {
	case syscall.ENOSPC, syscall.EDQUOT:
		return KindDiskFull
	case syscall.EBUSY, syscall.ETXTBSY:
		return KindFileInUse
	case syscall.EROFS:
		return KindReadOnlyFile
	case syscall.ENOTEMPTY:
		return KindDirectoryNotEmpty
	case syscall.EEXIST:
		return KindNameConflict
	case syscall.EINVAL, syscall.ENAMETOOLONG, syscall.ENOTDIR, syscall.EISDIR:
		return KindInvalidPath
	}
	return ""
}
