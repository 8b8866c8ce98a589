package kerrors

// Linux errno values. Responses carry them negated, as the kernel does.
const (
	EPERM        int64 = 1  // Operation not permitted
	ENOENT       int64 = 2  // No such file or directory
	EIO          int64 = 5  // I/O error
	ENXIO        int64 = 6  // No such device or address
	ENOMEM       int64 = 12 // Out of memory
	EBUSY        int64 = 16 // Device or resource busy
	EEXIST       int64 = 17 // File exists
	ENODEV       int64 = 19 // No such device
	ENOTDIR      int64 = 20 // Not a directory
	EISDIR       int64 = 21 // Is a directory
	EINVAL       int64 = 22 // Invalid argument
	ENOSPC       int64 = 28 // No space left on device
	ENAMETOOLONG int64 = 36 // File name too long

	ENOMEM_NEG int64 = -ENOMEM // Out of memory (negative)
	EINVAL_NEG int64 = -EINVAL // Invalid argument (negative)
)
