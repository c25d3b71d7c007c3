// File: internal/interfaces/block_device.go
package interfaces

// BlockDevice is the contract between the filesystem core and the backing
// store: a fixed-size byte store partitioned into equal blocks. Writes are
// atomic at block granularity and durable before WriteBlock returns; there
// is no caching layer, so callers read before partial modification.
type BlockDevice interface {
	// ReadBlock fills buf with block n. buf must be exactly one block.
	ReadBlock(n int32, buf []byte) error

	// WriteBlock writes buf as block n. buf must be exactly one block.
	WriteBlock(n int32, buf []byte) error

	// BlockSize returns the size of a single block in bytes.
	BlockSize() int32

	// TotalBlocks returns the number of blocks on the device.
	TotalBlocks() int32

	// Size returns the total device size in bytes.
	Size() int64

	// Close releases the device.
	Close() error
}
