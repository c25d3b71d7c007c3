// File: internal/types/binary.go
package types

import (
	"encoding/binary"
	"fmt"
)

// On-disk encoding is little-endian, packed, with explicit offsets. Block
// pointers and inode numbers are int32 so the -1 sentinel round-trips.

// DecodeSuperblock parses block 0. The free-inode cache occupies the
// remainder of the block after the fixed header.
func DecodeSuperblock(data []byte) (*Superblock, error) {
	if len(data) < SuperblockHeaderSize {
		return nil, fmt.Errorf("superblock: data too short: %d bytes", len(data))
	}
	le := binary.LittleEndian

	var sb Superblock
	sb.Checksum = le.Uint64(data[0:8])
	sb.Magic = le.Uint32(data[8:12])
	sb.Version = le.Uint32(data[12:16])
	copy(sb.UUID[:], data[16:32])
	sb.DiskSize = int64(le.Uint64(data[32:40]))
	sb.BlockSize = int32(le.Uint32(data[40:44]))
	sb.InodeSize = int32(le.Uint32(data[44:48]))
	sb.NumDataBlocks = int32(le.Uint32(data[48:52]))
	sb.NumInodes = int32(le.Uint32(data[52:56]))
	sb.UsedInodes = int32(le.Uint32(data[56:60]))
	sb.UsedBlocks = int32(le.Uint32(data[60:64]))
	sb.NumGroups = int32(le.Uint32(data[64:68]))
	sb.FirstDataBlock = int32(le.Uint32(data[68:72]))
	sb.NextInodeScan = int32(le.Uint32(data[72:76]))

	slots := (len(data) - SuperblockHeaderSize) / 4
	sb.FreeInodeCache = make([]int32, slots)
	off := SuperblockHeaderSize
	for i := 0; i < slots; i++ {
		sb.FreeInodeCache[i] = int32(le.Uint32(data[off : off+4]))
		off += 4
	}
	return &sb, nil
}

// EncodeSuperblock serializes the superblock into a block-sized buffer. The
// checksum field is written as-is; sealing is the caller's concern.
func (sb *Superblock) EncodeSuperblock(data []byte) error {
	if len(data) < SuperblockHeaderSize {
		return fmt.Errorf("superblock: buffer too short: %d bytes", len(data))
	}
	le := binary.LittleEndian

	le.PutUint64(data[0:8], sb.Checksum)
	le.PutUint32(data[8:12], sb.Magic)
	le.PutUint32(data[12:16], sb.Version)
	copy(data[16:32], sb.UUID[:])
	le.PutUint64(data[32:40], uint64(sb.DiskSize))
	le.PutUint32(data[40:44], uint32(sb.BlockSize))
	le.PutUint32(data[44:48], uint32(sb.InodeSize))
	le.PutUint32(data[48:52], uint32(sb.NumDataBlocks))
	le.PutUint32(data[52:56], uint32(sb.NumInodes))
	le.PutUint32(data[56:60], uint32(sb.UsedInodes))
	le.PutUint32(data[60:64], uint32(sb.UsedBlocks))
	le.PutUint32(data[64:68], uint32(sb.NumGroups))
	le.PutUint32(data[68:72], uint32(sb.FirstDataBlock))
	le.PutUint32(data[72:76], uint32(sb.NextInodeScan))
	le.PutUint32(data[76:80], 0)

	off := SuperblockHeaderSize
	for _, ino := range sb.FreeInodeCache {
		if off+4 > len(data) {
			return fmt.Errorf("superblock: free-inode cache overflows block")
		}
		le.PutUint32(data[off:off+4], uint32(ino))
		off += 4
	}
	return nil
}

// DecodeInode parses one inode record from its 128-byte slot.
func DecodeInode(data []byte) (*Inode, error) {
	if len(data) < int(InodeSize) {
		return nil, fmt.Errorf("inode: data too short: %d bytes", len(data))
	}
	le := binary.LittleEndian

	var in Inode
	in.Ino = int32(le.Uint32(data[0:4]))
	in.Size = int32(le.Uint32(data[4:8]))
	in.UID = le.Uint32(data[8:12])
	in.GID = le.Uint32(data[12:16])
	in.ACL = le.Uint32(data[16:20])
	in.Ctime = int64(le.Uint64(data[20:28]))
	in.Mtime = int64(le.Uint64(data[28:36]))
	in.Atime = int64(le.Uint64(data[36:44]))
	in.Links = int32(le.Uint32(data[44:48]))
	off := 48
	for i := 0; i < NumBlockPtrs; i++ {
		in.Block[i] = int32(le.Uint32(data[off : off+4]))
		off += 4
	}
	return &in, nil
}

// EncodeInode serializes an inode into its 128-byte slot, zeroing the
// reserved tail so a formatted table stays byte-stable across rewrites.
func (in *Inode) EncodeInode(data []byte) error {
	if len(data) < int(InodeSize) {
		return fmt.Errorf("inode: buffer too short: %d bytes", len(data))
	}
	le := binary.LittleEndian

	le.PutUint32(data[0:4], uint32(in.Ino))
	le.PutUint32(data[4:8], uint32(in.Size))
	le.PutUint32(data[8:12], in.UID)
	le.PutUint32(data[12:16], in.GID)
	le.PutUint32(data[16:20], in.ACL)
	le.PutUint64(data[20:28], uint64(in.Ctime))
	le.PutUint64(data[28:36], uint64(in.Mtime))
	le.PutUint64(data[36:44], uint64(in.Atime))
	le.PutUint32(data[44:48], uint32(in.Links))
	off := 48
	for i := 0; i < NumBlockPtrs; i++ {
		le.PutUint32(data[off:off+4], uint32(in.Block[i]))
		off += 4
	}
	for i := off; i < int(InodeSize); i++ {
		data[i] = 0
	}
	return nil
}

// DecodeDirEntry parses one 259-byte directory record. The name ends at the
// first NUL.
func DecodeDirEntry(data []byte) (*DirEntry, error) {
	if len(data) < DirEntrySize {
		return nil, fmt.Errorf("direntry: data too short: %d bytes", len(data))
	}
	e := &DirEntry{Ino: int32(binary.LittleEndian.Uint32(data[0:4]))}
	name := data[4:DirEntrySize]
	for i, b := range name {
		if b == 0 {
			name = name[:i]
			break
		}
	}
	e.Name = string(name)
	return e, nil
}

// EncodeDirEntry serializes a directory record. Names longer than MaxNameLen
// are rejected rather than silently truncated.
func (e *DirEntry) EncodeDirEntry(data []byte) error {
	if len(data) < DirEntrySize {
		return fmt.Errorf("direntry: buffer too short: %d bytes", len(data))
	}
	if len(e.Name) > MaxNameLen {
		return fmt.Errorf("direntry: name %q exceeds %d bytes", e.Name, MaxNameLen)
	}
	binary.LittleEndian.PutUint32(data[0:4], uint32(e.Ino))
	n := copy(data[4:], e.Name)
	for i := 4 + n; i < DirEntrySize; i++ {
		data[i] = 0
	}
	return nil
}
