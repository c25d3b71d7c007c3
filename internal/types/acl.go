// File: internal/types/acl.go
package types

// The ACL word packs file type and permissions into 11 bits:
//
//	bits 0,1:    file type (00 regular, 01 directory, 10 device, 11 symlink)
//	bits 2,3,4:  owner r/w/x
//	bits 5,6,7:  group r/w/x
//	bits 8,9,10: world r/w/x
//
// Within each 3-bit field the read bit is the lowest. Anything above bit 10
// is corruption and fsck frees the inode carrying it.
const (
	TypeRegular   uint32 = 0
	TypeDirectory uint32 = 1
	TypeDevice    uint32 = 2
	TypeSymlink   uint32 = 3

	aclTypeMask uint32 = 0x3
	aclPermMask uint32 = 0x7FC // bits 2..10
	ACLMask     uint32 = aclTypeMask | aclPermMask
)

// FileType extracts the type bits from an ACL word.
func FileType(acl uint32) uint32 {
	return acl & aclTypeMask
}

// ValidACL reports whether the word uses only the defined 11 bits.
func ValidACL(acl uint32) bool {
	return acl&^ACLMask == 0
}

// NewACL builds an ACL word from a file type and classic 0oXXX permission
// bits (owner in the high octal digit).
func NewACL(ftype uint32, perm uint32) uint32 {
	acl := ftype & aclTypeMask
	acl |= permTriplet(perm>>6) << 2 // owner
	acl |= permTriplet(perm>>3) << 5 // group
	acl |= permTriplet(perm) << 8    // world
	return acl
}

// Perm recovers the classic 0oXXX permission bits from an ACL word.
func Perm(acl uint32) uint32 {
	var perm uint32
	perm |= tripletPerm(acl>>2) << 6
	perm |= tripletPerm(acl>>5) << 3
	perm |= tripletPerm(acl >> 8)
	return perm
}

// SetPerm replaces the permission bits of an ACL word, preserving the type.
func SetPerm(acl uint32, perm uint32) uint32 {
	return FileType(acl) | (NewACL(0, perm) & aclPermMask)
}

// permTriplet converts one octal rwx digit (r=4,w=2,x=1) to the on-disk
// field order (r in the low bit).
func permTriplet(octal uint32) uint32 {
	var t uint32
	if octal&4 != 0 {
		t |= 1 // r
	}
	if octal&2 != 0 {
		t |= 2 // w
	}
	if octal&1 != 0 {
		t |= 4 // x
	}
	return t
}

func tripletPerm(t uint32) uint32 {
	var octal uint32
	if t&1 != 0 {
		octal |= 4
	}
	if t&2 != 0 {
		octal |= 2
	}
	if t&4 != 0 {
		octal |= 1
	}
	return octal
}
