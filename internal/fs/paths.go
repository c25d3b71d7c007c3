// File: internal/fs/paths.go
package fs

import (
	"fmt"
	"time"

	"github.com/grosfs/go-grosfs/internal/types"
)

// Path-level wrappers over the inode-level operations. The adapter and the
// CLI speak paths; everything below speaks inodes.

// FileInfo is the stat result for one inode.
type FileInfo struct {
	Ino   int32
	Size  int32
	Type  uint32
	Perm  uint32
	UID   uint32
	GID   uint32
	Links int32
	Ctime int64
	Mtime int64
	Atime int64
}

func (fs *Filesystem) loadByPath(path string) (*types.Inode, error) {
	ino, err := fs.Namei(path)
	if err != nil {
		return nil, err
	}
	return fs.LoadInode(ino)
}

// loadParent resolves the parent directory of path and the final name.
func (fs *Filesystem) loadParent(path string) (*types.Inode, string, error) {
	dir, name := splitPath(path)
	parent, err := fs.loadByPath(dir)
	if err != nil {
		return nil, "", err
	}
	if !parent.IsDir() {
		return nil, "", fmt.Errorf("%w: %q", ErrNotDir, dir)
	}
	return parent, name, nil
}

// MknodPath creates a regular file at path.
func (fs *Filesystem) MknodPath(path string) (int32, error) {
	parent, name, err := fs.loadParent(path)
	if err != nil {
		return -1, err
	}
	return fs.Mknod(parent, name)
}

// MkdirPath creates a directory at path.
func (fs *Filesystem) MkdirPath(path string) (int32, error) {
	parent, name, err := fs.loadParent(path)
	if err != nil {
		return -1, err
	}
	return fs.Mkdir(parent, name)
}

// UnlinkPath removes the file at path.
func (fs *Filesystem) UnlinkPath(path string) error {
	parent, name, err := fs.loadParent(path)
	if err != nil {
		return err
	}
	return fs.Unlink(parent, name)
}

// RmdirPath removes the directory at path and everything beneath it.
func (fs *Filesystem) RmdirPath(path string) error {
	parent, name, err := fs.loadParent(path)
	if err != nil {
		return err
	}
	return fs.Rmdir(parent, name)
}

// CopyPath hard-links the file at from to the path to.
func (fs *Filesystem) CopyPath(from, to string) error {
	src, err := fs.loadByPath(from)
	if err != nil {
		return err
	}
	destDir, name, err := fs.loadParent(to)
	if err != nil {
		return err
	}
	return fs.Copy(src, destDir, name)
}

// ReadPath reads size bytes at offset from the file at path.
func (fs *Filesystem) ReadPath(path string, buf []byte, size, offset int) (int, error) {
	in, err := fs.loadByPath(path)
	if err != nil {
		return 0, err
	}
	return fs.Read(in, buf, size, offset)
}

// WritePath writes size bytes at offset to the file at path.
func (fs *Filesystem) WritePath(path string, buf []byte, size, offset int) (int, error) {
	in, err := fs.loadByPath(path)
	if err != nil {
		return 0, err
	}
	return fs.Write(in, buf, size, offset)
}

// TruncatePath resizes the file at path.
func (fs *Filesystem) TruncatePath(path string, size int) error {
	in, err := fs.loadByPath(path)
	if err != nil {
		return err
	}
	return fs.Truncate(in, size)
}

// EnsureSizePath extends the file at path to at least size bytes.
func (fs *Filesystem) EnsureSizePath(path string, size int) (int, error) {
	in, err := fs.loadByPath(path)
	if err != nil {
		return 0, err
	}
	return fs.EnsureSize(in, size)
}

// Stat reports metadata for the file at path.
func (fs *Filesystem) Stat(path string) (*FileInfo, error) {
	in, err := fs.loadByPath(path)
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		Ino:   in.Ino,
		Size:  in.Size,
		Type:  types.FileType(in.ACL),
		Perm:  types.Perm(in.ACL),
		UID:   in.UID,
		GID:   in.GID,
		Links: in.Links,
		Ctime: in.Ctime,
		Mtime: in.Mtime,
		Atime: in.Atime,
	}, nil
}

// Chmod replaces the permission bits of the file at path; the type bits are
// immutable.
func (fs *Filesystem) Chmod(path string, perm uint32) error {
	in, err := fs.loadByPath(path)
	if err != nil {
		return err
	}
	in.ACL = types.SetPerm(in.ACL, perm)
	in.Ctime = time.Now().Unix()
	return fs.SaveInode(in)
}

// Chown changes the owner of the file at path.
func (fs *Filesystem) Chown(path string, uid, gid uint32) error {
	in, err := fs.loadByPath(path)
	if err != nil {
		return err
	}
	in.UID = uid
	in.GID = gid
	in.Ctime = time.Now().Unix()
	return fs.SaveInode(in)
}

// ListPath returns the owned directory records at path, in record order.
func (fs *Filesystem) ListPath(path string) ([]types.DirEntry, error) {
	dir, err := fs.loadByPath(path)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrNotDir, path)
	}
	var out []types.DirEntry
	var cur *types.DirEntry
	for {
		next, err := fs.ReaddirR(dir, cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return out, nil
		}
		out = append(out, *next)
		cur = next
	}
}
