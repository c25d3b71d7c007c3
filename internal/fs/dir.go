// File: internal/fs/dir.go
package fs

import (
	"fmt"
	"strings"
	"time"

	"github.com/grosfs/go-grosfs/internal/types"
)

// Directories are files of fixed 259-byte records flowing through the I/O
// engine; records may straddle block boundaries. There is no free list and
// no tombstone: removal swaps the last record into the hole and truncates
// one record. The first two records are always "." and "..".

// entryCount returns the number of records in a directory.
func entryCount(dir *types.Inode) int {
	return int(dir.Size) / types.DirEntrySize
}

func (fs *Filesystem) readEntry(dir *types.Inode, i int) (*types.DirEntry, error) {
	buf := make([]byte, types.DirEntrySize)
	n, err := fs.readAt(dir, buf, types.DirEntrySize, i*types.DirEntrySize)
	if err != nil {
		return nil, err
	}
	if n != types.DirEntrySize {
		return nil, fmt.Errorf("%w: short directory record %d", ErrInval, i)
	}
	return types.DecodeDirEntry(buf)
}

func (fs *Filesystem) writeEntry(dir *types.Inode, i int, e *types.DirEntry) error {
	buf := make([]byte, types.DirEntrySize)
	if err := e.EncodeDirEntry(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrInval, err)
	}
	n, err := fs.Write(dir, buf, types.DirEntrySize, i*types.DirEntrySize)
	if err != nil {
		return err
	}
	if n != types.DirEntrySize {
		return fmt.Errorf("%w: short directory write", ErrIO)
	}
	return nil
}

// lookupEntry scans dir for name. Missing yields index -1 and no error.
func (fs *Filesystem) lookupEntry(dir *types.Inode, name string) (int, *types.DirEntry, error) {
	n := entryCount(dir)
	for i := 0; i < n; i++ {
		e, err := fs.readEntry(dir, i)
		if err != nil {
			return -1, nil, err
		}
		if e.Name == name {
			return i, e, nil
		}
	}
	return -1, nil, nil
}

// removeEntryAt deletes record i by moving the final record into its place
// and truncating the directory by one record.
func (fs *Filesystem) removeEntryAt(dir *types.Inode, i int) error {
	last := entryCount(dir) - 1
	if i < 0 || last < 0 || i > last {
		return fmt.Errorf("%w: directory record %d out of range", ErrInval, i)
	}
	if i != last {
		e, err := fs.readEntry(dir, last)
		if err != nil {
			return err
		}
		if err := fs.writeEntry(dir, i, e); err != nil {
			return err
		}
	}
	return fs.Truncate(dir, last*types.DirEntrySize)
}

func checkName(name string) error {
	if name == "" || len(name) > types.MaxNameLen || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: bad filename %q", ErrInval, name)
	}
	return nil
}

// Namei resolves a path from the root directory to an inode number. The
// empty path and "/" resolve to the root inode.
func (fs *Filesystem) Namei(path string) (int32, error) {
	cur := types.RootInode
	for _, comp := range strings.Split(path, "/") {
		if comp == "" {
			continue
		}
		dir, err := fs.LoadInode(cur)
		if err != nil {
			return -1, err
		}
		if !dir.IsDir() {
			return -1, fmt.Errorf("%w: %q", ErrNotDir, comp)
		}
		_, e, err := fs.lookupEntry(dir, comp)
		if err != nil {
			return -1, err
		}
		if e == nil {
			return -1, fmt.Errorf("%w: %q", ErrNotFound, comp)
		}
		cur = e.Ino
	}
	return cur, nil
}

// ReaddirR is the positional directory iterator. A nil current yields the
// first record; otherwise the record after the one whose filename equals
// current's. Past the end it yields nil. Records are owned copies.
func (fs *Filesystem) ReaddirR(dir *types.Inode, current *types.DirEntry) (*types.DirEntry, error) {
	n := entryCount(dir)
	if current == nil {
		if n == 0 {
			return nil, nil
		}
		return fs.readEntry(dir, 0)
	}
	for i := 0; i < n; i++ {
		e, err := fs.readEntry(dir, i)
		if err != nil {
			return nil, err
		}
		if e.Name == current.Name {
			if i+1 >= n {
				return nil, nil
			}
			return fs.readEntry(dir, i+1)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, current.Name)
}

// Mknod creates a regular file in parent. The new inode carries one link;
// a failure after allocation releases the inode before returning.
func (fs *Filesystem) Mknod(parent *types.Inode, name string) (int32, error) {
	if err := checkName(name); err != nil {
		return -1, err
	}
	if !parent.IsDir() {
		return -1, fmt.Errorf("%w: inode %d", ErrNotDir, parent.Ino)
	}
	if _, e, err := fs.lookupEntry(parent, name); err != nil {
		return -1, err
	} else if e != nil {
		return -1, fmt.Errorf("%w: %q", ErrExists, name)
	}
	child, err := fs.NewInode()
	if err != nil {
		return -1, err
	}
	child.Links = 1
	child.ACL = types.NewACL(types.TypeRegular, 0o644)
	if err := fs.SaveInode(child); err != nil {
		return -1, err
	}
	entry := &types.DirEntry{Ino: child.Ino, Name: name}
	if err := fs.writeEntry(parent, entryCount(parent), entry); err != nil {
		fs.FreeInode(child)
		return -1, err
	}
	return child.Ino, nil
}

// Mkdir creates a directory in parent: ACL 0755, links 2 ("." plus the
// parent's record), with "." and ".." written before the parent learns the
// name. The parent gains a link from the child's "..".
func (fs *Filesystem) Mkdir(parent *types.Inode, name string) (int32, error) {
	if err := checkName(name); err != nil {
		return -1, err
	}
	if !parent.IsDir() {
		return -1, fmt.Errorf("%w: inode %d", ErrNotDir, parent.Ino)
	}
	if _, e, err := fs.lookupEntry(parent, name); err != nil {
		return -1, err
	} else if e != nil {
		return -1, fmt.Errorf("%w: %q", ErrExists, name)
	}
	child, err := fs.NewInode()
	if err != nil {
		return -1, err
	}
	child.Links = 2
	child.ACL = types.NewACL(types.TypeDirectory, 0o755)
	if err := fs.SaveInode(child); err != nil {
		return -1, err
	}
	if err := fs.writeEntry(child, 0, &types.DirEntry{Ino: child.Ino, Name: "."}); err != nil {
		fs.FreeInode(child)
		return -1, err
	}
	if err := fs.writeEntry(child, 1, &types.DirEntry{Ino: parent.Ino, Name: ".."}); err != nil {
		fs.FreeInode(child)
		return -1, err
	}
	entry := &types.DirEntry{Ino: child.Ino, Name: name}
	if err := fs.writeEntry(parent, entryCount(parent), entry); err != nil {
		fs.FreeInode(child)
		return -1, err
	}
	parent.Links++
	parent.Ctime = time.Now().Unix()
	if err := fs.SaveInode(parent); err != nil {
		return -1, err
	}
	return child.Ino, nil
}

// Unlink removes name from parent, dropping one link from its inode and
// freeing the inode when no links remain. Directories are delegated to
// Rmdir.
func (fs *Filesystem) Unlink(parent *types.Inode, name string) error {
	if name == "." || name == ".." {
		return fmt.Errorf("%w: cannot unlink %q", ErrInval, name)
	}
	idx, e, err := fs.lookupEntry(parent, name)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	child, err := fs.LoadInode(e.Ino)
	if err != nil {
		return err
	}
	if child.IsDir() {
		return fs.Rmdir(parent, name)
	}
	child.Links--
	if child.Links <= 0 {
		if err := fs.FreeInode(child); err != nil {
			return err
		}
	} else {
		child.Ctime = time.Now().Unix()
		if err := fs.SaveInode(child); err != nil {
			return err
		}
	}
	return fs.removeEntryAt(parent, idx)
}

// Rmdir removes the directory called name from parent, recursively
// unlinking files and removing subdirectories first. The parent loses the
// link held by the child's "..".
func (fs *Filesystem) Rmdir(parent *types.Inode, name string) error {
	if name == "." || name == ".." {
		return fmt.Errorf("%w: cannot remove %q", ErrInval, name)
	}
	idx, e, err := fs.lookupEntry(parent, name)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	child, err := fs.LoadInode(e.Ino)
	if err != nil {
		return err
	}
	if !child.IsDir() {
		return fmt.Errorf("%w: %q", ErrNotDir, name)
	}
	// Entries past "." and ".." shift down as they are removed, so keep
	// consuming record 2 until only the two fixed records remain.
	for entryCount(child) > 2 {
		ge, err := fs.readEntry(child, 2)
		if err != nil {
			return err
		}
		if err := fs.Unlink(child, ge.Name); err != nil {
			return err
		}
	}
	if err := fs.removeEntryAt(parent, idx); err != nil {
		return err
	}
	parent.Links--
	parent.Ctime = time.Now().Unix()
	if err := fs.SaveInode(parent); err != nil {
		return err
	}
	return fs.FreeInode(child)
}

// Copy hard-links src into destDir under name.
func (fs *Filesystem) Copy(src *types.Inode, destDir *types.Inode, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if !destDir.IsDir() {
		return fmt.Errorf("%w: inode %d", ErrNotDir, destDir.Ino)
	}
	if _, e, err := fs.lookupEntry(destDir, name); err != nil {
		return err
	} else if e != nil {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	entry := &types.DirEntry{Ino: src.Ino, Name: name}
	if err := fs.writeEntry(destDir, entryCount(destDir), entry); err != nil {
		return err
	}
	src.Links++
	src.Ctime = time.Now().Unix()
	return fs.SaveInode(src)
}

// Rename moves a file or directory between paths, cross-directory allowed:
// a link is added at the destination, the source record removed, and for
// directories the child's ".." record and the parent link counts follow.
func (fs *Filesystem) Rename(from, to string) error {
	fromDir, fromName := splitPath(from)
	toDir, toName := splitPath(to)
	if err := checkName(fromName); err != nil {
		return err
	}
	if err := checkName(toName); err != nil {
		return err
	}

	srcIno, err := fs.Namei(fromDir)
	if err != nil {
		return err
	}
	dstIno, err := fs.Namei(toDir)
	if err != nil {
		return err
	}
	src, err := fs.LoadInode(srcIno)
	if err != nil {
		return err
	}
	dst := src
	if dstIno != srcIno {
		if dst, err = fs.LoadInode(dstIno); err != nil {
			return err
		}
	}
	if !src.IsDir() || !dst.IsDir() {
		return fmt.Errorf("%w: rename parent", ErrNotDir)
	}

	_, e, err := fs.lookupEntry(src, fromName)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, fromName)
	}
	if _, existing, err := fs.lookupEntry(dst, toName); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: %q", ErrExists, toName)
	}
	child, err := fs.LoadInode(e.Ino)
	if err != nil {
		return err
	}

	if err := fs.writeEntry(dst, entryCount(dst), &types.DirEntry{Ino: child.Ino, Name: toName}); err != nil {
		return err
	}
	idx, _, err := fs.lookupEntry(src, fromName)
	if err != nil {
		return err
	}
	if err := fs.removeEntryAt(src, idx); err != nil {
		return err
	}

	if child.IsDir() && srcIno != dstIno {
		if err := fs.writeEntry(child, 1, &types.DirEntry{Ino: dst.Ino, Name: ".."}); err != nil {
			return err
		}
		src.Links--
		dst.Links++
		if err := fs.SaveInode(src); err != nil {
			return err
		}
		if err := fs.SaveInode(dst); err != nil {
			return err
		}
	}
	return nil
}

// splitPath separates a path into its parent directory and final component.
func splitPath(path string) (dir, name string) {
	trimmed := strings.TrimRight(path, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return "/", trimmed
	}
	return trimmed[:i], trimmed[i+1:]
}
