package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dsnet/golib/memfile"
)

// Segment is one open segment file.
type Segment interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() (int64, error)
	Close() error
}

// FileSet is the set of segment files backing the page space.
type FileSet interface {
	// OpenSegment opens segNo, creating it if needed.
	OpenSegment(segNo int32) (Segment, error)
	// Segments lists the existing segment numbers in ascending order.
	Segments() ([]int32, error)
}

var (
	_ FileSet = LocalFileSet{}
	_ FileSet = (*VirtualFileSet)(nil)
)

// LocalFileSet represents a local directory + base file name.
// Segments are stored as: Base, Base.1, Base.2, ...
type LocalFileSet struct {
	Dir  string
	Base string
}

type osSegment struct {
	*os.File
}

func (s osSegment) Size() (int64, error) {
	info, err := s.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (lfs LocalFileSet) OpenSegment(segNo int32) (Segment, error) {
	if err := os.MkdirAll(lfs.Dir, FileMode0755); err != nil {
		return nil, err
	}
	path := lfs.path(segNo)
	// RDWR | CREATE (no truncate)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open segment %s: %w", path, err)
	}
	return osSegment{File: f}, nil
}

// path names segment 0 Base and segment n Base.n.
func (lfs LocalFileSet) path(segNo int32) string {
	name := lfs.Base
	if segNo > 0 {
		name += "." + strconv.Itoa(int(segNo))
	}
	return filepath.Join(lfs.Dir, name)
}

// Segments reads Dir for Base and Base.<n>. A missing Dir has no segments.
func (lfs LocalFileSet) Segments() ([]int32, error) {
	entries, err := os.ReadDir(lfs.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list segments in %s: %w", lfs.Dir, err)
	}

	var segs []int32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == lfs.Base {
			segs = append(segs, 0)
			continue
		}
		suffix, ok := strings.CutPrefix(e.Name(), lfs.Base+".")
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(suffix, 10, 32); err == nil && n > 0 {
			segs = append(segs, int32(n))
		}
	}
	slices.Sort(segs)
	return segs, nil
}

// RemoveAllSegments deletes every segment file of lfs.
func RemoveAllSegments(lfs LocalFileSet) error {
	segs, err := lfs.Segments()
	if err != nil {
		return err
	}
	for _, n := range segs {
		if err := os.Remove(lfs.path(n)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("storage: remove segment %d: %w", n, err)
		}
	}
	return nil
}

// VirtualFileSet keeps segments in memory. Used by memory mode and tests.
type VirtualFileSet struct {
	mu   sync.Mutex
	segs map[int32]*memfile.File
}

func NewVirtualFileSet() *VirtualFileSet {
	return &VirtualFileSet{segs: make(map[int32]*memfile.File)}
}

type memSegment struct {
	*memfile.File
}

func (s memSegment) Size() (int64, error) { return int64(len(s.Bytes())), nil }

// Close is a no-op; the bytes live as long as the file set.
func (memSegment) Close() error { return nil }

func (v *VirtualFileSet) OpenSegment(segNo int32) (Segment, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	f, ok := v.segs[segNo]
	if !ok {
		f = memfile.New(make([]byte, 0))
		v.segs[segNo] = f
	}
	return memSegment{File: f}, nil
}

func (v *VirtualFileSet) Segments() ([]int32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]int32, 0, len(v.segs))
	for n := range v.segs {
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

// Drop forgets one segment, as if its file were deleted.
func (v *VirtualFileSet) Drop(segNo int32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.segs, segNo)
}
