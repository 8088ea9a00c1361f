// Package volume provides a uniform, random-access view over the bytes backing an NTFS file system, whether that is
// a mounted volume, a raw disk image, or a previously-extracted $MFT file paired with externally supplied geometry.
package volume

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dsoprea/go-logging"

	"github.com/dfirkit/ntfscore/bootsect"
)

// ErrNotReady is returned by any Reader operation attempted before the reader has successfully loaded its volume
// geometry (boot sector parsing for Online readers; SetCharacteristics-equivalent construction for Offline readers).
var ErrNotReady = errors.New("volume: reader not ready for enumeration")

// ErrUnsupportedFs is returned by OpenOnline when the boot sector identifies a file system other than NTFS.
var ErrUnsupportedFs = errors.New("volume: unsupported file system")

// Reader is the contract the rest of this engine (mft, walker, find) uses to read volume bytes. It deliberately
// mirrors only the read surface a forensic walk needs: random access by byte offset, the parsed geometry, and the
// raw boot sector bytes (absent for Offline readers, which have none).
type Reader interface {
	io.ReaderAt

	// Location is the opaque string the reader was opened with (a device path, image path, or MFT dump path).
	Location() string

	// Geometry returns the volume's cluster/sector/FRS sizing and key well-known record numbers.
	Geometry() bootsect.Geometry

	// BootSectorBytes returns the raw first sector the geometry was parsed from, or nil for an Offline reader.
	BootSectorBytes() []byte

	// IsReady reports whether the reader successfully loaded its geometry and can serve reads.
	IsReady() bool

	// Clone returns an independent Reader over the same underlying bytes, with its own file handle and read
	// position, suitable for concurrent use by a second goroutine (eg. a parallel $I30/$Secure side walk).
	Clone() (Reader, error)

	io.Closer
}

// OpenOptions is kept by the reader OpenOnline returns and handed on to its clones. OpenOnline opens the underlying
// handle with os.Open, which is read-only, whatever the options say.
type OpenOptions struct {
	// ReadOnly is recorded but does not change how the handle is opened: the handle is read-only in every case, and
	// the Reader interface itself exposes no write methods.
	ReadOnly bool
}

type onlineReader struct {
	location   string
	f          *os.File
	opts       OpenOptions
	geom       bootsect.Geometry
	bootSector []byte
}

// OpenOnline opens location (a device path such as "\\.\C:" on Windows, or any regular file presenting volume bytes
// from offset zero, such as a raw disk image) and parses its boot sector to determine geometry. It fails with
// ErrUnsupportedFs if the boot sector does not identify an NTFS volume.
func OpenOnline(location string, opts OpenOptions) (Reader, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, log.Wrap(fmt.Errorf("volume: unable to open %q: %w", location, err))
	}

	bootSector := make([]byte, 512)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, 512), bootSector); err != nil {
		f.Close()
		return nil, log.Wrap(fmt.Errorf("volume: unable to read boot sector of %q: %w", location, err))
	}

	kind, err := bootsect.DetectKind(bootSector)
	if err != nil {
		f.Close()
		return nil, log.Wrap(fmt.Errorf("volume: unable to classify %q: %w", location, err))
	}
	if kind != bootsect.KindNTFS {
		f.Close()
		return nil, fmt.Errorf("%w: %s reports as %s", ErrUnsupportedFs, location, kind)
	}

	bs, err := bootsect.Parse(bootSector)
	if err != nil {
		f.Close()
		return nil, log.Wrap(fmt.Errorf("volume: unable to parse boot sector of %q: %w", location, err))
	}

	return &onlineReader{
		location:   location,
		f:          f,
		opts:       opts,
		geom:       bootsect.GeometryFrom(bs),
		bootSector: bootSector,
	}, nil
}

func (r *onlineReader) ReadAt(p []byte, off int64) (int, error) {
	return r.f.ReadAt(p, off)
}

func (r *onlineReader) Location() string            { return r.location }
func (r *onlineReader) Geometry() bootsect.Geometry  { return r.geom }
func (r *onlineReader) BootSectorBytes() []byte      { return r.bootSector }
func (r *onlineReader) IsReady() bool                { return true }
func (r *onlineReader) Close() error                 { return r.f.Close() }

func (r *onlineReader) Clone() (Reader, error) {
	return OpenOnline(r.location, r.opts)
}

type offlineReader struct {
	location string
	f        *os.File
	geom     bootsect.Geometry
}

// OpenOffline opens path as a standalone $MFT (or similarly pre-extracted) file with no accompanying boot sector;
// the caller supplies the geometry that would otherwise have been read from one, mirroring how an offline forensic
// examination supplies the original volume's characteristics by hand.
func OpenOffline(path string, geom bootsect.Geometry) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, log.Wrap(fmt.Errorf("volume: unable to open %q: %w", path, err))
	}
	return &offlineReader{location: path, f: f, geom: geom}, nil
}

func (r *offlineReader) ReadAt(p []byte, off int64) (int, error) {
	return r.f.ReadAt(p, off)
}

func (r *offlineReader) Location() string           { return r.location }
func (r *offlineReader) Geometry() bootsect.Geometry { return r.geom }
func (r *offlineReader) BootSectorBytes() []byte    { return nil }
func (r *offlineReader) IsReady() bool              { return true }
func (r *offlineReader) Close() error                { return r.f.Close() }

func (r *offlineReader) Clone() (Reader, error) {
	return OpenOffline(r.location, r.geom)
}
