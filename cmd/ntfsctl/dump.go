package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dfirkit/ntfscore/fragment"
	"github.com/dfirkit/ntfscore/mft"
	"github.com/dfirkit/ntfscore/volume"
)

const dumpCommandLongDesc = `Opens a volume or raw device, locates its own $MFT file record, and copies every
byte of the $MFT's $DATA attribute to the given output file, the way a forensic collector extracts the MFT for
offline analysis.`

var isWindows = runtime.GOOS == "windows"

type dumpCommand struct {
	Force    bool `short:"f" long:"force" description:"overwrite the output file if it already exists"`
	Progress bool `short:"p" long:"progress" description:"show a progress bar while copying"`

	Args struct {
		Volume string `positional-arg-name:"volume" description:"device or image path, eg. \\\\.\\C: or /dev/sdb1"`
		Output string `positional-arg-name:"output-file"`
	} `positional-args:"yes" required:"yes"`
}

func (c *dumpCommand) Execute(args []string) error {
	start := time.Now()

	location := c.Args.Volume
	if isWindows {
		location = `\\.\` + location
	}

	printVerbose("opening %s\n", location)
	vol, err := volume.OpenOnline(location, volume.OpenOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("unable to open volume %q: %w", location, err)
	}
	defer vol.Close()

	geom := vol.Geometry()
	mftOffset := int64(geom.MftStartCluster) * int64(geom.BytesPerCluster)

	printVerbose("reading $MFT's own file record (%d bytes at offset %d)\n", geom.BytesPerFRS, mftOffset)
	recordData := make([]byte, geom.BytesPerFRS)
	if _, err := vol.ReadAt(recordData, mftOffset); err != nil {
		return fmt.Errorf("unable to read $MFT file record: %w", err)
	}

	record, err := mft.ParseRecord(recordData)
	if err != nil {
		return fmt.Errorf("unable to parse $MFT file record: %w", err)
	}

	dataAttrs := record.FindAttributes(mft.AttributeTypeData)
	if len(dataAttrs) == 0 {
		return fmt.Errorf("no $DATA attribute found in $MFT record")
	}
	if len(dataAttrs) > 1 {
		return fmt.Errorf("more than one $DATA attribute found in $MFT record")
	}
	dataAttr := dataAttrs[0]
	if dataAttr.Resident {
		return fmt.Errorf("$MFT's $DATA attribute is resident, which should never happen")
	}

	dataRuns, err := mft.ParseDataRuns(dataAttr.Data)
	if err != nil {
		return fmt.Errorf("unable to parse $MFT $DATA dataruns: %w", err)
	}
	if len(dataRuns) == 0 {
		return fmt.Errorf("no dataruns found in $MFT $DATA attribute")
	}

	fragments := mft.DataRunsToFragments(dataRuns, geom.BytesPerCluster)
	totalLength := fragment.TotalLength(fragments)

	out, err := c.openOutputFile()
	if err != nil {
		return fmt.Errorf("unable to open output file: %w", err)
	}
	defer out.Close()

	printVerbose("copying %s to %s\n", humanize.Bytes(uint64(totalLength)), c.Args.Output)
	src := fragment.NewReader(&readAtSeeker{r: vol}, fragments)
	n, err := c.copy(out, src, totalLength)
	if err != nil {
		return fmt.Errorf("error copying $MFT data: %w", err)
	}
	if n != totalLength {
		return fmt.Errorf("expected to copy %d bytes but copied %d", totalLength, n)
	}

	printVerbose("finished in %v\n", time.Since(start))
	return nil
}

func (c *dumpCommand) openOutputFile() (*os.File, error) {
	if c.Force {
		return os.Create(c.Args.Output)
	}
	return os.OpenFile(c.Args.Output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
}

func (c *dumpCommand) copy(dst io.Writer, src io.Reader, totalLength int64) (int64, error) {
	if !c.Progress {
		return io.Copy(dst, src)
	}

	buf := make([]byte, 1024*1024)
	onePercent := float64(totalLength) / 100.0
	totalSize := humanize.Bytes(uint64(totalLength))

	var written int64
	var err error
	for {
		printProgress(written, totalSize, onePercent)
		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if ew != nil {
				err = ew
				break
			}
			if nr != nw {
				err = io.ErrShortWrite
				break
			}
		}
		if er != nil {
			if er != io.EOF {
				err = er
			}
			break
		}
	}
	printProgress(written, totalSize, onePercent)
	fmt.Fprintln(os.Stderr)
	return written, err
}

func printProgress(n int64, totalSize string, onePercent float64) {
	percentage := float64(n) / onePercent
	barCount := int(percentage / 2.0)
	spaceCount := 50 - barCount
	bar := make([]byte, 0, 50)
	for i := 0; i < barCount; i++ {
		bar = append(bar, '|')
	}
	for i := 0; i < spaceCount; i++ {
		bar = append(bar, ' ')
	}
	fmt.Fprintf(os.Stderr, "\r[%s] %.2f%% (%s / %s)     ", bar, percentage, humanize.Bytes(uint64(n)), totalSize)
}

// readAtSeeker adapts an io.ReaderAt into the io.ReadSeeker the fragment package expects, tracking a cursor
// position locally since io.ReaderAt itself is stateless (mirrors walker's own internal adapter).
type readAtSeeker struct {
	r   io.ReaderAt
	pos int64
}

func (s *readAtSeeker) Read(p []byte) (int, error) {
	n, err := s.r.ReadAt(p, s.pos)
	s.pos += int64(n)
	return n, err
}

func (s *readAtSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		s.pos = offset
	case io.SeekCurrent:
		s.pos += offset
	default:
		return 0, fmt.Errorf("readAtSeeker: unsupported whence %d", whence)
	}
	return s.pos, nil
}
