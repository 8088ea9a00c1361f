package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dfirkit/ntfscore/volume"
	"github.com/dfirkit/ntfscore/walker"
)

const walkCommandLongDesc = `Walks every resolvable record on a volume or image, printing one line per
$FILE_NAME encountered: file reference, the default data stream's size, and full path.`

type walkCommand struct {
	IncludeUnallocated bool   `short:"u" long:"unallocated" description:"also report deleted (not-in-use) records"`
	ParseI30           bool   `short:"i" long:"i30" description:"also walk $I30 index allocation blocks for carved entries"`
	Prefix             string `short:"l" long:"location" description:"restrict output to paths under this prefix"`

	Args struct {
		Volume string `positional-arg-name:"volume"`
	} `positional-args:"yes" required:"yes"`
}

func (c *walkCommand) Execute(args []string) error {
	start := time.Now()

	location := c.Args.Volume
	if isWindows {
		location = `\\.\` + location
	}

	vol, err := volume.OpenOnline(location, volume.OpenOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("unable to open volume %q: %w", location, err)
	}
	defer vol.Close()

	cfg := walker.DefaultConfig()
	cfg.IncludeUnallocated = c.IncludeUnallocated
	cfg.ParseI30 = c.ParseI30
	if c.Prefix != "" {
		cfg.LocationPrefixes = []string{c.Prefix}
	}

	var records int64
	cfg.Callbacks.FileName = func(ev walker.FileNameEvent) error {
		records++
		size := "-"
		if attr, ok := ev.Record.DefaultDataAttribute(); ok {
			size = humanize.Bytes(attr.ActualSize)
		}
		tag := ""
		if ev.Orphaned {
			tag = " (orphaned)"
		}
		fmt.Printf("%s\t%s\t%s%s\n", ev.Record.FileReference, size, ev.Path, tag)
		return nil
	}

	stats, err := walker.Walk(vol, cfg)
	if err != nil {
		return fmt.Errorf("walk failed: %w", err)
	}

	printVerbose("walked %s complete, %s incomplete, %s dropped records (%s read) in %v\n",
		humanize.Comma(stats.CompleteRecords), humanize.Comma(stats.IncompleteRecords),
		humanize.Comma(stats.DroppedRecords), humanize.Bytes(uint64(stats.BytesRead)), time.Since(start))
	fmt.Fprintf(os.Stderr, "%s names printed\n", humanize.Comma(records))
	return nil
}
