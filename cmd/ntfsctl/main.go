// Command ntfsctl is a reference CLI over the bootsect/volume/mft/walker/find packages: point it at a volume,
// image, or offline $MFT dump and walk it, find matches in it, or dump its raw $MFT.
package main

import (
	"fmt"
	"os"

	log "github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"
)

type rootOptions struct {
	Verbose bool `short:"v" long:"verbose" description:"print progress and diagnostic detail to stderr"`
}

var root = new(rootOptions)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err, ok := state.(error)
			if !ok {
				err = fmt.Errorf("%v", state)
			}
			log.PrintError(log.Wrap(err))
			os.Exit(1)
		}
	}()

	p := flags.NewParser(root, flags.Default)

	_, err := p.AddCommand("dump", "Dump a volume's raw $MFT to a file", dumpCommandLongDesc, &dumpCommand{})
	log.PanicIf(err)

	_, err = p.AddCommand("walk", "Walk a volume, printing one line per $FILE_NAME of each reported record", walkCommandLongDesc, &walkCommand{})
	log.PanicIf(err)

	_, err = p.AddCommand("find", "Evaluate find terms from a JSON file against a volume", findCommandLongDesc, &findCommand{})
	log.PanicIf(err)

	if _, err := p.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printVerbose(format string, v ...interface{}) {
	if root.Verbose {
		fmt.Fprintf(os.Stderr, format, v...)
	}
}
