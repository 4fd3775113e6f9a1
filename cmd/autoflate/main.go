// Command autoflate decompresses its input, detecting the compression
// format automatically from the stream's leading bytes.
//
// With no arguments it reads from stdin; otherwise every file given on the
// command line is decompressed, in order, to the same output.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/AdRoll/autoflate"
	"github.com/AdRoll/autoflate/contrib"
)

var (
	flagOutput  = flag.String("o", "", "write output to `file` instead of stdout")
	flagFormat  = flag.String("format", "", "skip detection and force `format` (zlib, gzip, raw, lz4, zstd)")
	flagDefault = flag.String("default", "raw", "`format` to bind when detection fails ('none' to fail instead)")
	flagDict    = flag.String("dict", "", "preset dictionary `file` (zlib and raw formats)")
	flagBuffer  = flag.String("buffer", "", "decoder input buffer `size` (accepts units, e.g. 256KB)")
	flagVerbose = flag.Bool("v", false, "verbose logging (debug level)")
	flagQuiet   = flag.Bool("q", false, "don't print the summary line")
)

func main() {
	log.SetOutput(os.Stderr)

	flag.Usage = usage
	flag.Parse()

	if *flagVerbose {
		log.SetLevel(log.DebugLevel)
	}

	if err := run(flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] [file...]\n\nOptions:\n", os.Args[0])
	flag.PrintDefaults()
	fmt.Fprint(os.Stderr, "\nSupported formats:\n")
	for _, desc := range decoders() {
		fmt.Fprintf(os.Stderr, "  %-6s %s", desc.Format, desc.Help)
	}
}

// decoders returns the full set of formats the command supports: the
// built-in DEFLATE family plus the contributed ones.
func decoders() []autoflate.DecoderDesc {
	all := make([]autoflate.DecoderDesc, 0, len(autoflate.Builtins)+len(contrib.All))
	all = append(all, autoflate.Builtins...)
	all = append(all, contrib.All...)
	return all
}

func run(args []string) error {
	out := io.Writer(os.Stdout)
	if *flagOutput != "" {
		f, err := os.Create(*flagOutput)
		if err != nil {
			return fmt.Errorf("can't create output file: %s", err)
		}
		defer f.Close()
		out = f
	}

	var dict []byte
	if *flagDict != "" {
		var err error
		if dict, err = os.ReadFile(*flagDict); err != nil {
			return fmt.Errorf("can't read dictionary: %s", err)
		}
	}

	var bufsz int
	if *flagBuffer != "" {
		sz, err := humanize.ParseBytes(*flagBuffer)
		if err != nil {
			return fmt.Errorf("invalid buffer size %q: %s", *flagBuffer, err)
		}
		bufsz = int(sz)
	}

	if len(args) == 0 {
		return decompress("stdin", os.Stdin, out, dict, bufsz)
	}
	for _, fn := range args {
		f, err := os.Open(fn)
		if err != nil {
			return err
		}
		err = decompress(fn, f, out, dict, bufsz)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %s", fn, err)
		}
	}
	return nil
}

func decompress(name string, in io.Reader, out io.Writer, dict []byte, bufsz int) error {
	start := time.Now()

	stream, err := autoflate.New(autoflate.StreamConfig{
		Output:        out,
		Decoders:      decoders(),
		DefaultFormat: autoflate.Format(*flagDefault),
		Dictionary:    dict,
		BufferSize:    bufsz,
		OnFormat: func(format autoflate.Format, dec autoflate.Decoder) {
			log.WithFields(log.Fields{"file": name, "format": format}).Debug("format detected")
		},
	})
	if err != nil {
		return err
	}

	if *flagFormat != "" {
		if err := stream.SetFormat(autoflate.Format(*flagFormat)); err != nil {
			return err
		}
	}

	if _, err := io.Copy(stream, in); err != nil {
		stream.Close()
		return err
	}
	if err := stream.Close(); err != nil {
		return err
	}

	if !*flagQuiet {
		stats := stream.Stats()
		fmt.Fprintf(os.Stderr, "%s: %s: %s -> %s in %s\n",
			name, stats.Format,
			humanize.Bytes(uint64(stats.BytesIn)),
			humanize.Bytes(uint64(stats.BytesOut)),
			time.Since(start).Round(time.Millisecond))
	}
	return nil
}
