package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"github.com/naimul214/busstatus/storage"
)

func init() {
	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})
}

// Loads stop reference data into the writer and closes it. buf is
// either a GTFS zip archive holding stops.txt, or the contents of
// stops.txt itself. Returns the number of stops written.
func ParseStatic(writer storage.CatalogWriter, buf []byte) (int, error) {
	var data io.Reader = bytes.NewReader(buf)

	if isZip(buf) {
		rc, err := openStopsTxt(buf)
		if err != nil {
			return 0, err
		}
		defer rc.Close()
		data = rc
	}

	stops, err := ParseStops(writer, data)
	if err != nil {
		return 0, fmt.Errorf("parsing stops.txt: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return 0, fmt.Errorf("closing catalog writer: %w", err)
	}

	return len(stops), nil
}

func isZip(buf []byte) bool {
	return bytes.HasPrefix(buf, []byte("PK\x03\x04"))
}

func openStopsTxt(buf []byte) (io.ReadCloser, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		if path[len(path)-1] != "stops.txt" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		return rc, nil
	}

	return nil, fmt.Errorf("missing stops.txt")
}
