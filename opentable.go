package tcrpmhcdataset

import (
	"bufio"
	"bytes"
	"io"
	"log"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/csimplestring/go-csv/detector"
)

// sniffBytes is how much of a table is inspected to guess its delimiter.
const sniffBytes = 64 * 1024

// TableDelimiters are the delimiters interaction and reference tables are
// exported with, in order of preference.
const TableDelimiters = ",\t;|"

// OpenTable opens a (possibly compressed, possibly remote) delimited table and
// guesses its delimiter. The returned reader is positioned at the first byte
// of the decompressed table. client may be nil unless path is a gs:// URL.
func OpenTable(path string, client *storage.Client) (io.ReadCloser, rune, error) {
	f, _, err := MaybeOpenSeekerFromGoogleStorage(path, client)
	if err != nil {
		return nil, 0, err
	}

	rc, dt, err := MaybeDecompressReadCloser(f)
	if err != nil {
		f.Close()
		return nil, 0, pfx.Err(err)
	}

	br := bufio.NewReaderSize(rc, sniffBytes)
	peeked, err := br.Peek(sniffBytes)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		rc.Close()
		return nil, 0, pfx.Err(err)
	}

	delim := DetermineDelimiter(bytes.NewReader(peeked))
	log.Printf("Opened %s (%s); determined delimiter to be %q\n", path, dt, string(delim))

	return &bufferedReadCloser{Reader: br, closer: rc}, delim, nil
}

type bufferedReadCloser struct {
	*bufio.Reader
	closer io.Closer
}

func (b *bufferedReadCloser) Close() error {
	return b.closer.Close()
}

// DetermineDelimiter returns the most likely delimiter of the table in r. The
// detector's candidates are restricted to TableDelimiters; when it offers
// none, the header line decides, and a table with a single column is read as
// comma-delimited.
func DetermineDelimiter(r io.Reader) rune {
	br := bufio.NewReaderSize(r, sniffBytes)
	head, _ := br.Peek(sniffBytes)
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	header := string(head)

	d := detector.New()
	for _, candidate := range d.DetectDelimiter(br, '"') {
		if len(candidate) == 1 && strings.ContainsRune(TableDelimiters, rune(candidate[0])) {
			return rune(candidate[0])
		}
	}

	best, bestCount := ',', 0
	for _, delim := range TableDelimiters {
		if n := strings.Count(header, string(delim)); n > bestCount {
			best, bestCount = delim, n
		}
	}

	return best
}
