package tcrpmhcdataset

import (
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/carbocation/pfx"
	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

// ErrUnsupportedCompression is returned for streams whose compression is
// recognized but cannot be read, such as Unix compress (.Z).
var ErrUnsupportedCompression = errors.New("unsupported compression")

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZ:     {0x1f, 0x9d},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

func (dt DataType) String() string {
	switch dt {
	case DataTypeNoCompression:
		return "uncompressed"
	case DataTypeGzip:
		return "gzip"
	case DataTypeZip:
		return "zip"
	case DataTypeXZ:
		return "xz"
	case DataTypeZ:
		return "compress (.Z)"
	case DataTypeBZip2:
		return "bzip2"
	}

	return "invalid"
}

// DetectDataType attempts to detect the data type of a stream by checking
// against a set of known data types. Byte code signatures from
// https://stackoverflow.com/a/19127748/199475
func DetectDataType(r io.Reader) (DataType, error) {
	buff := make([]byte, 6)
	n, err := io.ReadFull(r, buff)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			// An empty table is still a (trivially) uncompressed one
			return DataTypeNoCompression, nil
		}
		return DataTypeInvalid, err
	}
	buff = buff[:n]

	// Match known signatures
Outer:
	for dt, sig := range byteCodeSigs {
		if len(buff) < len(sig) {
			continue
		}
		for position := range sig {
			if buff[position] != sig[position] {
				continue Outer
			}
		}
		return dt, nil
	}

	return DataTypeNoCompression, nil
}

// MaybeDecompressReadCloser sniffs the compression of f, rewinds it, and
// returns a reader over the decompressed bytes. Closing the returned reader
// closes f. For zip archives, only the first entry is read.
func MaybeDecompressReadCloser(f ReadSeekCloser) (io.ReadCloser, DataType, error) {
	dt, err := DetectDataType(f)
	if err != nil {
		return nil, dt, pfx.Err(err)
	}

	// Reset the original reader
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, dt, pfx.Err(err)
	}

	switch dt {
	case DataTypeGzip:
		r, err := gzip.NewReader(f)
		if err != nil {
			return nil, dt, pfx.Err(err)
		}
		return &readCloserWrapper{Reader: r, closer: f}, dt, nil
	case DataTypeZip:
		zr := zipstream.NewReader(f)
		if _, err := zr.Next(); err != nil {
			return nil, dt, pfx.Err(err)
		}
		return &readCloserWrapper{Reader: zr, closer: f}, dt, nil
	case DataTypeBZip2:
		return &readCloserWrapper{Reader: bzip2.NewReader(f), closer: f}, dt, nil
	case DataTypeXZ:
		reader, err := xz.NewReader(f, 0)
		if err != nil {
			return nil, dt, pfx.Err(err)
		}
		return &readCloserWrapper{Reader: reader, closer: f}, dt, nil
	case DataTypeZ:
		// compress/lzw has no .Z header or block-mode handling
		return nil, dt, pfx.Err(fmt.Errorf("%w: %s; decompress the file first", ErrUnsupportedCompression, dt))
	}

	// No data type detected. For now, we assume this is uncompressed.
	return f, dt, nil
}

// readCloserWrapper pairs a decompressing reader with the underlying
// resource that must be closed.
type readCloserWrapper struct {
	io.Reader
	closer io.Closer
}

func (c *readCloserWrapper) Close() error {
	if rc, ok := c.Reader.(io.Closer); ok {
		rc.Close()
	}

	return c.closer.Close()
}
