package pbosign

import (
	"fmt"
	"io"
	"os"

	"github.com/connesc/pbosign/reader"
)

// ChecksumSize is the length of the trailer written by archive packers.
const ChecksumSize = 20

// Property is a key/value pair from the archive header extension.
type Property struct {
	Key   string
	Value string
}

// Archive is a parsed PBO file. Entry contents are not loaded: they are read on demand from the
// underlying source when hashing.
//
// The methods of an Archive may be called concurrently as long as the source supports
// concurrent ReadAt calls, which is the case for files opened by OpenArchive.
type Archive struct {
	VersionHeader EntryHeader
	Properties    []Property
	Entries       []EntryHeader
	Checksum      Hex

	source    io.ReaderAt
	closer    io.Closer
	blobStart int64
	size      int64
}

// OpenArchive parses the PBO file at the given path. The file stays open until Close is called.
func OpenArchive(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	archive, err := ReadArchive(file, info.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	archive.closer = file

	return archive, nil
}

// ReadArchive parses a PBO archive of the given size.
func ReadArchive(source io.ReaderAt, size int64) (*Archive, error) {
	rd := reader.New(io.NewSectionReader(source, 0, size))

	versionHeader, err := readEntryHeader(rd)
	if err != nil {
		return nil, err
	}
	if versionHeader.Mime != MimeVersion {
		return nil, fmt.Errorf("pbo: first header must be a version header, got %s: %w", versionHeader.Mime, ErrNotAnArchive)
	}

	var properties []Property
	for {
		key, err := rd.ReadCString()
		if err != nil {
			return nil, recordErr("pbo", "property key", err)
		}
		if key == "" {
			break
		}
		value, err := rd.ReadCString()
		if err != nil {
			return nil, recordErr("pbo", fmt.Sprintf("property %q", key), err)
		}
		properties = append(properties, Property{Key: key, Value: value})
	}

	var entries []EntryHeader
	var blobSize int64
	for {
		header, err := readEntryHeader(rd)
		if err != nil {
			return nil, err
		}
		if header.Filename == "" {
			break
		}
		entries = append(entries, *header)
		blobSize += int64(header.Size)
	}

	blobStart := rd.Offset()

	// Packers leave one unused byte between the last entry and the checksum.
	err = rd.Discard(blobSize + 1)
	if err != nil {
		return nil, recordErr("pbo", "data", err)
	}

	checksum, err := rd.ReadFull(ChecksumSize)
	if err != nil {
		return nil, recordErr("pbo", "checksum", err)
	}

	if rd.Offset() != size {
		return nil, fmt.Errorf("pbo: %d bytes after checksum at 0x%x: %w", size-rd.Offset(), rd.Offset(), ErrTrailingData)
	}

	return &Archive{
		VersionHeader: *versionHeader,
		Properties:    properties,
		Entries:       entries,
		Checksum:      checksum,
		source:        source,
		blobStart:     blobStart,
		size:          size,
	}, nil
}

// Property returns the value of the last property with the given key.
func (a *Archive) Property(key string) (string, bool) {
	for i := len(a.Properties) - 1; i >= 0; i-- {
		if a.Properties[i].Key == key {
			return a.Properties[i].Value, true
		}
	}
	return "", false
}

// BlobStart is the offset of the first entry content.
func (a *Archive) BlobStart() int64 {
	return a.blobStart
}

// Size of the whole archive.
func (a *Archive) Size() int64 {
	return a.size
}

// Close releases the underlying file if the archive was opened with OpenArchive.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	closer := a.closer
	a.closer = nil
	return closer.Close()
}
