package pbosign

import (
	"fmt"

	"github.com/connesc/pbosign/reader"
)

// Mime is the packing method of an archive entry.
type Mime uint32

const (
	// MimeBlank is used by plain entries and by the header terminating the entry table.
	MimeBlank Mime = 0x0000_0000
	// MimeVersion marks the header that starts every archive.
	MimeVersion Mime = 0x5665_7273
	// MimeCompressed marks a compressed entry.
	MimeCompressed Mime = 0x4370_7273
	// MimeEncrypted marks an entry encoded by VBS.
	MimeEncrypted Mime = 0x456e_6372
)

func (m Mime) String() string {
	switch m {
	case MimeBlank:
		return "blank"
	case MimeVersion:
		return "vers"
	case MimeCompressed:
		return "cprs"
	case MimeEncrypted:
		return "encr"
	}
	return Hex32(m).String()
}

// MarshalText implements encoding.TextMarshaler, also used for JSON encoding.
func (m Mime) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m Mime) valid() bool {
	switch m {
	case MimeBlank, MimeVersion, MimeCompressed, MimeEncrypted:
		return true
	}
	return false
}

// EntryHeader describes one file stored in an archive.
type EntryHeader struct {
	Filename     string
	Mime         Mime
	OriginalSize uint32
	Reserved     uint32
	Timestamp    uint32
	Size         uint32
}

func readEntryHeader(rd *reader.Reader) (*EntryHeader, error) {
	offset := rd.Offset()

	filename, err := rd.ReadCString()
	if err != nil {
		return nil, recordErr("pbo", fmt.Sprintf("header at 0x%x: filename", offset), err)
	}

	var fields [5]uint32
	for i := range fields {
		fields[i], err = rd.ReadUint32()
		if err != nil {
			return nil, recordErr("pbo", fmt.Sprintf("header %q", filename), err)
		}
	}

	mime := Mime(fields[0])
	if !mime.valid() {
		return nil, recordErrf("pbo", fmt.Sprintf("header %q", filename), "unknown mime %s", Hex32(fields[0]))
	}

	return &EntryHeader{
		Filename:     filename,
		Mime:         mime,
		OriginalSize: fields[1],
		Reserved:     fields[2],
		Timestamp:    fields[3],
		Size:         fields[4],
	}, nil
}
