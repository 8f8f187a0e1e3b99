package pbosign

import (
	"fmt"
	"strconv"
	"strings"
)

// Version of the signature scheme. It selects which entries contribute to the content hash.
type Version uint32

const (
	// V2 hashes binary assets: fxy, jpg, lip, ogg, p3d, paa, pac, png, rtm, rvmat, tga, wrp, wss.
	V2 Version = 2
	// V3 hashes scripts and configs: bikb, cfg, ext, fsm, h, hpp, inc, sqf, sqfc, sqm, sqs.
	V3 Version = 3
)

var hashedExtensions = map[Version]map[string]bool{
	V2: set("fxy", "jpg", "lip", "ogg", "p3d", "paa", "pac", "png", "rtm", "rvmat", "tga", "wrp", "wss"),
	V3: set("bikb", "cfg", "ext", "fsm", "h", "hpp", "inc", "sqf", "sqfc", "sqm", "sqs"),
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Valid returns nil iff the version is known.
func (v Version) Valid() error {
	switch v {
	case V2, V3:
		return nil
	}
	return fmt.Errorf("unknown signature version %d", uint32(v))
}

// ShouldHash reports whether the content of the named entry is part of the content hash.
func (v Version) ShouldHash(filename string) bool {
	return hashedExtensions[v][extension(filename)]
}

// emptyContent is hashed instead of entry contents when no entry matched.
func (v Version) emptyContent() []byte {
	if v == V2 {
		return []byte("nothing")
	}
	return []byte("gnihton")
}

// extension of the last path component, lower-cased and without the dot.
func extension(filename string) string {
	base := filename[strings.LastIndexAny(filename, `\/`)+1:]
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 {
		return ""
	}
	return strings.ToLower(base[dot+1:])
}

func (v Version) String() string {
	return strconv.FormatUint(uint64(v), 10)
}

// Set implements pflag.Value.
func (v *Version) Set(s string) error {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v")
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid signature version %q", s)
	}
	version := Version(n)
	if err := version.Valid(); err != nil {
		return err
	}
	*v = version
	return nil
}

// Type implements pflag.Value.
func (v *Version) Type() string {
	return "version"
}

// MarshalText implements encoding.TextMarshaler, also used for JSON encoding.
func (v Version) MarshalText() ([]byte, error) {
	return []byte("v" + v.String()), nil
}
