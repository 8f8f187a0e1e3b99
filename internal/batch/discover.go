package batch

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/connesc/pbosign"
	"github.com/pkg/errors"
)

var (
	keyNameRegexp       = regexp.MustCompile(`^(.+)\.bikey$`)
	archiveNameRegexp   = regexp.MustCompile(`^(.+)\.pbo$`)
	signatureNameRegexp = regexp.MustCompile(`^(.+)\.pbo\.(.+)\.bisign$`)
)

// DirEntry is an item of a directory listing.
type DirEntry struct {
	Path   string
	IsFile bool
}

// ListDir lists the direct children of dir. Symbolic links are followed to decide IsFile.
func ListDir(dir string) ([]DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list directory")
	}

	list := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		isFile := entry.Type().IsRegular()
		if entry.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(path); err == nil {
				isFile = info.Mode().IsRegular()
			}
		}
		list = append(list, DirEntry{Path: path, IsFile: isFile})
	}
	return list, nil
}

// KeyFile is a .bikey file named after its authority.
type KeyFile struct {
	Authority pbosign.Authority
	Path      string
}

// MatchKeyFiles selects the .bikey files of a listing.
func MatchKeyFiles(entries []DirEntry) ([]KeyFile, error) {
	var keys []KeyFile
	for _, entry := range entries {
		if !entry.IsFile {
			continue
		}
		match := keyNameRegexp.FindStringSubmatch(filepath.Base(entry.Path))
		if match == nil {
			continue
		}
		authority, err := pbosign.NewAuthority(match[1])
		if err != nil {
			return nil, errors.Wrapf(err, "key file %s", entry.Path)
		}
		keys = append(keys, KeyFile{Authority: authority, Path: entry.Path})
	}
	return keys, nil
}

// LoadKeys reads every .bikey file of dir. The authority stored in each key must match its file
// name.
func LoadKeys(dir string) (map[pbosign.Authority]*pbosign.PublicKey, error) {
	entries, err := ListDir(dir)
	if err != nil {
		return nil, err
	}
	files, err := MatchKeyFiles(entries)
	if err != nil {
		return nil, err
	}

	keys := make(map[pbosign.Authority]*pbosign.PublicKey, len(files))
	for _, file := range files {
		key, err := readPublicKey(file.Path)
		if err != nil {
			return nil, err
		}
		if key.Authority() != file.Authority {
			return nil, errors.Errorf("authority mismatch in %s: file is named %s, key belongs to %s",
				file.Path, file.Authority, key.Authority())
		}
		keys[file.Authority] = key
	}
	return keys, nil
}

func readPublicKey(path string) (*pbosign.PublicKey, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	key, err := pbosign.ReadPublicKey(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read public key %s", path)
	}
	return key, nil
}

// SignatureFile is a .bisign file found next to an archive.
type SignatureFile struct {
	Authority pbosign.Authority
	Path      string
}

// Target is an archive and the signatures to check against it.
type Target struct {
	Archive    string
	Signatures []SignatureFile
}

// MatchTargets pairs the archives of a listing with their signatures. Archives without any
// signature, and signatures whose name does not hold a valid authority, are returned as skipped
// and failed results respectively.
func MatchTargets(entries []DirEntry) ([]Target, []Result) {
	archives := make(map[string]string)
	signatures := make(map[string][]SignatureFile)
	var rejected []Result

	for _, entry := range entries {
		if !entry.IsFile {
			continue
		}
		name := filepath.Base(entry.Path)

		if match := archiveNameRegexp.FindStringSubmatch(name); match != nil {
			archives[match[1]] = entry.Path
		} else if match := signatureNameRegexp.FindStringSubmatch(name); match != nil {
			authority, err := pbosign.NewAuthority(match[2])
			if err != nil {
				result := Result{Signature: entry.Path, Authority: match[2]}
				result.fail(StatusFailed, err)
				rejected = append(rejected, result)
				continue
			}
			signatures[match[1]] = append(signatures[match[1]], SignatureFile{Authority: authority, Path: entry.Path})
		}
	}

	names := make([]string, 0, len(archives))
	for name := range archives {
		names = append(names, name)
	}
	sort.Strings(names)

	var targets []Target
	for _, name := range names {
		sigs := signatures[name]
		if len(sigs) == 0 {
			result := Result{Archive: archives[name]}
			result.fail(StatusSkipped, errors.New("no signature found"))
			rejected = append(rejected, result)
			continue
		}
		sort.Slice(sigs, func(i, j int) bool {
			return sigs[i].Path < sigs[j].Path
		})
		targets = append(targets, Target{Archive: archives[name], Signatures: sigs})
	}

	return targets, rejected
}

// ResolveArchives expands a glob pattern, which may contain "**", to the .pbo files it matches.
func ResolveArchives(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
	}

	var archives []string
	for _, match := range matches {
		if filepath.Ext(match) != ".pbo" {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		archives = append(archives, match)
	}
	sort.Strings(archives)
	return archives, nil
}

// SignaturePath is the conventional location of the signature of an archive:
// <archive>.pbo.<authority>.bisign next to the archive.
func SignaturePath(archivePath string, authority pbosign.Authority) string {
	return strings.TrimSuffix(archivePath, ".pbo") + ".pbo." + authority.String() + ".bisign"
}
