// SPDX-License-Identifier: MIT
/*
Package persistence saves and loads spectra. A Store writes one file per
spectrum named <base>.spectrum.json or <base>.spectrum.bin, with a trailing
.gz when compression is enabled. Load infers both from the file name.
*/
package persistence

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	applog "biosignal/internal/log"
	"biosignal/internal/spectrum"
)

const gzipExtension = ".gz"

// Store persists spectra under Dir.
type Store struct {
	Dir      string
	Format   Format
	Compress bool
}

// Filename returns the path Save would write base to.
func (st Store) Filename(base string) string {
	name := base + st.Format.Extension()
	if st.Compress {
		name += gzipExtension
	}
	return filepath.Join(st.Dir, name)
}

// Save writes s to Filename(base) and returns the path. Directories are
// created as needed and an existing file is replaced.
func (st Store) Save(s *spectrum.Spectrum, base string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("failed to save spectrum: nil spectrum")
	}
	path := st.Filename(base)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create spectrum directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create spectrum file: %w", err)
	}
	if err := st.write(f, s); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write spectrum %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close spectrum file: %w", err)
	}

	applog.Debugf("Persistence: Saved %s to %s", s, path)
	return path, nil
}

func (st Store) write(f *os.File, s *spectrum.Spectrum) error {
	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var gz *gzip.Writer
	if st.Compress {
		gz = gzip.NewWriter(bw)
		gz.Name = filepath.Base(strings.TrimSuffix(f.Name(), gzipExtension))
		w = gz
	}

	var err error
	if st.Format == Binary {
		err = encodeBinary(w, s)
	} else {
		err = encodeJSON(w, s)
	}
	if err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads back the spectrum Save stored under base.
func (st Store) Load(base string) (*spectrum.Spectrum, error) {
	return Load(st.Filename(base))
}

// Load reads a spectrum written by Save. The encoding and compression are
// taken from the file extension.
func Load(path string) (*spectrum.Spectrum, error) {
	format, compressed, err := detect(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spectrum file: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read spectrum %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	var s *spectrum.Spectrum
	if format == Binary {
		s, err = decodeBinary(r)
	} else {
		s, err = decodeJSON(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read spectrum %s: %w", path, err)
	}
	return s, nil
}

// StoreFor returns the Store and base name that Save would use to write path,
// so spectra derived from a file can be stored next to it in the same
// encoding.
func StoreFor(path string) (Store, string, error) {
	format, compressed, err := detect(path)
	if err != nil {
		return Store{}, "", err
	}
	dir, file := filepath.Split(path)
	base := strings.TrimSuffix(strings.TrimSuffix(file, gzipExtension), format.Extension())
	return Store{Dir: dir, Format: format, Compress: compressed}, base, nil
}

func detect(path string) (Format, bool, error) {
	name := filepath.Base(path)
	compressed := strings.HasSuffix(name, gzipExtension)
	name = strings.TrimSuffix(name, gzipExtension)
	switch {
	case strings.HasSuffix(name, ".json"):
		return JSON, compressed, nil
	case strings.HasSuffix(name, ".bin"):
		return Binary, compressed, nil
	default:
		return JSON, false, fmt.Errorf("unrecognised spectrum file extension: %s", path)
	}
}

// ProfiledFilename derives the file name a profiled spectrum is stored under.
// The first underscore-separated segment of the base name is joined with the
// first segment of the profile name; the directory and every extension are
// kept, so "out/s01_run2.spectrum.json" with profile "alpha_band" becomes
// "out/s01_alpha.spectrum.json".
func ProfiledFilename(name, profileName string) string {
	dir, file := filepath.Split(name)
	stem, ext := file, ""
	if i := strings.IndexByte(file, '.'); i >= 0 {
		stem, ext = file[:i], file[i:]
	}
	return dir + firstSegment(stem) + "_" + firstSegment(profileName) + ext
}

func firstSegment(s string) string {
	head, _, _ := strings.Cut(s, "_")
	return head
}
