// Package retain keeps a small record in LittleFS so it survives deep sleep
// and resets.
//
// Writes are atomic: the record goes to a temporary file which is then
// renamed over the previous one.
package retain

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	dir        = "/retain"
	recordFile = "/retain/state.bin"
	tempSuffix = ".tmp"
)

// Store is a mounted retained-state filesystem.
type Store struct {
	fs      *littlefs.LFS
	log     logrus.FieldLogger
	mounted bool
}

// Open mounts the filesystem on dev, formatting it when it cannot be mounted.
func Open(dev tinyfs.BlockDevice, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.WithField("tag", "retain")
	}
	lfs := littlefs.New(dev)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	if err := lfs.Mount(); err != nil {
		log.WithError(err).Info("formatting retained storage")
		if err := lfs.Format(); err != nil {
			return nil, err
		}
		if err := lfs.Mount(); err != nil {
			return nil, err
		}
	}

	s := &Store{fs: lfs, log: log, mounted: true}
	// Leftover from an interrupted write.
	_ = s.fs.Remove(recordFile + tempSuffix)
	if err := s.fs.Mkdir(dir, 0755); err != nil && !isExist(err) {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close unmounts the filesystem.
func (s *Store) Close() error {
	if !s.mounted {
		return nil
	}
	s.mounted = false
	return s.fs.Unmount()
}

// Load returns the stored record. A missing record, or one written with a
// different layout version, yields a fresh record at CurrentVersion.
func (s *Store) Load() (Record, error) {
	fresh := Record{Version: CurrentVersion}

	f, err := s.fs.Open(recordFile)
	if err != nil {
		if isNotExist(err) {
			return fresh, nil
		}
		return fresh, err
	}
	defer f.Close()

	buf := make([]byte, RecordSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return fresh, ErrInvalidRecord
	}
	var r Record
	if err := r.UnmarshalBinary(buf); err != nil {
		return fresh, err
	}
	if r.Version != CurrentVersion {
		s.log.WithField("version", r.Version).Warn("retained record version mismatch, resetting")
		return fresh, nil
	}
	return r, nil
}

// Save stores r, stamping it with CurrentVersion.
func (s *Store) Save(r Record) error {
	r.Version = CurrentVersion
	data, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	return s.atomicWrite(recordFile, data)
}

// atomicWrite writes data to a temporary file, syncs it, then renames.
func (s *Store) atomicWrite(path string, data []byte) error {
	tempPath := path + tempSuffix
	_ = s.fs.Remove(tempPath)

	f, err := s.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = s.fs.Remove(tempPath)
		return err
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			_ = s.fs.Remove(tempPath)
			return err
		}
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tempPath)
		return err
	}

	// LittleFS rename does not replace an existing file.
	_ = s.fs.Remove(path)
	if err := s.fs.Rename(tempPath, path); err != nil {
		_ = s.fs.Remove(tempPath)
		return err
	}
	return nil
}

// isExist matches "already exists", which LittleFS does not always report
// through os.IsExist.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	return os.IsExist(err) || strings.Contains(err.Error(), "already exists")
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "No directory entry")
}
