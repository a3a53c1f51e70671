package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrVerifyFailed wraps any dataset/manifest mismatch.
var ErrVerifyFailed = errors.New("dataset verification failed")

// Verify confirms every file listed in the manifest exists under root with the
// recorded size and checksum. The first mismatch short-circuits and is
// reported with the offending path and expected vs. actual values.
func Verify(m *Manifest, root string) error {
	for _, entry := range m.Files {
		path := filepath.Join(root, filepath.FromSlash(entry.Path))

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: missing file %s", ErrVerifyFailed, entry.Path)
			}
			return fmt.Errorf("%w: stat %s: %v", ErrVerifyFailed, entry.Path, err)
		}

		if info.Size() != entry.Size {
			return fmt.Errorf("%w: size mismatch for %s: expected %d, actual %d",
				ErrVerifyFailed, entry.Path, entry.Size, info.Size())
		}

		checksum, err := ChecksumFile(path)
		if err != nil {
			return fmt.Errorf("%w: hash %s: %v", ErrVerifyFailed, entry.Path, err)
		}
		if checksum != entry.Checksum {
			return fmt.Errorf("%w: checksum mismatch for %s: expected %s, actual %s",
				ErrVerifyFailed, entry.Path, entry.Checksum, checksum)
		}
	}
	return nil
}
