package torrent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/bencode"
)

// MaxMetainfoSize bounds how much of a file is read before decoding.
const MaxMetainfoSize = 10 * 1024 * 1024

// InvalidContentError reports a file that is not usable torrent metainfo.
type InvalidContentError struct {
	Filename string // File that failed validation
	Reason   string // Why the content was rejected
	Err      error  // Underlying error, if any
}

func (e *InvalidContentError) Error() string {
	return fmt.Sprintf("invalid torrent content in %s: %s", e.Filename, e.Reason)
}

func (e *InvalidContentError) Unwrap() error {
	return e.Err
}

// Validate reads path and checks that it holds bencoded metainfo.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	name := filepath.Base(path)

	if info.Size() > MaxMetainfoSize {
		return &InvalidContentError{
			Filename: name,
			Reason:   fmt.Sprintf("file is %d bytes, over the %d byte limit", info.Size(), MaxMetainfoSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	return ValidateBytes(name, data)
}

// ValidateBytes checks that data is a bencoded dictionary carrying an info
// dictionary.
func ValidateBytes(filename string, data []byte) error {
	if len(data) == 0 {
		return &InvalidContentError{Filename: filename, Reason: "file is empty"}
	}

	var metainfo any
	if err := bencode.DecodeBytes(data, &metainfo); err != nil {
		return &InvalidContentError{
			Filename: filename,
			Reason:   fmt.Sprintf("invalid bencode structure: %v", err),
			Err:      err,
		}
	}

	dict, ok := metainfo.(map[string]any)
	if !ok {
		return &InvalidContentError{Filename: filename, Reason: "bencode root must be a dictionary"}
	}

	if _, ok := dict["info"].(map[string]any); !ok {
		return &InvalidContentError{Filename: filename, Reason: "bencode missing required 'info' dictionary"}
	}

	return nil
}
