package history

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

const fingerprintPrefixBytes = 1024 * 1024

// Fingerprint identifies an asset by its absolute path, its size and the
// first MiB of its content
func Fingerprint(path string) (string, int64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", 0, err
	}

	file, err := os.Open(abs)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", 0, err
	}

	h := blake3.New(32, nil)
	_, _ = fmt.Fprintf(h, "%s\x00%d\x00", abs, info.Size())
	if _, err := io.CopyN(h, file, fingerprintPrefixBytes); err != nil && err != io.EOF {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), info.Size(), nil
}
