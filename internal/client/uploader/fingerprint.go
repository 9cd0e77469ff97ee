package uploader

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spaolacci/murmur3"
)

// Fingerprint identifies one upload attempt of a file to a folder. The same file
// sent to another folder, or modified in between, gets a different fingerprint.
func Fingerprint(name string, size int64, modTime time.Time, folder string) string {
	key := name + "\x00" + strconv.FormatInt(size, 10) + "\x00" +
		strconv.FormatInt(modTime.UnixNano(), 10) + "\x00" + folder
	hi, lo := murmur3.Sum128([]byte(key))
	return fmt.Sprintf("%016x%016x", hi, lo)
}
