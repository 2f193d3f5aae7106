package responsive

import (
	"os"
	"strconv"
)

// MarkupKey identifies one rendered <picture> fragment in the build cache.
type MarkupKey struct {
	ImagePath  string
	Attributes Attributes
	// Page is the destination of the page the fragment is embedded in;
	// relative derivative URLs depend on it.
	Page  string
	HiDPI bool
}

// String returns
// responsive-image:<path>:<attributes-json>:<page>:hidpi=<bool>.
func (k MarkupKey) String() string {
	return "responsive-image:" + k.ImagePath + ":" + k.Attributes.Key() + ":" + k.Page +
		":hidpi=" + strconv.FormatBool(k.HiDPI)
}

// Staleness returns the modification time of path in Unix nanoseconds, or 0
// when the file does not exist. Markup cached for a missing file is
// invalidated once the file appears.
func Staleness(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixNano()
}
