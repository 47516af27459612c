package codec

import (
	"bytes"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// ExifImageUniqueID returns the ImageUniqueID tag of a JPEG's EXIF block.
func ExifImageUniqueID(data []byte) (string, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return "", errors.Decodef("not a jpeg")
	}
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeNotFound, "exif block")
	}
	tag, err := x.Get(exif.ImageUniqueID)
	if exif.IsTagNotPresentError(err) {
		return "", errors.NotFound("exif ImageUniqueID")
	}
	if err != nil {
		return "", errors.Wrap(err, errors.CodeDecode, "read exif ImageUniqueID")
	}
	id, err := tag.StringVal()
	if err != nil {
		return "", errors.Wrap(err, errors.CodeDecode, "read exif ImageUniqueID")
	}
	return strings.TrimRight(id, "\x00"), nil
}
