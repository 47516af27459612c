package codec

import (
	"image"
	"image/draw"
	"strconv"
	"strings"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// ShuffleSpec describes a block-shuffled page.
type ShuffleSpec struct {
	TileWidth  int
	TileHeight int
	// Border pixels on each side of a tile stay in place; only the inner area moves.
	Border int
	// Key, when set, maps destination tile i to source tile Key[i] (row-major).
	// Without a key, tile columns are swapped pairwise and then tile rows.
	Key []int
}

// DefaultShuffleSpec is the 200x200 grid with a 10 pixel boundary.
func DefaultShuffleSpec() ShuffleSpec {
	return ShuffleSpec{TileWidth: 200, TileHeight: 200, Border: 10}
}

// DescrambleBlockShuffle rebuilds a page from shuffled tiles. Pixels outside
// the complete tile grid are copied unchanged.
func DescrambleBlockShuffle(src image.Image, shuffle ShuffleSpec) (*image.RGBA, error) {
	if shuffle.TileWidth <= 2*shuffle.Border || shuffle.TileHeight <= 2*shuffle.Border {
		return nil, errors.Decodef("tile %dx%d too small for border %d", shuffle.TileWidth, shuffle.TileHeight, shuffle.Border)
	}

	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	cols, rows := b.Dx()/shuffle.TileWidth, b.Dy()/shuffle.TileHeight
	n := cols * rows
	if n == 0 {
		return dst, nil
	}

	perm, err := tilePermutation(cols, rows, shuffle.Key)
	if err != nil {
		return nil, err
	}

	innerW, innerH := shuffle.TileWidth-2*shuffle.Border, shuffle.TileHeight-2*shuffle.Border
	for i, from := range perm {
		dx := (i%cols)*shuffle.TileWidth + shuffle.Border
		dy := (i/cols)*shuffle.TileHeight + shuffle.Border
		sx := b.Min.X + (from%cols)*shuffle.TileWidth + shuffle.Border
		sy := b.Min.Y + (from/cols)*shuffle.TileHeight + shuffle.Border

		draw.Draw(dst, image.Rect(dx, dy, dx+innerW, dy+innerH), src, image.Pt(sx, sy), draw.Src)
	}
	return dst, nil
}

func tilePermutation(cols, rows int, key []int) ([]int, error) {
	n := cols * rows
	perm := make([]int, n)

	if len(key) > 0 {
		if len(key) < n {
			return nil, errors.Decodef("key has %d entries for %d tiles", len(key), n)
		}
		for i := range n {
			if key[i] < 0 || key[i] >= n {
				return nil, errors.Decodef("key entry %d out of range: %d", i, key[i])
			}
			perm[i] = key[i]
		}
		return perm, nil
	}

	for r := range rows {
		for c := range cols {
			perm[r*cols+c] = pairPartner(r, rows)*cols + pairPartner(c, cols)
		}
	}
	return perm, nil
}

// pairPartner swaps 0<->1, 2<->3, ...; an unpaired last index stays put.
func pairPartner(i, n int) int {
	p := i ^ 1
	if p >= n {
		return i
	}
	return p
}

// DescrambleBytes decodes data, descrambles it and returns a JPEG.
func DescrambleBytes(data []byte, spec ShuffleSpec) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	out, err := DescrambleBlockShuffle(img, spec)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(out)
}

// KeyFromHex parses "0a:1f:03" into tile indices.
func KeyFromHex(s string) ([]int, error) {
	s = strings.Trim(strings.TrimSpace(s), "\x00")
	if s == "" {
		return nil, errors.Decodef("empty descramble key")
	}
	parts := strings.Split(s, ":")
	key := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 16, 32)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDecode, "parse descramble key")
		}
		key = append(key, int(v))
	}
	return key, nil
}

// DescramblePage rebuilds a block-shuffled page on the default grid. data
// is the page in a decodable format and original the bytes as served. The
// tile key is hexKey when set, else the one in original's EXIF block, else
// tiles are swapped pairwise.
func DescramblePage(original, data []byte, hexKey string) ([]byte, error) {
	shuffle := DefaultShuffleSpec()
	if hexKey != "" {
		key, err := KeyFromHex(hexKey)
		if err != nil {
			return nil, err
		}
		shuffle.Key = key
	} else if key, err := VizKeyFromEXIF(original); err == nil {
		shuffle.Key = key
	}
	return DescrambleBytes(data, shuffle)
}

// VizKeyFromEXIF reads the tile key stored in the ImageUniqueID EXIF tag.
func VizKeyFromEXIF(jpegData []byte) ([]int, error) {
	id, err := ExifImageUniqueID(jpegData)
	if err != nil {
		return nil, err
	}
	return KeyFromHex(id)
}
