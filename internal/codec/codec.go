// Package codec undoes the obfuscations remote sources apply to page images.
//
// Every function is pure: bytes or images in, bytes or images out.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG for Decode
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/webp"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// JPEGQuality is used whenever a codec has to re-encode an image.
const JPEGQuality = 92

// mriXOR is the constant every MRI payload byte is XORed with.
const mriXOR = 101

// MediaType sniffs the media type of data.
func MediaType(data []byte) string {
	mt := mimetype.Detect(data).String()
	mt, _, _ = strings.Cut(mt, ";")
	return mt
}

// WebPToJPEG re-encodes a WEBP image as JPEG.
func WebPToJPEG(data []byte) ([]byte, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDecode, "decode webp")
	}
	return EncodeJPEG(img)
}

// EncodeJPEG encodes img at JPEGQuality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, errors.Wrap(err, errors.CodeDecode, "encode jpeg")
	}
	return buf.Bytes(), nil
}

// Decode decodes any JPEG, PNG or WEBP image.
func Decode(data []byte) (image.Image, error) {
	if MediaType(data) == "image/webp" {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDecode, "decode webp")
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDecode, "decode image")
	}
	return img, nil
}

// XORStreamDecrypt XORs ciphertext with the bytes of hexKey repeated to its length.
// Applying it twice with the same key yields the input.
func XORStreamDecrypt(ciphertext []byte, hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDecode, "decode xor key")
	}
	if len(key) == 0 {
		return nil, errors.Decodef("empty xor key")
	}

	out := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		out[i] = b ^ key[i%len(key)]
	}
	return out, nil
}

// MRIToWebP wraps an MRI payload in a RIFF/WEBP container.
//
// The header is "RIFF", the little-endian payload size plus 7, then
// "WEBPVP8"; each payload byte is XORed with 101.
func MRIToWebP(data []byte) []byte {
	out := make([]byte, 0, 15+len(data))
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)+7)) //nolint:gosec // payloads are far below 4 GiB
	out = append(out, "WEBPVP8"...)
	for _, b := range data {
		out = append(out, mriXOR^b)
	}
	return out
}

// Normalize converts data to a format every image reader handles.
// WEBP becomes JPEG; everything else passes through.
func Normalize(data []byte) ([]byte, string, error) {
	mt := MediaType(data)
	if mt != "image/webp" {
		return data, mt, nil
	}
	out, err := WebPToJPEG(data)
	if err != nil {
		return nil, "", err
	}
	return out, "image/jpeg", nil
}

// Extension returns the usual file extension for a media type.
func Extension(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "image/avif":
		return "avif"
	case "text/plain":
		return "txt"
	default:
		return "bin"
	}
}
