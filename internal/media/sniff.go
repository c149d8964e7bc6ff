package media

import (
	"bytes"
	"io"
	"os"

	"native-thumbnail/internal/mediatypes"
)

// DetectFileType names the container of path from its first bytes.
// It returns "unknown" for unrecognized content.
func DetectFileType(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	header := make([]byte, 32)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return "unknown", nil
		}
		return "", err
	}
	return sniff(header[:n]), nil
}

func sniff(header []byte) string {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "jpeg"

	case len(header) >= 8 && bytes.Equal(header[:4], []byte{0x89, 'P', 'N', 'G'}):
		return "png"

	case len(header) >= 4 && bytes.Equal(header[:4], []byte("GIF8")):
		return "gif"

	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")):
		switch string(header[8:12]) {
		case "WEBP":
			return "webp"
		case "AVI ":
			return "avi"
		}
		return "unknown"

	case len(header) >= 2 && header[0] == 'B' && header[1] == 'M':
		return "bmp"

	case len(header) >= 4 && (bytes.Equal(header[:4], []byte{'I', 'I', 0x2A, 0x00}) ||
		bytes.Equal(header[:4], []byte{'M', 'M', 0x00, 0x2A})):
		return "tiff"

	case len(header) >= 12 && string(header[4:8]) == "ftyp":
		switch string(header[8:12]) {
		case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
			return "heif"
		case "avif", "avis":
			return "avif"
		}
		return "mp4-container"

	case len(header) >= 4 && bytes.Equal(header[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "matroska"

	case len(header) >= 16 && bytes.Equal(header[:16], []byte{
		0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11,
		0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C,
	}):
		return "asf"

	case len(header) >= 2 && header[0] == 0xFF && header[1] == 0x0A:
		return "jxl"

	case len(header) >= 12 && bytes.Equal(header[:8], []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' '}):
		return "jxl"
	}

	return "unknown"
}

// TypeOf classifies path by extension, falling back to its content when the
// extension is not recognized.
func TypeOf(path string) mediatypes.FileType {
	if t := mediatypes.FromPath(path); t != mediatypes.FileTypeOther {
		return t
	}
	name, err := DetectFileType(path)
	if err != nil {
		return mediatypes.FileTypeOther
	}
	return mediatypes.FromSniffed(name)
}
