package xlutil

import "encoding/binary"

// Dimensions is the pixel size of a sniffed image.
type Dimensions struct {
	Width  int
	Height int
}

// ImageDimensions sniffs an image's pixel dimensions from its magic
// bytes, trying PNG, then JPEG, WebP, BMP, TIFF, GIF in turn — the same
// order and byte offsets as the reference implementation this module
// was distilled from (imagesize.rs). Returns ok=false for anything
// else; the img helper turns that into an error, which fails the
// render.
func ImageDimensions(data []byte) (Dimensions, bool) {
	if d, ok := pngDimensions(data); ok {
		return d, true
	}
	if d, ok := jpegDimensions(data); ok {
		return d, true
	}
	if d, ok := webpDimensions(data); ok {
		return d, true
	}
	if d, ok := bmpDimensions(data); ok {
		return d, true
	}
	if d, ok := tiffDimensions(data); ok {
		return d, true
	}
	if d, ok := gifDimensions(data); ok {
		return d, true
	}
	return Dimensions{}, false
}

// SniffFormat identifies an image's file extension and OOXML content
// type from its magic bytes, using the same detection order as
// ImageDimensions. Returns ok=false for anything it doesn't recognize.
func SniffFormat(data []byte) (ext, contentType string, ok bool) {
	switch {
	case len(data) >= 8 && string(data[0:8]) == "\x89PNG\r\n\x1a\n":
		return "png", "image/png", true
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg", "image/jpeg", true
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "webp", "image/webp", true
	case len(data) >= 2 && string(data[0:2]) == "BM":
		return "bmp", "image/bmp", true
	case len(data) >= 4 && (string(data[0:2]) == "II" || string(data[0:2]) == "MM"):
		return "tiff", "image/tiff", true
	case len(data) >= 6 && (string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a"):
		return "gif", "image/gif", true
	}
	return "", "", false
}

func pngDimensions(data []byte) (Dimensions, bool) {
	sig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	if len(data) < 24 || string(data[0:8]) != string(sig) {
		return Dimensions{}, false
	}
	w := binary.BigEndian.Uint32(data[16:20])
	h := binary.BigEndian.Uint32(data[20:24])
	return Dimensions{int(w), int(h)}, true
}

func jpegDimensions(data []byte) (Dimensions, bool) {
	i := 2
	for i+9 < len(data) {
		if data[i] != 0xFF {
			i++
			continue
		}
		marker := data[i+1]
		length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if marker == 0xC0 || marker == 0xC2 { // SOF0, SOF2
			h := binary.BigEndian.Uint16(data[i+5 : i+7])
			w := binary.BigEndian.Uint16(data[i+7 : i+9])
			return Dimensions{int(w), int(h)}, true
		}
		i += 2 + length
	}
	return Dimensions{}, false
}

func webpDimensions(data []byte) (Dimensions, bool) {
	if len(data) < 30 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return Dimensions{}, false
	}
	switch {
	case string(data[12:16]) == "VP8X":
		w := 1 + (uint32(data[24]) | uint32(data[25])<<8 | uint32(data[26])<<16)
		h := 1 + (uint32(data[27]) | uint32(data[28])<<8 | uint32(data[29])<<16)
		return Dimensions{int(w), int(h)}, true
	case string(data[12:15]) == "VP8" && data[15] == ' ':
		w := binary.LittleEndian.Uint16(data[26:28])
		h := binary.LittleEndian.Uint16(data[28:30])
		return Dimensions{int(w), int(h)}, true
	case string(data[12:16]) == "VP8L":
		b := data[21:25]
		w := 1 + ((uint32(b[1]&0x3F) << 8) | uint32(b[0]))
		h := 1 + ((uint32(b[3]&0x0F) << 10) | (uint32(b[2]) << 2) | (uint32(b[1]&0xC0) >> 6))
		return Dimensions{int(w), int(h)}, true
	}
	return Dimensions{}, false
}

func bmpDimensions(data []byte) (Dimensions, bool) {
	if len(data) < 26 || string(data[0:2]) != "BM" {
		return Dimensions{}, false
	}
	w := binary.LittleEndian.Uint32(data[18:22])
	h := binary.LittleEndian.Uint32(data[22:26])
	return Dimensions{int(w), int(h)}, true
}

func tiffDimensions(data []byte) (Dimensions, bool) {
	if len(data) < 8 {
		return Dimensions{}, false
	}
	var order binary.ByteOrder
	switch {
	case string(data[0:2]) == "II":
		order = binary.LittleEndian
	case string(data[0:2]) == "MM":
		order = binary.BigEndian
	default:
		return Dimensions{}, false
	}
	if order.Uint16(data[2:4]) != 42 {
		return Dimensions{}, false
	}
	ifdOffset := int(order.Uint32(data[4:8]))
	if len(data) < ifdOffset+2 {
		return Dimensions{}, false
	}
	numEntries := int(order.Uint16(data[ifdOffset : ifdOffset+2]))
	var width, height *uint32
	for i := 0; i < numEntries; i++ {
		entry := ifdOffset + 2 + i*12
		if len(data) < entry+12 {
			break
		}
		tag := order.Uint16(data[entry : entry+2])
		fieldType := order.Uint16(data[entry+2 : entry+4])
		valueOffset := data[entry+8 : entry+12]
		var v uint32
		switch fieldType {
		case 3: // SHORT
			v = uint32(order.Uint16(valueOffset[0:2]))
		case 4: // LONG
			v = order.Uint32(valueOffset)
		default:
			continue
		}
		switch tag {
		case 256: // ImageWidth
			width = &v
		case 257: // ImageLength
			height = &v
		}
		if width != nil && height != nil {
			break
		}
	}
	if width == nil || height == nil {
		return Dimensions{}, false
	}
	return Dimensions{int(*width), int(*height)}, true
}

func gifDimensions(data []byte) (Dimensions, bool) {
	if len(data) < 10 || (string(data[0:6]) != "GIF87a" && string(data[0:6]) != "GIF89a") {
		return Dimensions{}, false
	}
	w := binary.LittleEndian.Uint16(data[6:8])
	h := binary.LittleEndian.Uint16(data[8:10])
	return Dimensions{int(w), int(h)}, true
}
