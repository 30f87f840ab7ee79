package xlutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ImageSizeSuite struct {
	suite.Suite
}

func TestImageSizeSuite(t *testing.T) {
	suite.Run(t, new(ImageSizeSuite))
}

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 10, G: 20, B: 30, A: 255}}, image.Point{}, draw.Src)
	return img
}

func (s *ImageSizeSuite) TestPNG() {
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, solidImage(200, 50)))
	d, ok := ImageDimensions(buf.Bytes())
	s.Require().True(ok)
	s.Equal(200, d.Width)
	s.Equal(50, d.Height)
}

func (s *ImageSizeSuite) TestJPEG() {
	var buf bytes.Buffer
	s.Require().NoError(jpeg.Encode(&buf, solidImage(64, 32), nil))
	d, ok := ImageDimensions(buf.Bytes())
	s.Require().True(ok)
	s.Equal(64, d.Width)
	s.Equal(32, d.Height)
}

func (s *ImageSizeSuite) TestGIF() {
	var buf bytes.Buffer
	s.Require().NoError(gif.Encode(&buf, solidImage(16, 8), nil))
	d, ok := ImageDimensions(buf.Bytes())
	s.Require().True(ok)
	s.Equal(16, d.Width)
	s.Equal(8, d.Height)
}

func (s *ImageSizeSuite) TestBMP() {
	data := make([]byte, 26)
	copy(data, "BM")
	binary.LittleEndian.PutUint32(data[18:22], 40)
	binary.LittleEndian.PutUint32(data[22:26], 30)
	d, ok := ImageDimensions(data)
	s.Require().True(ok)
	s.Equal(40, d.Width)
	s.Equal(30, d.Height)
}

func (s *ImageSizeSuite) TestTIFFLittleEndian() {
	// Minimal single-IFD TIFF: header + IFD with ImageWidth/ImageLength SHORT entries.
	buf := make([]byte, 8+2+2*12+4)
	copy(buf, "II")
	binary.LittleEndian.PutUint16(buf[2:4], 42)
	binary.LittleEndian.PutUint32(buf[4:8], 8)
	binary.LittleEndian.PutUint16(buf[8:10], 2) // two entries

	entry0 := buf[10:22]
	binary.LittleEndian.PutUint16(entry0[0:2], 256) // ImageWidth
	binary.LittleEndian.PutUint16(entry0[2:4], 3)   // SHORT
	binary.LittleEndian.PutUint32(entry0[4:8], 1)
	binary.LittleEndian.PutUint16(entry0[8:10], 120)

	entry1 := buf[22:34]
	binary.LittleEndian.PutUint16(entry1[0:2], 257) // ImageLength
	binary.LittleEndian.PutUint16(entry1[2:4], 3)   // SHORT
	binary.LittleEndian.PutUint32(entry1[4:8], 1)
	binary.LittleEndian.PutUint16(entry1[8:10], 80)

	d, ok := ImageDimensions(buf)
	s.Require().True(ok)
	s.Equal(120, d.Width)
	s.Equal(80, d.Height)
}

func (s *ImageSizeSuite) TestUnsupportedFormat() {
	_, ok := ImageDimensions([]byte("not an image"))
	s.False(ok)
}
