package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"

	"screen-select/src/geometry"
)

const iconSize = 32

var (
	frameColor  = color.RGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	handleColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// Icon returns the tray icon: ICO on Windows, PNG elsewhere.
func Icon() []byte {
	data := iconPNG()
	if runtime.GOOS == "windows" {
		return wrapICO(data, iconSize)
	}
	return data
}

// iconPNG draws a dashed selection frame with a drag handle in its bottom-right corner.
func iconPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	frame := geometry.Rect{X: 4, Y: 6, W: 22, H: 18}
	for x := frame.X; x < frame.X+frame.W; x++ {
		if (x/3)%2 == 0 {
			img.SetRGBA(x, frame.Y, frameColor)
			img.SetRGBA(x, frame.Y+frame.H-1, frameColor)
		}
	}
	for y := frame.Y; y < frame.Y+frame.H; y++ {
		if (y/3)%2 == 0 {
			img.SetRGBA(frame.X, y, frameColor)
			img.SetRGBA(frame.X+frame.W-1, y, frameColor)
		}
	}
	for y := 22; y < 30; y++ {
		for x := 24; x < 30; x++ {
			img.SetRGBA(x, y, handleColor)
		}
	}

	var buf bytes.Buffer
	// Encoding an in-memory RGBA image cannot fail.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// wrapICO puts a PNG into a single-image ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	header := struct {
		Reserved uint16
		Type     uint16
		Count    uint16
	}{Type: 1, Count: 1}
	entry := struct {
		Width, Height byte
		Colors        byte
		Reserved      byte
		Planes        uint16
		BitCount      uint16
		Size          uint32
		Offset        uint32
	}{
		Width:    dim,
		Height:   dim,
		Planes:   1,
		BitCount: 32,
		Size:     uint32(len(pngData)),
		Offset:   6 + 16,
	}
	_ = binary.Write(&buf, binary.LittleEndian, header)
	_ = binary.Write(&buf, binary.LittleEndian, entry)
	buf.Write(pngData)
	return buf.Bytes()
}
