// Package pixel converts between encoded image files and rows x cols x
// channels uint8 ChunkedArrays.
package pixel

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	// decode only
	_ "golang.org/x/image/webp"

	"github.com/dnlglsn/sipl"
)

// Format names, as reported by image.Decode
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
	FormatWebP = "webp"
)

// JPEGQuality is the quality used when encoding jpeg output.
var JPEGQuality = 75

var extFormats = map[string]string{
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".webp": FormatWebP,
}

// FormatFromPath picks an image format from a file extension.
func FormatFromPath(path string) (string, error) {
	f, ok := extFormats[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", errors.Errorf("pixel: no image format for %q", path)
	}
	return f, nil
}

// Open decodes the image file at path. The result carries the absolute
// path under the "filename" metadata key.
func Open(path string) (*sipl.ChunkedArray, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, errors.Wrap(err, "pixel: open")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "pixel: decode %s", abs)
	}
	return fromImage(img, sipl.Metadata{sipl.MetaFilename: abs})
}

// Decode reads any registered image format from r and reports the format
// name alongside the pixels.
func Decode(r io.Reader) (*sipl.ChunkedArray, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "pixel: decode")
	}
	a, err := FromImage(img)
	return a, format, err
}

// FromImage copies img into a rows x cols x channels array. Grey images
// give one channel, opaque colour images three and images with an alpha
// channel four.
func FromImage(img image.Image) (*sipl.ChunkedArray, error) {
	return fromImage(img, nil)
}

func fromImage(img image.Image, md sipl.Metadata) (*sipl.ChunkedArray, error) {
	b := img.Bounds()
	rows, cols := b.Dy(), b.Dx()
	channels := channelsOf(img)

	var buf []byte
	if channels == 1 {
		gray := image.NewGray(image.Rect(0, 0, cols, rows))
		xdraw.Draw(gray, gray.Bounds(), img, b.Min, xdraw.Src)
		buf = packRows(gray.Pix, gray.Stride, rows, cols, 1)
	} else {
		nrgba := image.NewNRGBA(image.Rect(0, 0, cols, rows))
		xdraw.Draw(nrgba, nrgba.Bounds(), img, b.Min, xdraw.Src)
		buf = dropAlpha(packRows(nrgba.Pix, nrgba.Stride, rows, cols, 4), channels)
	}

	return sipl.NewChunkedArray(buf, []int{rows, cols, channels}, sipl.Uint8, sipl.WithMetadata(md))
}

// FromPixels wraps interleaved 8 bit samples as a rows x cols x channels
// array.
func FromPixels(buf []byte, rows, cols, channels int) (*sipl.ChunkedArray, error) {
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	return sipl.NewChunkedArray(buf, []int{rows, cols, channels}, sipl.Uint8)
}

// channelsOf maps the colour model of a decoded image to a channel count.
func channelsOf(img image.Image) int {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.NRGBA, *image.NRGBA64, *image.NYCbCrA:
		return 4
	case *image.YCbCr, *image.CMYK:
		return 3
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return 4
			}
		}
		return 3
	}
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return 3
	}
	return 4
}

func packRows(pix []byte, stride, rows, cols, n int) []byte {
	out := make([]byte, 0, rows*cols*n)
	for y := 0; y < rows; y++ {
		out = append(out, pix[y*stride:y*stride+cols*n]...)
	}
	return out
}

// dropAlpha reduces packed RGBA samples to the first channels samples per
// pixel.
func dropAlpha(rgba []byte, channels int) []byte {
	if channels == 4 {
		return rgba
	}
	out := make([]byte, 0, len(rgba)/4*channels)
	for i := 0; i < len(rgba); i += 4 {
		out = append(out, rgba[i:i+channels]...)
	}
	return out
}

func checkChannels(channels int) error {
	switch channels {
	case 1, 3, 4:
		return nil
	}
	return errors.Wrapf(sipl.ErrUnsupportedChannel, "%d channels", channels)
}

// ToImage builds an image.Image over a copy of the array's pixels. The
// array must hold uint8 samples laid out as rows x cols x channels; a rank
// 2 array is read as a single channel.
func ToImage(a *sipl.ChunkedArray) (image.Image, error) {
	if !a.Dtype().Equal(sipl.Uint8) {
		return nil, errors.Wrapf(sipl.ErrTypeMismatch, "pixel: dtype %s, want %s", a.Dtype(), sipl.Uint8)
	}

	shape := a.Shape()
	switch len(shape) {
	case 2:
		shape = append(shape, 1)
	case 3:
	default:
		return nil, errors.Wrapf(sipl.ErrUnsupportedChannel, "pixel: rank %d array", len(shape))
	}
	rows, cols, channels := shape[0], shape[1], shape[2]
	if err := checkChannels(channels); err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, cols, rows)
	src := a.Buffer()
	switch channels {
	case 1:
		gray := image.NewGray(rect)
		copy(gray.Pix, src)
		return gray, nil
	case 3:
		nrgba := image.NewNRGBA(rect)
		for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
			copy(nrgba.Pix[j:j+3], src[i:i+3])
			nrgba.Pix[j+3] = 0xff
		}
		return nrgba, nil
	default:
		nrgba := image.NewNRGBA(rect)
		copy(nrgba.Pix, src)
		return nrgba, nil
	}
}

// Decimate shrinks img so each side becomes dim/(factor+1). A factor of
// zero returns img unchanged.
func Decimate(img image.Image, factor int) (image.Image, error) {
	if factor < 0 {
		return nil, errors.Errorf("pixel: negative decimation factor %d", factor)
	}
	if factor == 0 {
		return img, nil
	}
	b := img.Bounds()
	w, h := b.Dx()/(factor+1), b.Dy()/(factor+1)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	var dst xdraw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, nil
}

// Encode writes a as an image in the named format, first decimating it by
// decimation (0 keeps full size).
func Encode(w io.Writer, a *sipl.ChunkedArray, format string, decimation int) error {
	img, err := ToImage(a)
	if err != nil {
		return err
	}
	if img, err = Decimate(img, decimation); err != nil {
		return err
	}

	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case FormatGIF:
		err = gif.Encode(w, img, nil)
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return errors.Errorf("pixel: cannot encode format %q", format)
	}
	return errors.Wrapf(err, "pixel: encode %s", format)
}

// Save encodes a to path, choosing the format from the extension.
func Save(path string, a *sipl.ChunkedArray, decimation int) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "pixel: create")
	}
	if err := Encode(f, a, format, decimation); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
