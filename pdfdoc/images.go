package pdfdoc

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
)

// ErrUnsupportedImage is returned when a payload is neither a decodable
// PNG nor a decodable JPEG.
var ErrUnsupportedImage = errors.New("unsupported image payload")

// ImageHandle identifies an image embedded into the document. Handles are
// only valid for the document that produced them.
type ImageHandle struct {
	// Name is the XObject resource name the image is drawn under.
	Name string
	// Width and Height are the pixel dimensions of the embedded image.
	Width  int
	Height int

	ref Ref
}

// embeddedImage is the encoded form of an image ready to become an XObject.
type embeddedImage struct {
	width      int
	height     int
	colorSpace string
	filter     string
	data       []byte
	alpha      []byte // zlib-compressed soft mask, nil when fully opaque
}

// EmbedImage encodes a payload and appends it to the document as an image
// XObject, returning a handle for DrawImage. PNG encoding is tried first;
// on failure the payload is retried as JPEG. Anything else fails with
// ErrUnsupportedImage.
//
// PNG alpha channels are preserved as a separate SMask object so
// transparent signature backgrounds survive embedding.
func (d *Document) EmbedImage(payload []byte) (ImageHandle, error) {
	img, err := encodePNG(payload)
	if err != nil {
		img, err = encodeJPEG(payload)
	}
	if err != nil {
		return ImageHandle{}, fmt.Errorf("%w: not a decodable PNG or JPEG", ErrUnsupportedImage)
	}

	dict := NewDict()
	dict.Set("Type", Name("XObject"))
	dict.Set("Subtype", Name("Image"))
	dict.Set("Width", Integer(img.width))
	dict.Set("Height", Integer(img.height))
	dict.Set("ColorSpace", Name(img.colorSpace))
	dict.Set("BitsPerComponent", Integer(8))
	dict.Set("Filter", Name(img.filter))

	if img.alpha != nil {
		maskDict := NewDict()
		maskDict.Set("Type", Name("XObject"))
		maskDict.Set("Subtype", Name("Image"))
		maskDict.Set("Width", Integer(img.width))
		maskDict.Set("Height", Integer(img.height))
		maskDict.Set("ColorSpace", Name("DeviceGray"))
		maskDict.Set("BitsPerComponent", Integer(8))
		maskDict.Set("Filter", Name("FlateDecode"))
		maskRef := d.addObject(NewStream(maskDict, img.alpha))
		dict.Set("SMask", maskRef)
	}

	ref := d.addObject(NewStream(dict, img.data))
	d.imageSeq++
	return ImageHandle{
		Name:   fmt.Sprintf("InkSig%d", d.imageSeq),
		Width:  img.width,
		Height: img.height,
		ref:    ref,
	}, nil
}

// encodePNG decodes a PNG and re-encodes its pixels as Flate-compressed
// DeviceRGB, with the alpha channel split into a compressed soft mask.
func encodePNG(payload []byte) (*embeddedImage, error) {
	src, err := png.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.New("degenerate image dimensions")
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false
	for i := 0; i < w*h; i++ {
		o := i * 4
		pixels = append(pixels, nrgba.Pix[o], nrgba.Pix[o+1], nrgba.Pix[o+2])
		a := nrgba.Pix[o+3]
		alpha = append(alpha, a)
		if a < 255 {
			hasAlpha = true
		}
	}

	compressed, err := compressZlib(pixels)
	if err != nil {
		return nil, err
	}
	img := &embeddedImage{
		width:      w,
		height:     h,
		colorSpace: "DeviceRGB",
		filter:     "FlateDecode",
		data:       compressed,
	}
	if hasAlpha {
		img.alpha, err = compressZlib(alpha)
		if err != nil {
			return nil, err
		}
	}
	return img, nil
}

// encodeJPEG validates a JPEG header and embeds the original bytes
// unchanged under DCTDecode.
func encodeJPEG(payload []byte) (*embeddedImage, error) {
	config, err := jpeg.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	colorSpace := "DeviceRGB"
	switch config.ColorModel {
	case color.GrayModel:
		colorSpace = "DeviceGray"
	case color.CMYKModel:
		colorSpace = "DeviceCMYK"
	}

	return &embeddedImage{
		width:      config.Width,
		height:     config.Height,
		colorSpace: colorSpace,
		filter:     "DCTDecode",
		data:       payload,
	}, nil
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
