package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// JPEGEncoder encodes raw RGB24 and Gray8 frames with image/jpeg.
type JPEGEncoder struct{}

// Encode implements Encoder.
func (JPEGEncoder) Encode(f *Frame, quality int) (Buffer, error) {
	img, err := toImage(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	var buf bytes.Buffer
	buf.Grow(f.Width * f.Height / 8)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return NewBuffer(buf.Bytes(), nil), nil
}

// toImage wraps frame bytes in an image.Image without copying where possible.
func toImage(f *Frame) (image.Image, error) {
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case FormatGray8:
		if len(f.Data) < f.Width*f.Height {
			return nil, fmt.Errorf("gray8 frame too short: %d bytes for %dx%d", len(f.Data), f.Width, f.Height)
		}
		return &image.Gray{Pix: f.Data, Stride: f.Width, Rect: rect}, nil
	case FormatRGB24:
		if len(f.Data) < f.Width*f.Height*3 {
			return nil, fmt.Errorf("rgb24 frame too short: %d bytes for %dx%d", len(f.Data), f.Width, f.Height)
		}
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i+2 < len(f.Data) && j < len(img.Pix); i, j = i+3, j+4 {
			img.Pix[j] = f.Data[i]
			img.Pix[j+1] = f.Data[i+1]
			img.Pix[j+2] = f.Data[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("cannot encode %s frame", f.Format)
	}
}
