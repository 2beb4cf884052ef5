package visualize

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/banshee-data/tableseg/internal/segment"
)

// WriteRawLabels writes the label image as row-major little-endian int16,
// the 16SC1 payload without a header.
func WriteRawLabels(w io.Writer, li *segment.LabelImage) error {
	return binary.Write(w, binary.LittleEndian, li.Labels)
}

// ReadRawLabels reads a dump written by WriteRawLabels.
func ReadRawLabels(r io.Reader, height, width int) (*segment.LabelImage, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid label image size %dx%d", height, width)
	}
	li := &segment.LabelImage{Height: height, Width: width, Labels: make([]int16, height*width)}
	if err := binary.Read(r, binary.LittleEndian, li.Labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return li, nil
}
