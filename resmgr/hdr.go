/*
Copyright 2025 The goARRG Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package resmgr

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"goarrg.com/debug"
)

// hdrImage is a decoded Radiance RGBE image as linear RGBA float texels, alpha is always 1.
type hdrImage struct {
	width, height int
	pix           []float32
}

func decodeHDR(r io.Reader) (*hdrImage, error) {
	br := bufio.NewReader(r)

	magic, err := br.ReadString('\n')
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to read header")
	}
	magic = strings.TrimSpace(magic)
	if magic != "#?RADIANCE" && magic != "#?RGBE" {
		return nil, debug.Errorf("Not a Radiance HDR file: %q", magic)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, debug.ErrorWrapf(err, "Failed to read header")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if format, ok := strings.CutPrefix(line, "FORMAT="); ok && format != "32-bit_rle_rgbe" {
			return nil, debug.Errorf("Unsupported HDR format: %q", format)
		}
	}

	resolution, err := br.ReadString('\n')
	if err != nil {
		return nil, debug.ErrorWrapf(err, "Failed to read resolution")
	}
	img := &hdrImage{}
	if _, err := fmt.Sscanf(resolution, "-Y %d +X %d", &img.height, &img.width); err != nil {
		return nil, debug.ErrorWrapf(err, "Unsupported HDR orientation: %q", strings.TrimSpace(resolution))
	}
	if img.width <= 0 || img.height <= 0 || img.width > 1<<16 || img.height > 1<<16 {
		return nil, debug.Errorf("Invalid HDR resolution: %dx%d", img.width, img.height)
	}

	img.pix = make([]float32, img.width*img.height*4)
	scanline := make([]byte, img.width*4)
	for y := range img.height {
		if err := readScanline(br, scanline, img.width); err != nil {
			return nil, debug.ErrorWrapf(err, "Failed to read scanline %d", y)
		}
		row := img.pix[y*img.width*4:]
		for x := range img.width {
			r, g, b := rgbeToFloat(scanline[x*4], scanline[x*4+1], scanline[x*4+2], scanline[x*4+3])
			row[x*4+0] = r
			row[x*4+1] = g
			row[x*4+2] = b
			row[x*4+3] = 1
		}
	}
	return img, nil
}

// readScanline fills dst with width RGBE texels, decoding the run length encoding when the scanline uses it.
func readScanline(br *bufio.Reader, dst []byte, width int) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(br, header); err != nil {
		return err
	}

	if width < 8 || width > 0x7fff || header[0] != 2 || header[1] != 2 || header[2]&0x80 != 0 {
		copy(dst, header)
		_, err := io.ReadFull(br, dst[4:])
		return err
	}
	if int(header[2])<<8|int(header[3]) != width {
		return debug.Errorf("Scanline width mismatch")
	}

	// Components are stored planar, each one run length encoded on its own.
	for c := range 4 {
		for x := 0; x < width; {
			count, err := br.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				n := int(count) - 128
				if x+n > width {
					return debug.Errorf("Run overflows scanline")
				}
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				for range n {
					dst[x*4+c] = v
					x++
				}
			} else {
				n := int(count)
				if n == 0 || x+n > width {
					return debug.Errorf("Invalid run length %d", n)
				}
				for range n {
					v, err := br.ReadByte()
					if err != nil {
						return err
					}
					dst[x*4+c] = v
					x++
				}
			}
		}
	}
	return nil
}

func rgbeToFloat(r, g, b, e byte) (float32, float32, float32) {
	if e == 0 {
		return 0, 0, 0
	}
	f := float32(math.Ldexp(1, int(e)-(128+8)))
	return float32(r) * f, float32(g) * f, float32(b) * f
}
