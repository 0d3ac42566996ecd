package store

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/sbinet/npyio"
)

// DoseKey is the array name inside dose.npz.
const DoseKey = "dose_1d"

// EncodeNPZ writes arrays as a deflate-compressed NumPy .npz archive.
func EncodeNPZ(w io.Writer, arrays map[string][]float64, order ...string) error {
	zw := zip.NewWriter(w)
	for _, name := range order {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: name + ".npy", Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("npz entry %s: %w", name, err)
		}
		if err := npyio.Write(f, arrays[name]); err != nil {
			return fmt.Errorf("npz write %s: %w", name, err)
		}
	}
	return zw.Close()
}

// DecodeNPZ reads one float64 array from an .npz archive.
func DecodeNPZ(data []byte, name string) ([]float64, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("npz open: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != name+".npy" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("npz entry %s: %w", name, err)
		}
		defer rc.Close()
		var out []float64
		if err := npyio.Read(rc, &out); err != nil {
			return nil, fmt.Errorf("npz read %s: %w", name, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("npz: no array %q", name)
}
