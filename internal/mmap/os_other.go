//go:build !unix

package mmap

import "io"

func osMap(f Mapper, size int) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	n, err := f.ReadAt(data, 0)
	if n == size {
		err = nil
	} else if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}

func osAdvise([]byte, AccessPattern) error { return nil }
