package logging

import "github.com/Graylog2/go-gelf/gelf"

// NewGelfWriter opens a GELF UDP writer for Graylog shipping.
func NewGelfWriter(address, facility string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, err
	}
	w.Facility = facility
	return w, nil
}
