package transport

import (
	"errors"
	"io"
	"os"
)

var stdioEndpoint = Endpoint{Address: "stdio://", Name: "stdio"}

type ioduplex struct {
	io.WriteCloser
	io.ReadCloser
	remote Endpoint
}

func (d *ioduplex) Close() error {
	return errors.Join(d.WriteCloser.Close(), d.ReadCloser.Close())
}

func (d *ioduplex) Remote() Endpoint {
	return d.remote
}

// DialIO returns a stream that writes to out and reads from in.
func DialIO(out io.WriteCloser, in io.ReadCloser) (Stream, error) {
	return &ioduplex{out, in, Endpoint{Address: "io://", Name: "io"}}, nil
}

// DialStdio returns a stream over Stdout and Stdin.
func DialStdio() (Stream, error) {
	return &ioduplex{os.Stdout, os.Stdin, stdioEndpoint}, nil
}
