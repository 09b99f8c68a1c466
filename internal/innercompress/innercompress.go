// Package innercompress implements the artifact body's pluggable inner
// compressor: the spec treats it as an opaque byte-stream filter, so
// each of the method string's four final tokens ("", "gzip", "bzip2",
// "7zip") is bound here to a real codec instead of a hand-rolled one.
// gzip and bzip2 are drop-in, round-trippable replacements for the
// original's boost::iostreams filters of the same name; "7zip" (the
// original shells out to the 7za CLI for an LZMA stream) becomes an
// in-process xz container, the idiomatic pure-Go equivalent of "an
// LZMA-family filter" without a subprocess dependency.
package innercompress

import (
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/errors"
)

// Kind identifies one of the four inner compressors named in the
// method string grammar.
type Kind int

const (
	None Kind = iota
	Gzip
	Bzip2
	Zip7
)

// Token returns the method-string token this kind contributes: the
// empty string for None, else the token's name.
func (k Kind) Token() string {
	switch k {
	case None:
		return ""
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Zip7:
		return "7zip"
	default:
		return ""
	}
}

// ParseToken recovers a Kind from its method-string token.
func ParseToken(token string) (Kind, error) {
	switch token {
	case "":
		return None, nil
	case "gzip":
		return Gzip, nil
	case "bzip2":
		return Bzip2, nil
	case "7zip":
		return Zip7, nil
	default:
		return None, codecerrors.NewConfiguration("unknown inner compressor %q", token)
	}
}

// Compress writes body through the compressor selected by kind into w.
func Compress(w io.Writer, kind Kind, body []byte) error {
	switch kind {
	case None:
		_, err := w.Write(body)
		return errors.Wrap(err)

	case Gzip:
		gw := gzip.NewWriter(w)
		if _, err := gw.Write(body); err != nil {
			return errors.Wrap(err)
		}
		return errors.Wrap(gw.Close())

	case Bzip2:
		bw, err := bzip2.NewWriter(w, nil)
		if err != nil {
			return errors.Wrap(err)
		}
		if _, err := bw.Write(body); err != nil {
			return errors.Wrap(err)
		}
		return errors.Wrap(bw.Close())

	case Zip7:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return errors.Wrap(err)
		}
		if _, err := xw.Write(body); err != nil {
			return errors.Wrap(err)
		}
		return errors.Wrap(xw.Close())

	default:
		return codecerrors.NewConfiguration("unknown inner compressor kind %d", kind)
	}
}

// Decompress reads r, which was produced by Compress with the same
// kind, and returns the decompressed body.
func Decompress(r io.Reader, kind Kind) ([]byte, error) {
	switch kind {
	case None:
		body, err := io.ReadAll(r)
		return body, errors.Wrap(err)

	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err)
		}
		defer gr.Close()
		body, err := io.ReadAll(gr)
		return body, errors.Wrap(err)

	case Bzip2:
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, errors.Wrap(err)
		}
		defer br.Close()
		body, err := io.ReadAll(br)
		return body, errors.Wrap(err)

	case Zip7:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err)
		}
		body, err := io.ReadAll(xr)
		return body, errors.Wrap(err)

	default:
		return nil, codecerrors.NewConfiguration("unknown inner compressor kind %d", kind)
	}
}
