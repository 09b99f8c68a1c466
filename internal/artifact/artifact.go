// Package artifact implements the ArtifactWriter and ArtifactReader:
// composing the method string and header, classifying pages, building
// and parsing the body, and driving the pluggable inner compressor.
// Grounded on the teacher's inventory_archive data_writer_v1.go /
// data_reader_v1.go staged-write-then-atomic-rename shape (this format
// carries no checksum, per the spec's Non-goals, but keeps the same
// ".processing" discipline).
package artifact

import (
	"bytes"
	"os"

	"github.com/mbrengel/memscrimper/internal/classifier"
	"github.com/mbrengel/memscrimper/internal/codecerrors"
	"github.com/mbrengel/memscrimper/internal/errors"
	"github.com/mbrengel/memscrimper/internal/innercompress"
	"github.com/mbrengel/memscrimper/internal/logging"
	"github.com/mbrengel/memscrimper/internal/pagestore"
)

// Options selects the three independent axes of the method string:
// whether intra-deduplication and diffing are enabled, and which inner
// compressor wraps the body.
type Options struct {
	Inner   innercompress.Kind
	Diffing bool
	Intra   bool
}

// Compress classifies src against ref and writes the resulting
// artifact to outPath, atomically replacing any existing file there.
func Compress(ref, src *pagestore.Store, outPath string, opts Options) error {
	log := logging.Logger()

	if opts.Diffing {
		log.Debug().Msg("DIFFING enabled")
	}
	if opts.Intra {
		log.Debug().Msg("INTRA enabled")
	}

	classification, err := classifier.Classify(ref, src, opts.Diffing, opts.Intra)
	if err != nil {
		return errors.Wrap(err)
	}

	body, stats, err := buildBody(ref.Path(), classification, opts.Diffing, opts.Intra)
	if err != nil {
		return errors.Wrap(err)
	}

	log.Debug().
		Int("dedup_representatives", stats.DedupRepresentatives).
		Int("dedup_total_pages", stats.DedupTotalPages).
		Int("diffed_pages", stats.DiffedPages).
		Int("distinct_new_pages", stats.DistinctNewPages).
		Int("new_page_total_pages", stats.NewPageTotalPages).
		Msg("wrote diffs + interval-lists to body")

	var compressedBody bytes.Buffer
	if err := innercompress.Compress(&compressedBody, opts.Inner, body); err != nil {
		return errors.Wrapf(err, "inner compression")
	}

	uncompressedSize := uint64(src.PageCount()) * uint64(src.PageSize())

	header := Header{
		Method:           Method(opts.Intra, opts.Diffing, opts.Inner),
		MajorVersion:     MajorVersion,
		MinorVersion:     MinorVersion,
		PageSize:         src.PageSize(),
		UncompressedSize: uncompressedSize,
	}

	if err := writeAtomic(outPath, header, compressedBody.Bytes()); err != nil {
		return errors.Wrap(err)
	}

	log.Info().Str("path", outPath).Msg("finished compressing file")

	return nil
}

func writeAtomic(outPath string, header Header, compressedBody []byte) error {
	processingPath := outPath + ".processing"

	f, err := os.Create(processingPath)
	if err != nil {
		return errors.Wrapf(err, "creating %q", processingPath)
	}

	if err := WriteHeader(f, header); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing header to %q", processingPath)
	}

	if _, err := f.Write(compressedBody); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing body to %q", processingPath)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing %q", processingPath)
	}

	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing existing %q", outPath)
	}

	if err := os.Rename(processingPath, outPath); err != nil {
		return errors.Wrapf(err, "renaming %q to %q", processingPath, outPath)
	}

	return nil
}

// RefLoader resolves a reference dump path and page size to a loaded
// store, letting callers plug in a refcache instead of a bare
// pagestore.Load for repeated decompress calls against the same
// reference.
type RefLoader func(path string, pageSize uint32) (*pagestore.Store, error)

// Decompress reads the artifact at inPath, resolves its reference dump
// via loadRef, and writes the reconstructed dump to outPath.
func Decompress(inPath, outPath string, loadRef RefLoader) error {
	log := logging.Logger()

	f, err := os.Open(inPath)
	if err != nil {
		return errors.Wrapf(err, "opening artifact %q", inPath)
	}
	defer f.Close()

	header, err := ReadHeader(f)
	if err != nil {
		return errors.Wrapf(err, "reading header of %q", inPath)
	}

	log.Debug().
		Str("method", header.Method).
		Uint16("major_version", header.MajorVersion).
		Uint16("minor_version", header.MinorVersion).
		Uint32("pagesize", header.PageSize).
		Uint64("uncompressed_size", header.UncompressedSize).
		Msg("finished reading header")

	intra, diffing, inner, err := ParseMethod(header.Method)
	if err != nil {
		return errors.Wrapf(err, "parsing method string %q", header.Method)
	}

	body, err := innercompress.Decompress(f, inner)
	if err != nil {
		return errors.Wrapf(err, "inner decompression of %q", inPath)
	}

	if len(body) == 0 {
		return codecerrors.NewFormatMismatch("inner decompression of %q produced an empty body", inPath)
	}

	parsed, stats, err := parseBody(bytes.NewReader(body), header.PageSize, diffing, intra)
	if err != nil {
		return errors.Wrapf(err, "parsing body of %q", inPath)
	}

	log.Debug().
		Int("dedup_representatives", stats.DedupRepresentatives).
		Int("dedup_total_pages", stats.DedupTotalPages).
		Int("diffed_pages", stats.DiffedPages).
		Int("distinct_new_pages", stats.DistinctNewPages).
		Int("new_page_total_pages", stats.NewPageTotalPages).
		Msg("got uncompressed file body")

	if header.PageSize == 0 {
		return codecerrors.NewFormatMismatch("header page size is zero")
	}

	if header.UncompressedSize%uint64(header.PageSize) != 0 {
		return codecerrors.NewFormatMismatch(
			"uncompressed size %d is not a multiple of page size %d",
			header.UncompressedSize, header.PageSize,
		)
	}

	pageCount := header.UncompressedSize / uint64(header.PageSize)

	log.Debug().Str("path", parsed.refPath).Msg("loading refdump")

	ref, err := loadRef(parsed.refPath, header.PageSize)
	if err != nil {
		return errors.Wrapf(err, "loading reference dump %q", parsed.refPath)
	}

	processingPath := outPath + ".processing"

	out, err := os.Create(processingPath)
	if err != nil {
		return errors.Wrapf(err, "creating %q", processingPath)
	}

	if err := reconstruct(out, parsed, ref, uint32(pageCount), diffing); err != nil {
		out.Close()
		return errors.Wrapf(err, "reconstructing %q", outPath)
	}

	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "closing %q", processingPath)
	}

	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing existing %q", outPath)
	}

	if err := os.Rename(processingPath, outPath); err != nil {
		return errors.Wrapf(err, "renaming %q to %q", processingPath, outPath)
	}

	log.Info().Str("path", outPath).Msg("decompressed file was saved")

	return nil
}
