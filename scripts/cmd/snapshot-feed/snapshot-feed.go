// Command snapshot-feed saves the release announcement feed for offline
// monitoring hosts and writes a SHA256 checksum next to it. Sign the snapshot
// with `minisign -Sm <out>` and pass --feed-file, --feed-minisig and
// --minisign-key to check_nsupdates.
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/3leaps/nsupdates/internal/host/citrix"
	"github.com/3leaps/nsupdates/pkg/nsupdate"
)

func main() {
	fs := pflag.NewFlagSet("snapshot-feed", pflag.ExitOnError)
	url := fs.String("url", citrix.DefaultFeedURL, "release announcement feed URL")
	out := fs.String("out", "netscaler-adc.rss", "snapshot output path")
	timeout := fs.Duration("timeout", 30*time.Second, "fetch timeout")
	_ = fs.Parse(os.Args[1:])

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := citrix.NewClient(citrix.WithUserAgent(citrix.UserAgent("snapshot")))
	if err := run(ctx, client, *url, *out, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

func run(ctx context.Context, client fetcher, url, out string, w io.Writer) error {
	out = strings.TrimSpace(out)
	if out == "" {
		return errors.New("output path is required")
	}

	data, err := client.Fetch(ctx, url)
	if err != nil {
		return err
	}
	titles, err := citrix.ParseTitles(bytes.NewReader(data))
	if err != nil {
		return err
	}
	catalog := nsupdate.ExtractCatalog(titles, nil)
	if catalog.Len() == 0 {
		return fmt.Errorf("feed %s has no release announcements (%d items)", url, len(titles))
	}

	if err := writeAtomic(out, data); err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	sumLine := fmt.Sprintf("%s  %s\n", hex.EncodeToString(sum[:]), filepath.Base(out))
	if err := writeAtomic(out+".sha256", []byte(sumLine)); err != nil {
		return err
	}

	fmt.Fprintf(w, "Wrote %s (%d items, %d release lines)\n", out, len(titles), catalog.Len())
	for _, v := range catalog.Versions() {
		fmt.Fprintf(w, "  %s\n", v)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil { // #nosec G302 -- snapshot is public data
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
