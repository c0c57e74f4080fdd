// SPDX-License-Identifier: MPL-2.0

package jvm

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caldera-launcher/caldera/internal/adoptium"
)

// ProgressFunc receives incremental download progress. total is -1 when the
// server does not report a content length. Implementations must be fast; they
// run on the download path.
type ProgressFunc func(downloaded, total int64)

// progressReader invokes fn as bytes flow through it.
type progressReader struct {
	r          io.Reader
	total      int64
	downloaded int64
	fn         ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		if pr.fn != nil {
			pr.fn(pr.downloaded, pr.total)
		}
	}
	return n, err
}

// downloadAndVerify streams the artifact at url to destPath and verifies its
// SHA256 digest. Each attempt issues a fresh request (with the client's
// identifying header); transport failures and checksum mismatches are retried
// with exponential backoff, since a mismatch on a fresh download indicates a
// truncated or corrupted transfer rather than a bad release.
func downloadAndVerify(
	ctx context.Context,
	client *adoptium.Client,
	url, destPath, expectedSHA256 string,
	maxAttempts int,
	baseBackoff time.Duration,
	progress ProgressFunc,
) error {
	return adoptium.RetryWithBackoff(ctx, maxAttempts, baseBackoff, func(attempt int) (bool, error) {
		if err := downloadOnce(ctx, client, url, destPath, progress); err != nil {
			return true, err
		}
		if err := VerifyFile(destPath, expectedSHA256); err != nil {
			_ = os.Remove(destPath)
			return true, err
		}
		return false, nil
	})
}

func downloadOnce(ctx context.Context, client *adoptium.Client, url, destPath string, progress ProgressFunc) (err error) {
	body, total, err := client.Download(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }() // read-only response body

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	src := io.Reader(body)
	if progress != nil {
		src = &progressReader{r: body, total: total, fn: progress}
	}

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("writing download to %s: %w", destPath, err)
	}
	return nil
}
