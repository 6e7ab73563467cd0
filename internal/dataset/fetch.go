package dataset

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/m-mizutani/goerr/v2"
	"incident-crossfilter-go/internal/logger"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetch downloads url into dest, retrying transport errors and 5xx answers
// with exponential backoff. 4xx answers fail at once.
func Fetch(ctx context.Context, url, dest string, maxElapsed time.Duration) error {
	log := logger.New().Component("dataset.fetch").WithField("url", url)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	attempt := 0

	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(goerr.Wrap(err, "build request"))
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			log.WithField("attempt", attempt).WithField("error", err.Error()).Warn("fetch failed")
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			log.WithField("attempt", attempt).WithField("status", resp.StatusCode).Warn("server error")
			return goerr.New("server error", goerr.V("status", resp.StatusCode), goerr.V("body", string(b)))
		case resp.StatusCode >= 300:
			return backoff.Permanent(goerr.New("unexpected status", goerr.V("status", resp.StatusCode)))
		}
		return writeFile(dest, resp.Body)
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return goerr.Wrap(err, "fetch dataset", goerr.V("url", url), goerr.V("attempts", attempt))
	}
	log.WithField("dest", dest).WithField("attempts", attempt).Info("dataset downloaded")
	return nil
}

// writeFile writes through a temp file so a failed download never leaves a
// partial dataset behind.
func writeFile(dest string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".dataset-*")
	if err != nil {
		return backoff.Permanent(goerr.Wrap(err, "create temp file"))
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return backoff.Permanent(goerr.Wrap(err, "close temp file"))
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return backoff.Permanent(goerr.Wrap(err, "move dataset", goerr.V("dest", dest)))
	}
	return nil
}
