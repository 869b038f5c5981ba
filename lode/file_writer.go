package lode

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// TranscriptFile is the sidecar filename of the final transcript.
const TranscriptFile = "transcript.txt"

// PutFile writes a sidecar file under the pull's files/ prefix, bypassing
// the dataset manifest.
// The filename must not contain path separators or "..".
func (c *ReportClient) PutFile(ctx context.Context, filename, _ string, data []byte) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid sidecar filename %q", filename)
	}

	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(fmt.Errorf("file write store init failed: %w", err), c.config.Dataset)
	}

	path := c.FilePath(filename)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

// FilePath returns the store path of a sidecar file.
func (c *ReportClient) FilePath(filename string) string {
	return c.StoragePath() + "/files/" + filename
}

func (c *ReportClient) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}
