package journal

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/adit/types"
)

// MetaFileName is the sidecar file holding the session's msgpack metadata.
const MetaFileName = "session.msgpack"

// WriteMeta writes the session's metadata as a msgpack sidecar file next to
// the session's record files. Sidecars land at Hive-partitioned paths under
// files/, bypassing Dataset segment/manifest machinery entirely: they are
// provenance blobs keyed by path, not queryable records.
func (r *Recorder) WriteMeta(ctx context.Context, meta types.SessionMeta) error {
	raw, err := msgpack.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encode session meta: %w", err)
	}

	store, err := r.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, r.config.Dataset)
	}

	path := r.buildSidecarPath(MetaFileName)
	return WrapWriteError(store.Put(ctx, path, bytes.NewReader(raw)), path)
}

// getOrCreateStore lazily initializes the Store from the factory.
func (r *Recorder) getOrCreateStore() (lode.Store, error) {
	r.storeOnce.Do(func() {
		r.store, r.storeErr = r.storeFactory()
	})
	return r.store, r.storeErr
}

// buildSidecarPath computes the Hive-partitioned path for a sidecar file.
// Format: datasets/<dataset>/partitions/source=<s>/category=<c>/day=<d>/session_id=<id>/files/<filename>
func (r *Recorder) buildSidecarPath(filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/source=%s/category=%s/day=%s/session_id=%s/files/%s",
		r.config.Dataset,
		r.config.Source,
		r.config.Category,
		r.config.Day,
		r.config.SessionID,
		filename,
	)
}
