package nexus

import (
	"log/slog"

	"github.com/robert-malhotra/go-nexus/internal/h5"
)

// Failure injection points, nil outside tests.
var (
	testHookAttributeWritten func(name string) error
	testHookDatasetWritten   func(path string) error
)

// handle owns one native handle and releases it exactly once. Release
// failures are logged rather than returned, so Close always returns nil
// and is safe to defer.
type handle struct {
	id       h5.ID
	log      *slog.Logger
	category h5.Category
	release  func(h5.ID) error
}

func (h *handle) ID() h5.ID { return h.id }

func (h *handle) Close() error {
	if h == nil || !h.id.Valid() {
		return nil
	}
	id := h.id
	h.id = h5.InvalidID
	if err := h.release(id); err != nil {
		h.log.Warn("releasing handle failed", "category", h.category.String(), "id", int64(id), "error", err)
	}
	return nil
}

type (
	objectHandle struct{ handle }
	spaceHandle  struct{ handle }
	attrHandle   struct{ handle }
	plistHandle  struct{ handle }
)

func newObjectHandle(f *h5.File, id h5.ID, log *slog.Logger) *objectHandle {
	return &objectHandle{handle{id: id, log: log, category: h5.CategoryObject, release: f.CloseObject}}
}

func newSpaceHandle(f *h5.File, id h5.ID, log *slog.Logger) *spaceHandle {
	return &spaceHandle{handle{id: id, log: log, category: h5.CategorySpace, release: f.CloseSpace}}
}

func newAttrHandle(f *h5.File, id h5.ID, log *slog.Logger) *attrHandle {
	return &attrHandle{handle{id: id, log: log, category: h5.CategoryAttribute, release: f.CloseAttribute}}
}

func newPlistHandle(f *h5.File, id h5.ID, log *slog.Logger) *plistHandle {
	return &plistHandle{handle{id: id, log: log, category: h5.CategoryPlist, release: f.ClosePlist}}
}
