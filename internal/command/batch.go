package command

import (
	"taskden/internal/model"
	"taskden/internal/store"
)

// BatchItem is the per-element outcome of a batch operation. Batches
// never abort on the first bad element.
type BatchItem struct {
	ID    string      `json:"id,omitempty"`
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	Task  *model.Task `json:"task,omitempty"`
}

func itemFromResult(r store.ItemResult) BatchItem {
	item := BatchItem{ID: r.ID, Task: r.Task, OK: r.OK()}
	if r.Err != nil {
		item.Error = ErrorMessage(r.Err)
	}
	return item
}

func (h *Handler) BatchCreate(reqs []CreateRequest) ([]BatchItem, error) {
	now := h.now()
	items := make([]BatchItem, len(reqs))
	tasks := make([]model.Task, 0, len(reqs))
	indexes := make([]int, 0, len(reqs))

	for i, r := range reqs {
		t, err := h.buildTask(r, now)
		if err != nil {
			items[i] = BatchItem{Error: ErrorMessage(err)}
			continue
		}
		tasks = append(tasks, t)
		indexes = append(indexes, i)
	}

	results, err := h.Store.BatchCreate(tasks)
	if err != nil {
		return nil, err
	}
	for j, r := range results {
		items[indexes[j]] = itemFromResult(r)
		if r.OK() && r.Task != nil {
			h.syncSchedule(*r.Task)
		}
	}
	return items, nil
}

func (h *Handler) BatchUpdate(reqs []UpdateRequest) ([]BatchItem, error) {
	now := h.now()
	snapshot, err := h.Store.Load()
	if err != nil {
		return nil, err
	}

	items := make([]BatchItem, len(reqs))
	updates := make([]store.BatchUpdateItem, 0, len(reqs))
	indexes := make([]int, 0, len(reqs))
	before := make([]model.Task, 0, len(reqs))

	for i, r := range reqs {
		items[i].ID = r.ID
		existing, ok := snapshot.Get(r.ID)
		if !ok {
			items[i].Error = ErrorMessage(store.ErrNotFound)
			continue
		}
		p, err := h.buildPatch(r, existing, now)
		if err != nil {
			items[i].Error = ErrorMessage(err)
			continue
		}
		updates = append(updates, store.BatchUpdateItem{ID: r.ID, Patch: p})
		indexes = append(indexes, i)
		before = append(before, existing)
	}

	results, err := h.Store.BatchUpdate(updates)
	if err != nil {
		return nil, err
	}
	for j, r := range results {
		items[indexes[j]] = itemFromResult(r)
		if r.OK() && r.Task != nil {
			h.syncSchedule(*r.Task)
			h.maybeDiary(before[j], *r.Task)
		}
	}
	return items, nil
}

func (h *Handler) BatchDelete(ids []string) ([]BatchItem, error) {
	results, err := h.Store.BatchDelete(ids)
	if err != nil {
		return nil, err
	}
	items := make([]BatchItem, len(results))
	for i, r := range results {
		items[i] = itemFromResult(r)
		if r.OK() && h.Schedule != nil {
			_ = h.Schedule.Remove(r.ID)
		}
	}
	return items, nil
}
