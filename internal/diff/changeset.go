package diff

import "github.com/everstacklabs/modelprice/internal/model"

// ChangeSet is the difference between a fresh fetch of one source and the
// records of that source already persisted.
type ChangeSet struct {
	Source    string
	Added     []model.Record
	Removed   []model.Record
	Updated   []RecordUpdate
	Unchanged int
}

// RecordUpdate is an existing record whose fields changed.
type RecordUpdate struct {
	ID      string
	Record  model.Record
	Changes []FieldChange
}

// FieldChange is one changed field, named by its JSON path.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// PriceChanged reports whether any pricing field changed.
func (u *RecordUpdate) PriceChanged() bool {
	for _, c := range u.Changes {
		if isPriceField(c.Field) {
			return true
		}
	}
	return false
}

// Counts is the per-source change summary reported after a refresh.
type Counts struct {
	Added           int `json:"added"`
	Removed         int `json:"removed"`
	PriceChanged    int `json:"price_changed"`
	MetadataChanged int `json:"metadata_changed"`
	Unchanged       int `json:"unchanged"`
}

// Counts summarizes the changeset.
func (cs *ChangeSet) Counts() Counts {
	c := Counts{
		Added:     len(cs.Added),
		Removed:   len(cs.Removed),
		Unchanged: cs.Unchanged,
	}
	for i := range cs.Updated {
		if cs.Updated[i].PriceChanged() {
			c.PriceChanged++
		} else {
			c.MetadataChanged++
		}
	}
	return c
}

// HasChanges reports whether the changeset has any modifications.
func (cs *ChangeSet) HasChanges() bool {
	return len(cs.Added) > 0 || len(cs.Updated) > 0 || len(cs.Removed) > 0
}

// TotalChanged returns the count of added + updated records.
func (cs *ChangeSet) TotalChanged() int {
	return len(cs.Added) + len(cs.Updated)
}
