package tabs

// ListenerID identifies a registration so it can be removed later. Function
// values are not comparable in Go, so registrations are tracked by ID.
type ListenerID uint64

// ChangeType tells whether a tab was inserted or deleted.
type ChangeType int

const (
	// TabAdded is fired after a tab is inserted.
	TabAdded ChangeType = iota
	// TabRemoved is fired after a tab is deleted.
	TabRemoved
)

// String returns a human-readable representation of the change type.
func (c ChangeType) String() string {
	switch c {
	case TabAdded:
		return "added"
	case TabRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// TabsChange is delivered to tabs listeners.
type TabsChange struct {
	Type  ChangeType
	Index int
}

// TabsListener observes tab insertion and removal.
type TabsListener func(change TabsChange)

// IndexListener observes the current tab pointer.
type IndexListener func(index int)

// FieldListener observes one field of one tab. It receives the new value and
// the index of the tab it was set on.
type FieldListener func(value string, index int)

// Field enumerates the per-tab fields that can be observed.
type Field int

const (
	FieldTitle Field = iota
	FieldSourceText
	FieldTargetText
	FieldSourceMode
	FieldTargetMode
	FieldSourceFilePath
	FieldTargetFilePath

	numFields
)

// String returns the field name as used in log and dashboard output.
func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldSourceText:
		return "source_text"
	case FieldTargetText:
		return "target_text"
	case FieldSourceMode:
		return "source_mode"
	case FieldTargetMode:
		return "target_mode"
	case FieldSourceFilePath:
		return "source_file_path"
	case FieldTargetFilePath:
		return "target_file_path"
	default:
		return "unknown"
	}
}

// Fields lists every observable field in record order.
func Fields() []Field {
	return []Field{
		FieldTitle,
		FieldSourceText,
		FieldTargetText,
		FieldSourceMode,
		FieldTargetMode,
		FieldSourceFilePath,
		FieldTargetFilePath,
	}
}

type registration[F any] struct {
	id ListenerID
	fn F
}

// registry is an ordered listener list. Callers hold the store lock.
type registry[F any] struct {
	entries []registration[F]
}

func (r *registry[F]) add(id ListenerID, fn F) {
	r.entries = append(r.entries, registration[F]{id: id, fn: fn})
}

func (r *registry[F]) remove(id ListenerID) bool {
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot copies the listener functions so they can be called after the
// store lock is released.
func (r *registry[F]) snapshot() []F {
	fns := make([]F, len(r.entries))
	for i, e := range r.entries {
		fns[i] = e.fn
	}
	return fns
}
