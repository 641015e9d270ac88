package content

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

// Audiences
const (
	AudienceEveryone    = Audience("everyone")
	AudienceStudents    = Audience("students")
	AudienceInstructors = Audience("instructors")
)

// Item kinds
const (
	KindPlain         = Kind("plain")
	KindAnnouncement  = Kind("announcement")
	KindRichText      = Kind("richText")
	KindFileCollector = Kind("fileCollector")
	KindFileLink      = Kind("fileLink")
)

var (
	ErrSubjectChanged  = errors.New("active subject changed")
	ErrReorderInFlight = errors.New("a reorder is already pending on this container")
	ErrUnknownSibling  = errors.New("sibling not found in container")

	errLabelRequired   = "this field is required"
	errContentRequired = "formatted content is required"
	errWindowForbidden = "a submission window is only allowed on file collectors"
	errFileForbidden   = "a file link is only allowed on file link items"
	errFileRequired    = "a file link requires url and name"
)

type Audience string

func (a Audience) Valid() bool {
	switch a {
	case AudienceEveryone, AudienceStudents, AudienceInstructors:
		return true
	}
	return false
}

// Includes reports whether a viewer with the given role may see an entity
// scoped to this audience.
func (a Audience) Includes(role string) bool {
	switch a {
	case AudienceEveryone:
		return true
	case AudienceStudents:
		return role == core.RoleStudent
	case AudienceInstructors:
		return role == core.RoleInstructor
	}
	return false
}

type Kind string

func (k Kind) Valid() bool {
	switch k {
	case KindPlain, KindAnnouncement, KindRichText, KindFileCollector, KindFileLink:
		return true
	}
	return false
}

// HasLabel reports whether the kind carries a separate short title; for
// rich-text items the formatted content is the label.
func (k Kind) HasLabel() bool { return k != KindRichText }

// Window bounds submissions on a file collector. An absent bound means
// unbounded on that side.
type Window struct {
	StartAt null.Time `json:"start_at,omitempty"`
	EndAt   null.Time `json:"end_at,omitempty"`
}

func (w Window) Open(now time.Time) bool {
	if w.StartAt.Valid && now.Before(w.StartAt.Time) {
		return false
	}
	if w.EndAt.Valid && now.After(w.EndAt.Time) {
		return false
	}
	return true
}

// FileRef is the stored file of a fileLink item.
type FileRef struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type (
	// Section is a top-level named, ordered, audience-scoped container.
	Section struct {
		ID        string   `json:"id"`
		SubjectID string   `json:"subject_id,omitempty"`
		Title     string   `json:"title"`
		Order     int      `json:"order"`
		Audience  Audience `json:"audience"`
		Items     []Item   `json:"items"`
	}

	// Item is an ordered, audience-scoped unit within a Section; behavior
	// varies by Kind. Fields outside a kind's allowed set are cleared by
	// Sanitize and rejected by validation.
	Item struct {
		ID        string   `json:"id"`
		SectionID string   `json:"section_id,omitempty"`
		Order     int      `json:"order"`
		Audience  Audience `json:"audience"`
		Kind      Kind     `json:"kind"`
		Label     string   `json:"label,omitempty"`
		Content   string   `json:"content,omitempty"` // opaque formatted-text blob
		Window    *Window  `json:"window,omitempty"`  // fileCollector only
		File      *FileRef `json:"file,omitempty"`    // fileLink only
	}

	// Tree is the full content tree of one subject.
	Tree struct {
		SubjectID string    `json:"subject_id"`
		Sections  []Section `json:"sections"`
	}
)

// Sanitize drops fields outside the item kind's allowed set. Called whenever
// an item is created or its kind changes.
func (it *Item) Sanitize() {
	if it.Kind != KindFileCollector {
		it.Window = nil
	}
	if it.Kind != KindFileLink {
		it.File = nil
	}
	if !it.Kind.HasLabel() {
		it.Label = ""
	}
}

// NewSection contains information needed to create a new Section.
type NewSection struct {
	Title    string   `json:"title" validate:"required"`
	Audience Audience `json:"audience" validate:"required,audience"`
	Order    int      `json:"order"` // assigned by the store, not by callers
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	return validate.Struct(ns)
}

// UpdateSection defines what information may be provided to modify an
// existing Section. Absent fields keep the current value.
type UpdateSection struct {
	Title    null.String `json:"title,omitempty"`
	Audience null.String `json:"audience,omitempty"`
}

func (us *UpdateSection) Validate() error {
	if us.Title.Valid {
		us.Title.String = core.CleanString(us.Title.String)
		if us.Title.String == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: errLabelRequired})
		}
	}
	if us.Audience.Valid && !Audience(us.Audience.String).Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "audience", Error: "invalid audience"})
	}
	return nil
}

// ApplyTo merges the patch into sec.
func (us UpdateSection) ApplyTo(sec *Section) {
	if us.Title.Valid {
		sec.Title = us.Title.String
	}
	if us.Audience.Valid {
		sec.Audience = Audience(us.Audience.String)
	}
}

// NewItem contains information needed to create a new Item.
type NewItem struct {
	Label    string   `json:"label,omitempty"`
	Content  string   `json:"content,omitempty"`
	Kind     Kind     `json:"kind" validate:"required,itemkind"`
	Audience Audience `json:"audience" validate:"required,audience"`
	Window   *Window  `json:"window,omitempty"`
	File     *FileRef `json:"file,omitempty"`
	Order    int      `json:"order"` // assigned by the store, not by callers
}

func (ni *NewItem) Validate(validate *validator.Validate) error {
	ni.Label = core.CleanString(ni.Label)
	if err := validate.Struct(ni); err != nil {
		return err
	}
	return checkKindFields(ni.Kind, ni.Label, ni.Content, ni.Window, ni.File)
}

// UpdateItem defines what information may be provided to modify an existing
// Item. Absent fields keep the current value; a kind change drops fields the
// new kind does not allow.
type UpdateItem struct {
	Label    null.String `json:"label,omitempty"`
	Content  null.String `json:"content,omitempty"`
	Kind     null.String `json:"kind,omitempty"`
	Audience null.String `json:"audience,omitempty"`
	Window   *Window     `json:"window,omitempty"`
	File     *FileRef    `json:"file,omitempty"`
}

// Validate checks the patch against the item it will be applied to.
func (ui *UpdateItem) Validate(orig Item) error {
	if ui.Kind.Valid && !Kind(ui.Kind.String).Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "kind", Error: "invalid kind"})
	}
	if ui.Audience.Valid && !Audience(ui.Audience.String).Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "audience", Error: "invalid audience"})
	}

	merged := orig
	ui.ApplyTo(&merged)
	return checkKindFields(merged.Kind, merged.Label, merged.Content, merged.Window, merged.File)
}

// ApplyTo merges the patch into it and sanitizes the result.
func (ui UpdateItem) ApplyTo(it *Item) {
	if ui.Label.Valid {
		it.Label = core.CleanString(ui.Label.String)
	}
	if ui.Content.Valid {
		it.Content = ui.Content.String
	}
	if ui.Kind.Valid {
		it.Kind = Kind(ui.Kind.String)
	}
	if ui.Audience.Valid {
		it.Audience = Audience(ui.Audience.String)
	}
	if ui.Window != nil {
		w := *ui.Window
		it.Window = &w
	}
	if ui.File != nil {
		f := *ui.File
		it.File = &f
	}
	it.Sanitize()
}

// checkKindFields rejects field combinations outside the kind's allowed set
// before any optimistic mutation is applied.
func checkKindFields(kind Kind, label, content string, window *Window, file *FileRef) error {
	if kind.HasLabel() && label == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "label", Error: errLabelRequired})
	}
	if kind == KindRichText && content == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "content", Error: errContentRequired})
	}
	if window != nil && kind != KindFileCollector {
		return core.NewValidationError(nil, core.FieldError{Field: "window", Error: errWindowForbidden})
	}
	if file != nil && kind != KindFileLink {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: errFileForbidden})
	}
	if kind == KindFileLink && (file == nil || file.URL == "" || file.Name == "") {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: errFileRequired})
	}
	return nil
}
