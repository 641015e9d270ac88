package content

import (
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

func newTestValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestAudienceIncludes(t *testing.T) {
	tests := []struct {
		audience Audience
		role     string
		want     bool
	}{
		{AudienceEveryone, core.RoleStudent, true},
		{AudienceEveryone, core.RoleInstructor, true},
		{AudienceStudents, core.RoleStudent, true},
		{AudienceStudents, core.RoleInstructor, false},
		{AudienceInstructors, core.RoleInstructor, true},
		{AudienceInstructors, core.RoleStudent, false},
		{Audience("lol"), core.RoleStudent, false},
	}
	for _, tt := range tests {
		if got := tt.audience.Includes(tt.role); got != tt.want {
			t.Errorf("%s.Includes(%s) = %v; want %v", tt.audience, tt.role, got, tt.want)
		}
	}
}

func TestWindowOpen(t *testing.T) {
	now := time.Date(2021, 5, 10, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name   string
		window Window
		want   bool
	}{
		{name: "unbounded", window: Window{}, want: true},
		{name: "open both bounds", window: Window{StartAt: null.TimeFrom(before), EndAt: null.TimeFrom(after)}, want: true},
		{name: "not started", window: Window{StartAt: null.TimeFrom(after)}, want: false},
		{name: "already ended", window: Window{EndAt: null.TimeFrom(before)}, want: false},
		{name: "start only, passed", window: Window{StartAt: null.TimeFrom(before)}, want: true},
		{name: "end only, ahead", window: Window{EndAt: null.TimeFrom(after)}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Open(now); got != tt.want {
				t.Errorf("Open() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestNewItemValidate(t *testing.T) {
	validate := newTestValidator()
	window := &Window{EndAt: null.TimeFrom(time.Now().Add(time.Hour))}
	file := &FileRef{URL: "https://files.test/syllabus.pdf", Name: "syllabus.pdf"}

	tests := []struct {
		name    string
		ni      NewItem
		wantErr bool
	}{
		{name: "plain ok", ni: NewItem{Kind: KindPlain, Label: "Week 1", Audience: AudienceEveryone}},
		{name: "plain needs label", ni: NewItem{Kind: KindPlain, Audience: AudienceEveryone}, wantErr: true},
		{name: "richText needs content", ni: NewItem{Kind: KindRichText, Audience: AudienceEveryone}, wantErr: true},
		{name: "richText ok without label", ni: NewItem{Kind: KindRichText, Content: "<p>hi</p>", Audience: AudienceEveryone}},
		{name: "collector takes window", ni: NewItem{Kind: KindFileCollector, Label: "Essay", Audience: AudienceStudents, Window: window}},
		{name: "window on plain", ni: NewItem{Kind: KindPlain, Label: "Week 1", Audience: AudienceEveryone, Window: window}, wantErr: true},
		{name: "fileLink needs file", ni: NewItem{Kind: KindFileLink, Label: "Syllabus", Audience: AudienceEveryone}, wantErr: true},
		{name: "fileLink ok", ni: NewItem{Kind: KindFileLink, Label: "Syllabus", Audience: AudienceEveryone, File: file}},
		{name: "file on announcement", ni: NewItem{Kind: KindAnnouncement, Label: "Exam!", Audience: AudienceEveryone, File: file}, wantErr: true},
		{name: "unknown kind", ni: NewItem{Kind: Kind("video"), Label: "x", Audience: AudienceEveryone}, wantErr: true},
		{name: "unknown audience", ni: NewItem{Kind: KindPlain, Label: "x", Audience: Audience("nobody")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.ni.Validate(validate); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateItemKindChangeDropsFields(t *testing.T) {
	orig := Item{
		ID:       "it1",
		Kind:     KindFileCollector,
		Label:    "Essay",
		Audience: AudienceStudents,
		Window:   &Window{EndAt: null.TimeFrom(time.Now().Add(time.Hour))},
	}

	ui := UpdateItem{Kind: null.StringFrom(string(KindPlain))}
	if err := ui.Validate(orig); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	ui.ApplyTo(&orig)
	if orig.Kind != KindPlain {
		t.Errorf("Kind = %s; want %s", orig.Kind, KindPlain)
	}
	if orig.Window != nil {
		t.Errorf("Window survived the kind change: %+v", orig.Window)
	}
	if orig.Label != "Essay" {
		t.Errorf("Label = %q; want %q", orig.Label, "Essay")
	}
}

func TestUpdateSectionValidate(t *testing.T) {
	tests := []struct {
		name    string
		us      UpdateSection
		wantErr bool
	}{
		{name: "empty patch", us: UpdateSection{}},
		{name: "title ok", us: UpdateSection{Title: null.StringFrom("Week 2")}},
		{name: "blank title", us: UpdateSection{Title: null.StringFrom("   ")}, wantErr: true},
		{name: "audience ok", us: UpdateSection{Audience: null.StringFrom(string(AudienceStudents))}},
		{name: "bad audience", us: UpdateSection{Audience: null.StringFrom("nobody")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us := tt.us
			if err := us.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}
