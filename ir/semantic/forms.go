package semantic

// FormField is the interface for all interactive form fields.
type FormField interface {
	FieldType() string
	FieldName() string
	FieldFlags() int
}

// BaseFormField provides the common field keys.
type BaseFormField struct {
	Name              string
	Flags             int
	DefaultAppearance string
	Quadding          int
	TooltipText       string // /TU
}

func (f *BaseFormField) FieldName() string { return f.Name }
func (f *BaseFormField) FieldFlags() int   { return f.Flags }

// TextFormField is a text field (FT Tx).
type TextFormField struct {
	BaseFormField
	Value  string
	MaxLen int
}

func (f *TextFormField) FieldType() string { return "Tx" }

// ChoiceFormField is a combo or list box (FT Ch).
type ChoiceFormField struct {
	BaseFormField
	Options       []string
	Selected      string
	IsCombo       bool
	IsMultiSelect bool
}

func (f *ChoiceFormField) FieldType() string { return "Ch" }

// ButtonFormField is a push button, checkbox or radio button (FT Btn).
// Radio widgets sharing a Name form one group; OnState names the export
// value a widget contributes ("Off" leaves the group default alone).
type ButtonFormField struct {
	BaseFormField
	IsPush  bool
	IsRadio bool
	OnState string
	Checked bool
}

func (f *ButtonFormField) FieldType() string { return "Btn" }

// SignatureFormField is an empty signature placeholder (FT Sig). The
// live signature, when configured, gets its own field built by the
// signature stage and never goes through this type.
type SignatureFormField struct {
	BaseFormField
}

func (f *SignatureFormField) FieldType() string { return "Sig" }
