package task

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/aula/core"
)

var (
	sourceRequiredTag  = "source_required"
	sourceRequiredText = "this field is required for this kind of task"
)

// InitValidators registers the task validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newTaskStructValidation, NewTask{})
	core.RegisterCustomTranslation(validate, translator, sourceRequiredTag, sourceRequiredText)
}

// newTaskStructValidation checks the fields only some sources need.
func newTaskStructValidation(sl validator.StructLevel) {
	nt := sl.Current().Interface().(NewTask)
	switch nt.Source {
	case SourceGame:
		if nt.Link == "" {
			sl.ReportError(nt.Link, "link", "Link", sourceRequiredTag, "")
		}
	case SourceMenu, SourceMaterial:
		if len(nt.ItemIDs) == 0 {
			sl.ReportError(nt.ItemIDs, "item_ids", "ItemIDs", sourceRequiredTag, "")
		}
	case SourceSteps:
		if len(nt.Steps) == 0 {
			sl.ReportError(nt.Steps, "steps", "Steps", sourceRequiredTag, "")
		}
	}
}
