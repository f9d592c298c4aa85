package coerce

// Widget names the HTML input control suited to a column type.
type Widget string

const (
	WidgetNumber        Widget = "number"
	WidgetText          Widget = "text"
	WidgetTextarea      Widget = "textarea"
	WidgetDate          Widget = "date"
	WidgetDateTimeLocal Widget = "datetime-local"
	WidgetTime          Widget = "time"
	WidgetCheckbox      Widget = "checkbox"
	WidgetJSON          Widget = "json"
)

// InputWidgetFor returns the widget for rawType.
func InputWidgetFor(rawType string) Widget {
	switch Classify(rawType) {
	case TypeInteger, TypeDecimal:
		return WidgetNumber
	case TypeText:
		return WidgetTextarea
	case TypeDate:
		return WidgetDate
	case TypeDateTime:
		return WidgetDateTimeLocal
	case TypeTime:
		return WidgetTime
	case TypeBoolean:
		return WidgetCheckbox
	case TypeJSON:
		return WidgetJSON
	default:
		return WidgetText
	}
}

// FormatForInput renders v as the value attribute of widget w.
func FormatForInput(v Value, w Widget) string {
	var st SemanticType
	switch w {
	case WidgetDate:
		st = TypeDate
	case WidgetDateTimeLocal:
		st = TypeDateTime
	case WidgetTime:
		st = TypeTime
	case WidgetCheckbox:
		st = TypeBoolean
	default:
		st = TypeOther
	}
	s, _ := FormatForDisplay(v, st).Text()
	return s
}
