package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/vid2gif/internal/crop"
	"github.com/maauso/vid2gif/internal/gifapi"
)

// Option defaults.
const (
	DefaultFPS      = 10
	DefaultResize   = "original"
	DefaultSpeed    = 1.0
	DefaultTextSize = 24
)

// ErrInvalidOptions wraps every option validation failure.
var ErrInvalidOptions = errors.New("form: invalid options")

// Options are the conversion settings sent with a submission.
type Options struct {
	StartTime   float64      `json:"start_time" validate:"gte=0"`
	EndTime     *float64     `json:"end_time,omitempty" validate:"omitempty,gte=0"`
	FPS         int          `json:"fps" validate:"min=1,max=50"`
	Resize      string       `json:"resize" validate:"resize"`
	Speed       float64      `json:"speed" validate:"gt=0,lte=10"`
	TextOverlay string       `json:"text_overlay" validate:"max=200"`
	TextSize    int          `json:"text_size" validate:"min=1,max=200"`
	TextColor   string       `json:"text_color" validate:"hexcolor"`
	Background  Fill         `json:"-"`
	Crop        *crop.Region `json:"crop,omitempty"`
}

// DefaultOptions returns the initial form values.
func DefaultOptions() Options {
	return Options{
		FPS:        DefaultFPS,
		Resize:     DefaultResize,
		Speed:      DefaultSpeed,
		TextSize:   DefaultTextSize,
		TextColor:  DefaultTextColor,
		Background: Some(DefaultBackgroundColor),
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the form's custom rules
// registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("resize", validateResize)
		v.RegisterStructValidation(validateOptions, Options{})
		validate = v
	})
	return validate
}

// validateResize accepts "original" or a positive pixel width.
func validateResize(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == DefaultResize {
		return true
	}
	n, err := strconv.Atoi(s)
	return err == nil && n > 0 && n <= 4096
}

func validateOptions(sl validator.StructLevel) {
	o := sl.Current().Interface().(Options)
	if o.EndTime != nil && *o.EndTime <= o.StartTime {
		sl.ReportError(o.EndTime, "EndTime", "end_time", "gtfield", "StartTime")
	}
	if c, ok := o.Background.Color(); ok {
		if _, valid := ParseColor(c); !valid {
			sl.ReportError(o.Background, "Background", "bg_color", "hexcolor", "")
		}
	}
	if o.Crop != nil {
		if err := o.Crop.Validate(0, 0); err != nil {
			sl.ReportError(o.Crop, "Crop", "crop", "region", "")
		}
	}
}

// Validate checks the options. Crop containment against the frame is the
// selector's concern; here the region only needs to be non-empty.
func (o Options) Validate() error {
	if err := Validator().Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(parts, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Fields returns the submission form fields in send order.
func (o Options) Fields() []gifapi.Field {
	fields := []gifapi.Field{
		{Name: "start_time", Value: formatFloat(o.StartTime)},
	}
	if o.EndTime != nil {
		fields = append(fields, gifapi.Field{Name: "end_time", Value: formatFloat(*o.EndTime)})
	}
	fields = append(fields,
		gifapi.Field{Name: "fps", Value: strconv.Itoa(o.FPS)},
		gifapi.Field{Name: "resize", Value: o.Resize},
		gifapi.Field{Name: "speed", Value: formatFloat(o.Speed)},
	)
	if o.Crop != nil {
		fields = append(fields,
			gifapi.Field{Name: "crop_x", Value: strconv.Itoa(o.Crop.X)},
			gifapi.Field{Name: "crop_y", Value: strconv.Itoa(o.Crop.Y)},
			gifapi.Field{Name: "crop_width", Value: strconv.Itoa(o.Crop.Width)},
			gifapi.Field{Name: "crop_height", Value: strconv.Itoa(o.Crop.Height)},
		)
	}
	fields = append(fields,
		gifapi.Field{Name: "text_overlay", Value: o.TextOverlay},
		gifapi.Field{Name: "text_size", Value: strconv.Itoa(o.TextSize)},
		gifapi.Field{Name: "text_color", Value: o.TextColor},
	)
	if c, ok := o.Background.Color(); ok {
		fields = append(fields, gifapi.Field{Name: "bg_color", Value: c})
	} else {
		fields = append(fields, gifapi.Field{Name: "no_background", Value: "true"})
	}
	return fields
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Source tab names.
const (
	TabFile = "file"
	TabURL  = "url"
)

// Controls groups the option widgets of one form.
type Controls struct {
	SourceTabs *Tabs
	Advanced   Disclosure
	TextColor  *ColorPair
	Background *Background
}

// NewControls creates controls at their defaults.
func NewControls() *Controls {
	text, _ := NewColorPair(DefaultTextColor)
	bg, _ := NewBackground(DefaultBackgroundColor)
	return &Controls{
		SourceTabs: NewTabs(TabFile, TabURL),
		TextColor:  text,
		Background: bg,
	}
}

// Apply copies the color controls into o.
func (c *Controls) Apply(o Options) Options {
	o.TextColor = c.TextColor.Swatch()
	o.Background = c.Background.Value()
	return o
}
