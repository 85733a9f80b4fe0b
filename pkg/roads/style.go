package roads

// Style is how a road class is drawn.
type Style struct {
	Color   string  `json:"color"`
	Weight  float64 `json:"weight"`
	Opacity float64 `json:"opacity"`
}

// Styles maps road classes to their line style.
var Styles = map[string]Style{
	"motorway":      {Color: "#e892a2", Weight: 6, Opacity: 0.9},
	"trunk":         {Color: "#f9b29c", Weight: 5, Opacity: 0.9},
	"primary":       {Color: "#fcd6a4", Weight: 5, Opacity: 0.85},
	"secondary":     {Color: "#f7fabf", Weight: 4, Opacity: 0.85},
	"tertiary":      {Color: "#ffffb3", Weight: 3, Opacity: 0.8},
	"unclassified":  {Color: "#d4d4d4", Weight: 2, Opacity: 0.7},
	"residential":   {Color: "#ffffff", Weight: 2, Opacity: 0.7},
	"service":       {Color: "#cccccc", Weight: 1.5, Opacity: 0.6},
	"living_street": {Color: "#ededed", Weight: 1.5, Opacity: 0.6},
	UnknownType:     {Color: "#999999", Weight: 1, Opacity: 0.5},
}

// StyleFor returns the style of a road class, falling back to the unknown style.
func StyleFor(roadType string) Style {
	if s, ok := Styles[roadType]; ok {
		return s
	}
	return Styles[UnknownType]
}
