package models

// Props holds the style and icon metadata of a block. Keys this client does not
// model are preserved in Extra so they survive a round trip.
type Props struct {
	Icon            string
	TextColor       string
	BackgroundColor string
	TextAlign       string
	Extra           map[string]any
}

const (
	propIcon            = "icon"
	propTextColor       = "text_color"
	propBackgroundColor = "background_color"
	propTextAlign       = "text_align"
)

// DecodeProps builds Props from their generic wire form.
func DecodeProps(m map[string]any) Props {
	var p Props
	for k, v := range m {
		s, isString := v.(string)
		switch {
		case k == propIcon && isString:
			p.Icon = s
		case k == propTextColor && isString:
			p.TextColor = s
		case k == propBackgroundColor && isString:
			p.BackgroundColor = s
		case k == propTextAlign && isString:
			p.TextAlign = s
		default:
			if p.Extra == nil {
				p.Extra = map[string]any{}
			}
			p.Extra[k] = copyValue(v)
		}
	}
	return p
}

// Map returns the generic wire form of p. Empty fields are omitted.
func (p Props) Map() map[string]any {
	m := copyMap(p.Extra)
	if m == nil {
		m = map[string]any{}
	}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set(propIcon, p.Icon)
	set(propTextColor, p.TextColor)
	set(propBackgroundColor, p.BackgroundColor)
	set(propTextAlign, p.TextAlign)
	return m
}

func (p Props) Clone() Props {
	c := p
	c.Extra = copyMap(p.Extra)
	return c
}
