package chat

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// BackgroundImage has no stable id: its index in Preferences.BackgroundImages is its identity.
type BackgroundImage struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Preferences is dual-homed: a local copy and a server copy, last write wins.
type Preferences struct {
	Theme Theme `json:"theme"`
	Sampling
	BackgroundImages        []BackgroundImage `json:"backgroundImages"`
	SelectedBackgroundImage int               `json:"selectedBackgroundImage"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		Theme:                   ThemeLight,
		Sampling:                DefaultSampling(),
		BackgroundImages:        []BackgroundImage{},
		SelectedBackgroundImage: -1,
	}
}
